package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/curator/pkg/content"
)

type fakeCompleter struct {
	replies []string
	prompts []string
	err     error
}

func (f *fakeCompleter) Model() string { return "fake" }

func (f *fakeCompleter) Complete(_ context.Context, _, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply, nil
}

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain object", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"prose around array", "Here you go:\n[{\"id\":\"x\"}]\nThanks", `[{"id":"x"}]`},
		{"whitespace", "  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSONResponse(tt.input))
		})
	}
}

func TestNewProviders(t *testing.T) {
	c, err := New(Options{Provider: "none", APIKey: "k"})
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = New(Options{Provider: "openai"})
	require.NoError(t, err)
	assert.Nil(t, c, "missing key disables the llm")

	c, err = New(Options{Provider: "openai", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", c.Model())

	c, err = New(Options{Provider: "anthropic", APIKey: "k", Model: "claude-x"})
	require.NoError(t, err)
	assert.Equal(t, "claude-x", c.Model())

	_, err = New(Options{Provider: "gemini", APIKey: "k"})
	assert.True(t, errors.Is(err, ErrUnknownProvider))
}

func TestEvaluateBatches(t *testing.T) {
	fake := &fakeCompleter{replies: []string{
		"```json\n[{\"id\":\"a\",\"score\":8,\"topics\":[\"go\"],\"categories\":[\"Engineering\"]},{\"id\":\"b\",\"score\":14}]\n```",
		`[{"id":"c","score":-2}]`,
	}}
	ev := NewEvaluator(fake, 2)

	items := []content.Item{
		{ID: "a", Title: "Go 1.25", Description: "release notes"},
		{ID: "b", Title: "Rust", Content: "some   body\ntext"},
		{ID: "c", Title: "Ads"},
	}
	got, err := ev.Evaluate(context.Background(), items)
	require.NoError(t, err)

	assert.Len(t, fake.prompts, 2)
	assert.Contains(t, fake.prompts[0], "ID: a")
	assert.Contains(t, fake.prompts[0], "Excerpt: some body text")
	assert.Equal(t, 8.0, got["a"].Score)
	assert.Equal(t, []string{"go"}, got["a"].Topics)
	assert.Equal(t, 10.0, got["b"].Score)
	assert.Equal(t, 0.0, got["c"].Score)
}

func TestEvaluateBadJSON(t *testing.T) {
	ev := NewEvaluator(&fakeCompleter{replies: []string{"no idea"}}, 0)
	_, err := ev.Evaluate(context.Background(), []content.Item{{ID: "a"}})
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	fake := &fakeCompleter{replies: []string{"  A short summary.  "}}
	s := NewSummarizer(fake, 10)

	out, err := s.Summarize(context.Background(), content.Item{
		ID: "v", Source: content.KindYoutube, Title: "Talk", Content: strings.Repeat("x", 50),
	})
	require.NoError(t, err)
	assert.Equal(t, "A short summary.", out)
	assert.Contains(t, fake.prompts[0], "Transcript:\nxxxxxxxxxx...")
}

func TestSummarizeError(t *testing.T) {
	s := NewSummarizer(&fakeCompleter{err: errors.New("quota")}, 0)
	_, err := s.Summarize(context.Background(), content.Item{ID: "a"})
	assert.ErrorContains(t, err, "quota")
}

func TestOpenAIComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body["model"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-test",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "hello"}}]
		}`))
	}))
	defer srv.Close()

	c := NewOpenAI("key", "gpt-test", srv.URL+"/v1/")
	out, err := c.Complete(context.Background(), "sys", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}
