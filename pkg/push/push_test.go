package push

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/curator/pkg/content"
	"github.com/elonfeng/curator/pkg/notion"
)

type fakePages struct {
	created []map[string]any
	failOn  string
}

func (f *fakePages) CreatePage(_ context.Context, _ string, props map[string]any, _ []notion.Block) (notion.Page, error) {
	title := props["Name"].(map[string]any)["title"].([]notion.RichText)[0].Text.Content
	if title == f.failOn {
		return notion.Page{}, errors.New("validation_error")
	}
	f.created = append(f.created, props)
	return notion.Page{ID: "p", URL: "https://notion.so/" + title}, nil
}

type stubTarget struct {
	name string
	err  error
}

func (s stubTarget) Name() string { return s.name }

func (s stubTarget) Push(_ context.Context, _ string, items []content.Item) (Report, error) {
	if s.err != nil {
		return Report{}, s.err
	}
	return digestReport(s.name, items), nil
}

func TestValidateTargets(t *testing.T) {
	assert.NoError(t, ValidateTargets([]string{"notion", "slack"}))
	err := ValidateTargets([]string{"notion", "email"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownTarget))
	assert.Contains(t, err.Error(), "email")
}

func TestNotionPushCountsPerItem(t *testing.T) {
	pages := &fakePages{failOn: "bad"}
	target := NewNotion(pages, "db", nil)

	report, err := target.Push(context.Background(), "Article", []content.Item{
		{ID: "1", Title: "good", URL: "https://a", Topics: []string{"go"}, Summary: "s"},
		{ID: "2", Title: "bad", URL: "https://b"},
		{ID: "3"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pushed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, []string{"1"}, report.PushedIDs)
	assert.Equal(t, "https://notion.so/good", report.Refs["1"])

	require.Len(t, pages.created, 1)
	assert.Contains(t, pages.created[0], "Topics")
	assert.Contains(t, pages.created[0], "Summary")
}

func TestNotionPushNeedsDatabase(t *testing.T) {
	_, err := NewNotion(&fakePages{}, "", nil).Push(context.Background(), "RSS", []content.Item{{ID: "1", Title: "x"}})
	assert.Error(t, err)
}

func TestManagerPush(t *testing.T) {
	m := NewManager(nil,
		stubTarget{name: "notion"},
		stubTarget{name: "slack", err: errors.New("down")},
	)
	assert.True(t, m.Configured("notion"))
	assert.False(t, m.Configured("discord"))

	items := []content.Item{{ID: "a"}, {ID: "b"}}
	reports, err := m.Push(context.Background(), "RSS", items, []string{"notion", "slack", "discord"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slack: down")
	assert.Contains(t, err.Error(), "discord: target is not configured")

	require.Len(t, reports, 1)
	assert.Equal(t, "notion", reports[0].Target)
	assert.Equal(t, 2, reports[0].Pushed)
}

func TestSlackDigest(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	items := make([]content.Item, 12)
	for i := range items {
		items[i] = content.Item{ID: string(rune('a' + i)), Title: "t", URL: "https://x"}
	}
	report, err := NewSlack(srv.URL).Push(context.Background(), "RSS", items)
	require.NoError(t, err)
	assert.Equal(t, 12, report.Pushed)

	blocks := payload["blocks"].([]any)
	assert.Len(t, blocks, 1+digestLimit+1) // header + items + "and 2 more"
}

func TestDiscordFailureIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewDiscord(srv.URL).Push(context.Background(), "RSS", []content.Item{{ID: "a"}})
	assert.Error(t, err)
}

func TestWebhookSigned(t *testing.T) {
	var sig string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sig = r.Header.Get("X-Signature-256")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	report, err := NewWebhook(srv.URL, "s3cret").Push(context.Background(), "Article", []content.Item{{ID: "a", Title: "x"}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pushed)
	assert.Equal(t, "sha256="+Sign("s3cret", body), sig)

	var payload WebhookPayload
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "Article", payload.Source)
	assert.Len(t, payload.Items, 1)
}

func TestEmptyDigestSendsNothing(t *testing.T) {
	report, err := NewSlack("http://127.0.0.1:1").Push(context.Background(), "RSS", nil)
	require.NoError(t, err)
	assert.Zero(t, report.Pushed)
}
