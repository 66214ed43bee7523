package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/curator/pkg/content"
)

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
database:
  path: /tmp/c.db
schedule:
  interval: 30m
sources:
  rss:
    feeds:
      - name: Go Blog
        url: https://go.dev/blog/feed.atom
llm:
  provider: none
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	t.Setenv("NOTION_TOKEN", "secret")
	t.Setenv("CURATOR_DB_PATH", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/c.db", cfg.Database.Path)
	assert.Equal(t, 30*time.Minute, cfg.Schedule.ParseInterval())
	assert.Equal(t, "secret", cfg.Notion.Token)
	require.Len(t, cfg.Sources.RSS.Feeds, 1)
	assert.Equal(t, "Go Blog", cfg.Sources.RSS.Feeds[0].Name)
	assert.False(t, cfg.LLM.Enabled())
	// untouched defaults survive
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestAnthropicKeyClearsOpenAIModel(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "ak")
	t.Setenv("LLM_MODEL", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Empty(t, cfg.LLM.Model)
	assert.True(t, cfg.LLM.Enabled())
}

func TestLLMEnabled(t *testing.T) {
	assert.False(t, LLMConfig{Provider: "openai"}.Enabled())
	assert.False(t, LLMConfig{Provider: " None ", APIKey: "k"}.Enabled())
	assert.False(t, LLMConfig{APIKey: "k"}.Enabled())
	assert.True(t, LLMConfig{Provider: "OpenAI", APIKey: "k"}.Enabled())
}

func TestParseDurationsFallback(t *testing.T) {
	assert.Equal(t, time.Hour, ScheduleConfig{Interval: "bogus"}.ParseInterval())
	assert.Equal(t, 48*time.Hour, RedisConfig{}.ParseTTL())
	assert.Equal(t, 24*time.Hour, RSSConfig{MaxAge: "-1h"}.ParseMaxAge())
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"yes", "TRUE", "t", "Y", "1", " true "} {
		v, err := ParseBool(s)
		require.NoError(t, err, s)
		assert.True(t, v, s)
	}
	for _, s := range []string{"no", "False", "f", "n", "0"} {
		v, err := ParseBool(s)
		require.NoError(t, err, s)
		assert.False(t, v, s)
	}
	_, err := ParseBool("maybe")
	assert.True(t, errors.Is(err, ErrInvalidBool))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"notion", "slack"}, SplitList(" notion, ,slack,"))
	assert.Nil(t, SplitList(""))
}

func TestParseStart(t *testing.T) {
	local := time.Local
	time.Local = time.FixedZone("UTC+9", 9*60*60)
	t.Cleanup(func() { time.Local = local })

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	got, err := ParseStart("", now)
	require.NoError(t, err)
	assert.Equal(t, now, got)

	got, err = ParseStart("2026-02-01T08:30:00", now)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 2, 1, 8, 30, 0, 0, time.Local)))
	assert.True(t, got.Equal(time.Date(2026, 1, 31, 23, 30, 0, 0, time.UTC)))

	got, err = ParseStart("2026-02-01", now)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 1, 31, 15, 0, 0, 0, time.UTC)))

	got, err = ParseStart("2026-02-01T08:30:00+02:00", now)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 2, 1, 6, 30, 0, 0, time.UTC)))

	_, err = ParseStart("yesterday", now)
	assert.Error(t, err)
}

func TestRawOptionsParse(t *testing.T) {
	now := time.Now()
	raw := RawOptions{
		Sources:     "Article,Unknown,RSS",
		Targets:     "notion",
		Dedup:       "false",
		MaxDistance: 0.5,
		TopicsTopK:  3,
	}
	opts, err := raw.Parse(now)
	require.NoError(t, err)

	assert.Equal(t, []content.Kind{content.KindArticle, content.KindRSS}, opts.Sources)
	assert.Equal(t, []string{"Unknown"}, opts.Unknown)
	assert.False(t, opts.Dedup)
	assert.Equal(t, "./data", opts.DataFolder)
	assert.Equal(t, []string{"notion"}, opts.Targets)
	assert.Equal(t, now, opts.Start)
}

func TestRawOptionsParseDefaults(t *testing.T) {
	opts, err := RawOptions{}.Parse(time.Now())
	require.NoError(t, err)
	assert.Equal(t, content.AllKinds(), opts.Sources)
	assert.True(t, opts.Dedup)
}

func TestRawOptionsParseRejects(t *testing.T) {
	_, err := RawOptions{MaxDistance: 1.5}.Parse(time.Now())
	assert.Error(t, err)

	_, err = RawOptions{Dedup: "perhaps"}.Parse(time.Now())
	assert.True(t, errors.Is(err, ErrInvalidBool))

	_, err = RawOptions{TopicsTopK: -1}.Parse(time.Now())
	assert.Error(t, err)
}
