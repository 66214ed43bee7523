package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "curator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curator.db")
	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = New(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestLastEditedRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.LastEdited(ctx, "rss", "default")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	t1 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.SetLastEdited(ctx, "rss", "default", t1))

	got, err = s.LastEdited(ctx, "rss", "default")
	require.NoError(t, err)
	assert.True(t, got.Equal(t1), "got %v", got)

	// older values never move the watermark back
	require.NoError(t, s.SetLastEdited(ctx, "rss", "default", t1.Add(-time.Hour)))
	got, err = s.LastEdited(ctx, "rss", "default")
	require.NoError(t, err)
	assert.True(t, got.Equal(t1))

	t2 := t1.Add(time.Hour)
	require.NoError(t, s.SetLastEdited(ctx, "rss", "default", t2))
	got, err = s.LastEdited(ctx, "rss", "default")
	require.NoError(t, err)
	assert.True(t, got.Equal(t2))

	// lists are independent
	got, err = s.LastEdited(ctx, "rss", "other")
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestPushedItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	found, err := s.PushedIDs(ctx, "toread", nil)
	require.NoError(t, err)
	assert.Empty(t, found)

	require.NoError(t, s.MarkPushed(ctx, []PushedItem{
		{Namespace: "toread", ItemID: "a", Source: "rss", Title: "Alpha"},
		{Namespace: "toread", ItemID: "b", Source: "rss", Title: "Beta"},
		{Namespace: "other", ItemID: "c", Source: "rss", Title: "Gamma"},
	}))
	// re-push is an upsert
	require.NoError(t, s.MarkPushed(ctx, []PushedItem{{Namespace: "toread", ItemID: "a", Source: "rss", Title: "Alpha 2"}}))

	found, err = s.PushedIDs(ctx, "toread", []string{"a", "c", "z"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a": true}, found)

	recent, err := s.RecentPushed(ctx, "toread", time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	titles := []string{recent[0].Title, recent[1].Title}
	assert.ElementsMatch(t, []string{"Alpha 2", "Beta"}, titles)
}

func TestRunStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stats := []RunStat{
		{RunID: "r1", Label: "Article", Counts: map[string]int{"raw": 3, "deduped": 2}},
		{RunID: "r1", Label: "RSS", Target: "notion", Pushed: 1},
	}
	require.NoError(t, s.AddRunStats(ctx, stats))
	assert.NotEmpty(t, stats[0].ID)

	got, err := s.ListRunStats(ctx, RunStatListOpts{Label: "Article"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].Counts["raw"])
	assert.Equal(t, "r1", got[0].RunID)

	got, err = s.ListRunStats(ctx, RunStatListOpts{RunID: "r1"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.ListRunStats(ctx, RunStatListOpts{RunID: "missing"})
	require.NoError(t, err)
	assert.Empty(t, got)
}
