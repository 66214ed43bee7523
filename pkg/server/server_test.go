package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/curator/internal/config"
	"github.com/elonfeng/curator/internal/logging"
	"github.com/elonfeng/curator/internal/pipeline"
	"github.com/elonfeng/curator/internal/scheduler"
	"github.com/elonfeng/curator/internal/snapshot"
	"github.com/elonfeng/curator/internal/store"
	"github.com/elonfeng/curator/pkg/content"
	"github.com/elonfeng/curator/pkg/operator"
)

type fakeStats struct {
	opts store.RunStatListOpts
}

func (f *fakeStats) ListRunStats(_ context.Context, opts store.RunStatListOpts) ([]store.RunStat, error) {
	f.opts = opts
	return []store.RunStat{{ID: "s1", Label: "RSS", Counts: map[string]int{"raw": 3}}}, nil
}

type blockingSync struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingSync) Run(_ context.Context, opts *config.RunOptions) ([]pipeline.SyncResult, error) {
	if b.started != nil {
		close(b.started)
		<-b.release
	}
	var out []pipeline.SyncResult
	for _, k := range opts.Sources {
		out = append(out, pipeline.SyncResult{Source: k, Items: 1})
	}
	return out, nil
}

func newTestServer(t *testing.T, dataFolder string, syncer SyncRunner) (*fakeStats, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	stats := &fakeStats{}
	s := New(stats, syncer, config.RawOptions{DataFolder: dataFolder}, 0, nil, logging.Discard())
	return stats, s.Handler()
}

func do(r http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestHealth(t *testing.T) {
	_, r := newTestServer(t, t.TempDir(), &blockingSync{})
	w := do(r, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSnapshot(t *testing.T) {
	dir := t.TempDir()
	_, err := snapshot.Save(dir, "r1", "rss.json", content.Collection{
		"b": {ID: "b", Title: "second"},
		"a": {ID: "a", Title: "first"},
	})
	require.NoError(t, err)
	_, r := newTestServer(t, dir, &blockingSync{})

	w := do(r, http.MethodGet, "/api/v1/snapshots/rss?run_id=r1")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Source string         `json:"source"`
		Count  int            `json:"count"`
		Data   []content.Item `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "RSS", body.Source)
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "a", body.Data[0].ID)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/snapshots/rss").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/snapshots/podcast").Code)
}

func TestStats(t *testing.T) {
	stats, r := newTestServer(t, t.TempDir(), &blockingSync{})

	w := do(r, http.MethodGet, "/api/v1/stats?label=RSS&limit=5")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "RSS", stats.opts.Label)
	assert.Equal(t, 5, stats.opts.Limit)
	assert.Contains(t, w.Body.String(), `"raw":3`)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/v1/stats?limit=x").Code)
}

func TestSync(t *testing.T) {
	_, r := newTestServer(t, t.TempDir(), &blockingSync{})

	w := do(r, http.MethodPost, "/api/v1/sync?sources=RSS,Nope")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Synced  []pipeline.SyncResult `json:"synced"`
		Unknown []string              `json:"unknown"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Synced, 1)
	assert.Equal(t, content.KindRSS, body.Synced[0].Source)
	assert.Equal(t, []string{"Nope"}, body.Unknown)
}

func TestSyncConflict(t *testing.T) {
	syncer := &blockingSync{started: make(chan struct{}), release: make(chan struct{})}
	_, r := newTestServer(t, t.TempDir(), syncer)

	first := make(chan int, 1)
	go func() { first <- do(r, http.MethodPost, "/api/v1/sync").Code }()
	<-syncer.started

	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/api/v1/sync").Code)

	close(syncer.release)
	assert.Equal(t, http.StatusOK, <-first)
}

type noopSave struct{}

func (noopSave) Run(context.Context, *config.RunOptions) ([]operator.Stat, error) { return nil, nil }

func TestSyncConflictWithScheduledRun(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var running sync.Mutex
	scheduled := &blockingSync{started: make(chan struct{}), release: make(chan struct{})}
	sched := scheduler.New(scheduled, noopSave{}, config.RawOptions{}, time.Hour, &running, logging.Discard())

	manual := &blockingSync{}
	r := New(&fakeStats{}, manual, config.RawOptions{DataFolder: t.TempDir()}, 0, &running, logging.Discard()).Handler()

	done := make(chan bool, 1)
	go func() { done <- sched.RunOnce(context.Background()) }()
	<-scheduled.started

	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/api/v1/sync").Code)

	close(scheduled.release)
	assert.True(t, <-done)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/v1/sync").Code)
}
