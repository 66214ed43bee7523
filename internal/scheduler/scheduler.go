package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/elonfeng/curator/internal/config"
	"github.com/elonfeng/curator/internal/pipeline"
	"github.com/elonfeng/curator/pkg/operator"
)

// SyncRunner is satisfied by *pipeline.Syncer.
type SyncRunner interface {
	Run(ctx context.Context, opts *config.RunOptions) ([]pipeline.SyncResult, error)
}

// SaveRunner is satisfied by *pipeline.Saver.
type SaveRunner interface {
	Run(ctx context.Context, opts *config.RunOptions) ([]operator.Stat, error)
}

// Scheduler runs sync followed by save on a fixed interval.
type Scheduler struct {
	syncer   SyncRunner
	saver    SaveRunner
	raw      config.RawOptions
	interval time.Duration
	logger   *slog.Logger

	// held for the whole of a run; shared with anything else that syncs
	running *sync.Mutex
}

// New creates a scheduler. raw is re-parsed on every run so an empty --start means the run's own start.
// running is shared with other sync triggers so runs never overlap; nil gets a private mutex.
func New(syncer SyncRunner, saver SaveRunner, raw config.RawOptions, interval time.Duration, running *sync.Mutex, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	if running == nil {
		running = &sync.Mutex{}
	}
	return &Scheduler{
		syncer:   syncer,
		saver:    saver,
		raw:      raw,
		interval: interval,
		logger:   logger.With("component", "scheduler"),
		running:  running,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("initial run")
	s.RunOnce(ctx)

	s.logger.Info("running", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopped")
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs one sync and, if it succeeded, one save. Errors are logged.
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	opts, err := s.raw.Parse(time.Now())
	if err != nil {
		s.logger.Error("invalid options", "error", err)
		return false
	}

	s.running.Lock()
	defer s.running.Unlock()

	started := time.Now()
	results, err := s.syncer.Run(ctx, opts)
	if err != nil {
		s.logger.Error("sync failed", "error", err)
		return false
	}
	total := 0
	for _, r := range results {
		total += r.Items
	}

	stats, err := s.saver.Run(ctx, opts)
	if err != nil {
		s.logger.Error("save failed", "error", err)
		return false
	}
	s.logger.Info("run complete", "pulled", total, "stats", len(stats), "took", time.Since(started).Round(time.Millisecond))
	return true
}
