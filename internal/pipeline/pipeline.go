// Package pipeline runs the sync and save programs over the requested sources, in order.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/elonfeng/curator/internal/config"
	"github.com/elonfeng/curator/internal/store"
	"github.com/elonfeng/curator/pkg/content"
	"github.com/elonfeng/curator/pkg/operator"
)

// Operators maps each source kind to its operator.
type Operators map[content.Kind]operator.Operator

func (o Operators) get(kind content.Kind) (operator.Operator, error) {
	op, ok := o[kind]
	if !ok {
		return nil, fmt.Errorf("no operator for source %s", kind)
	}
	return op, nil
}

func warnUnknown(logger *slog.Logger, opts *config.RunOptions) {
	for _, name := range opts.Unknown {
		logger.Warn("unknown source, skipping", "source", name)
	}
}

// SyncResult describes one pulled source.
type SyncResult struct {
	Source content.Kind `json:"source"`
	Items  int          `json:"items"`
	Path   string       `json:"path"`
}

// Syncer pulls every requested source and persists its snapshot.
type Syncer struct {
	ops    Operators
	logger *slog.Logger
}

// NewSyncer creates a Syncer.
func NewSyncer(ops Operators, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{ops: ops, logger: logger.With("component", "sync")}
}

// Run pulls, saves and advances the watermark of each source. The first error aborts the run.
func (s *Syncer) Run(ctx context.Context, opts *config.RunOptions) ([]SyncResult, error) {
	warnUnknown(s.logger, opts)

	var results []SyncResult
	for _, kind := range opts.Sources {
		op, err := s.ops.get(kind)
		if err != nil {
			return results, err
		}
		s.logger.Info("pulling", "source", kind)

		data, err := op.Pull(ctx)
		if err != nil {
			return results, fmt.Errorf("sync %s: %w", kind, err)
		}
		switch kind {
		case content.KindYoutube:
			s.logger.Info("pulled youtube videos", "count", len(data))
		case content.KindRSS:
			s.logger.Info("pulled rss articles", "count", len(data))
		}

		path, err := op.Save(opts.DataFolder, opts.RunID, data)
		if err != nil {
			return results, fmt.Errorf("sync %s: %w", kind, err)
		}
		if err := op.UpdateLastEdited(ctx, data, operator.DefaultList); err != nil {
			return results, fmt.Errorf("sync %s: %w", kind, err)
		}
		results = append(results, SyncResult{Source: kind, Items: len(data), Path: path})
	}
	return results, nil
}

// Saver processes every requested snapshot and reports the stats.
type Saver struct {
	ops    Operators
	store  store.Store
	out    io.Writer
	logger *slog.Logger
}

// NewSaver creates a Saver. Stats are printed to out and, when st is not nil, recorded.
func NewSaver(ops Operators, st store.Store, out io.Writer, logger *slog.Logger) *Saver {
	if logger == nil {
		logger = slog.Default()
	}
	if out == nil {
		out = io.Discard
	}
	return &Saver{ops: ops, store: st, out: out, logger: logger.With("component", "save")}
}

// Run loads and processes each source in order, then prints all stats.
func (s *Saver) Run(ctx context.Context, opts *config.RunOptions) ([]operator.Stat, error) {
	warnUnknown(s.logger, opts)

	var stats []operator.Stat
	for _, kind := range opts.Sources {
		op, err := s.ops.get(kind)
		if err != nil {
			return stats, err
		}
		s.logger.Info("pushing data", "source", kind, "dedup", opts.Dedup)

		data, err := op.Load(opts.DataFolder, opts.RunID)
		if err != nil {
			return stats, fmt.Errorf("save %s: %w", kind, err)
		}
		st, err := op.Process(ctx, data, opts)
		if err != nil {
			return stats, fmt.Errorf("save %s: %w", kind, err)
		}
		stats = append(stats, st...)
	}

	fmt.Fprintln(s.out, "# Stats")
	for _, st := range stats {
		if err := st.Print(s.out); err != nil {
			return stats, fmt.Errorf("print stats: %w", err)
		}
	}

	if s.store != nil && len(stats) > 0 {
		rows := make([]store.RunStat, len(stats))
		for i, st := range stats {
			rows[i] = st.RunStat()
		}
		if err := s.store.AddRunStats(ctx, rows); err != nil {
			return stats, fmt.Errorf("record stats: %w", err)
		}
	}
	return stats, nil
}
