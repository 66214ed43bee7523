// Package operator implements the per-source pipelines: pulling an inbox into
// a snapshot and turning a snapshot into pushed reading-list entries.
package operator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/elonfeng/curator/internal/config"
	"github.com/elonfeng/curator/internal/snapshot"
	"github.com/elonfeng/curator/internal/store"
	"github.com/elonfeng/curator/pkg/content"
	"github.com/elonfeng/curator/pkg/push"
	"github.com/elonfeng/curator/pkg/score"
	"github.com/elonfeng/curator/pkg/source"
)

// DefaultList is the last-edited watermark a sync run advances.
const DefaultList = "default"

// ToRead is the dedup namespace of the reading list.
const ToRead = "toread"

// Operator is the capability every source kind implements.
type Operator interface {
	Kind() content.Kind
	Pull(ctx context.Context) (content.Collection, error)
	Save(dataFolder, runID string, data content.Collection) (string, error)
	Load(dataFolder, runID string) (content.Collection, error)
	UpdateLastEdited(ctx context.Context, data content.Collection, list string) error
	Process(ctx context.Context, data content.Collection, opts *config.RunOptions) ([]Stat, error)
}

// Summarizer writes a summary for one item. *llm.Summarizer implements it.
type Summarizer interface {
	Summarize(ctx context.Context, it content.Item) (string, error)
}

// Pusher delivers items to named targets. *push.Manager implements it.
type Pusher interface {
	Push(ctx context.Context, label string, items []content.Item, targets []string) ([]push.Report, error)
}

// Deps are the collaborators shared by all operators.
type Deps struct {
	Store      store.Store
	Scorer     *score.Scorer
	Summarizer Summarizer // nil = extractive summaries
	Pusher     Pusher
	Logger     *slog.Logger
}

// New returns the operator for kind. src may be nil when the operator is only used to process snapshots.
func New(kind content.Kind, src source.Source, deps Deps) (Operator, error) {
	if deps.Store == nil {
		return nil, errors.New("operator: store is required")
	}
	if src != nil && src.Kind() != kind {
		return nil, fmt.Errorf("operator %s: source collects %s", kind, src.Kind())
	}
	if deps.Scorer == nil {
		deps.Scorer = score.NewScorer(nil, nil, nil, deps.Logger)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	b := &base{
		kind:   kind,
		src:    src,
		deps:   deps,
		logger: deps.Logger.With("component", "operator", "source", kind.Slug()),
	}
	switch kind {
	case content.KindArticle:
		return &ArticleOperator{base: b}, nil
	case content.KindYoutube:
		return &YoutubeOperator{base: b}, nil
	case content.KindRSS:
		return &RSSOperator{base: b}, nil
	default:
		return nil, fmt.Errorf("%w: %q", content.ErrUnknownKind, string(kind))
	}
}

// base holds what the three operators have in common.
type base struct {
	kind   content.Kind
	src    source.Source
	deps   Deps
	logger *slog.Logger
}

func (b *base) Kind() content.Kind { return b.kind }

// Pull collects everything edited since the last synced watermark.
func (b *base) Pull(ctx context.Context) (content.Collection, error) {
	if b.src == nil {
		return nil, fmt.Errorf("pull %s: no source configured", b.kind.Slug())
	}

	since, err := b.deps.Store.LastEdited(ctx, b.kind.Slug(), DefaultList)
	if err != nil {
		return nil, fmt.Errorf("pull %s: %w", b.kind.Slug(), err)
	}

	items, err := b.src.Collect(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("pull %s: %w", b.kind.Slug(), err)
	}

	data := make(content.Collection, len(items))
	for _, it := range items {
		data.Add(it)
	}
	b.logger.Debug("pulled", "since", since, "items", len(data))
	return data, nil
}

func (b *base) Save(dataFolder, runID string, data content.Collection) (string, error) {
	return snapshot.Save(dataFolder, runID, b.kind.SnapshotName(), data)
}

func (b *base) Load(dataFolder, runID string) (content.Collection, error) {
	return snapshot.Load(dataFolder, runID, b.kind.SnapshotName())
}

// UpdateLastEdited moves the watermark of list to the newest edit in data.
func (b *base) UpdateLastEdited(ctx context.Context, data content.Collection, list string) error {
	latest := data.LatestEdit()
	if latest.IsZero() {
		return nil
	}
	if err := b.deps.Store.SetLastEdited(ctx, b.kind.Slug(), list, latest); err != nil {
		return fmt.Errorf("update last edited %s: %w", b.kind.Slug(), err)
	}
	return nil
}
