package operator

import (
	"context"

	"github.com/elonfeng/curator/internal/config"
	"github.com/elonfeng/curator/pkg/content"
)

// The RSS filter keeps one entry per run so the reading list is not flooded.
// --topics-top-k, --categories-top-k and --min-score-to-rank do not apply here.
const (
	rssTopK     = 1
	rssMinScore = 4
)

// ArticleOperator: dedup, summarize, rank, push.
type ArticleOperator struct{ *base }

func (o *ArticleOperator) Process(ctx context.Context, data content.Collection, opts *config.RunOptions) ([]Stat, error) {
	o.logger.Info("processing", "items", len(data))

	deduped, err := o.Dedup(ctx, data, ToRead)
	if err != nil {
		return nil, err
	}
	summarized, err := o.Summarize(ctx, deduped)
	if err != nil {
		return nil, err
	}
	ranked, err := o.Rank(ctx, summarized)
	if err != nil {
		return nil, err
	}
	reports, err := o.Push(ctx, ranked, opts.Targets)
	if err != nil {
		return nil, err
	}

	return CreateStats(opts, o.kind.Label(), "", data, reports,
		Stage(StageDeduped, deduped),
		Stage(StageSummarized, summarized),
		Stage(StageRanked, ranked),
	), nil
}

// YoutubeOperator: optional dedup, summarize, rank, push.
type YoutubeOperator struct{ *base }

func (o *YoutubeOperator) Process(ctx context.Context, data content.Collection, opts *config.RunOptions) ([]Stat, error) {
	o.logger.Info("processing", "items", len(data), "dedup", opts.Dedup)

	deduped, err := o.maybeDedup(ctx, data, opts.Dedup)
	if err != nil {
		return nil, err
	}
	summarized, err := o.Summarize(ctx, deduped)
	if err != nil {
		return nil, err
	}
	ranked, err := o.Rank(ctx, summarized)
	if err != nil {
		return nil, err
	}
	reports, err := o.Push(ctx, ranked, opts.Targets)
	if err != nil {
		return nil, err
	}

	return CreateStats(opts, o.kind.Label(), "", data, reports,
		Stage(StageDeduped, deduped),
		Stage(StageSummarized, summarized),
		Stage(StageRanked, ranked),
	), nil
}

// RSSOperator: optional dedup, score, filter, summarize, push. No rank step.
type RSSOperator struct{ *base }

func (o *RSSOperator) Process(ctx context.Context, data content.Collection, opts *config.RunOptions) ([]Stat, error) {
	o.logger.Info("processing", "items", len(data), "dedup", opts.Dedup)

	deduped, err := o.maybeDedup(ctx, data, opts.Dedup)
	if err != nil {
		return nil, err
	}
	scored, err := o.Score(ctx, deduped, opts.Start, opts.MaxDistance)
	if err != nil {
		return nil, err
	}
	filtered := o.Filter(scored, rssTopK, rssMinScore)
	summarized, err := o.Summarize(ctx, filtered)
	if err != nil {
		return nil, err
	}
	reports, err := o.Push(ctx, summarized, opts.Targets)
	if err != nil {
		return nil, err
	}

	return CreateStats(opts, o.kind.Label(), "", data, reports,
		Stage(StageDeduped, deduped),
		Stage(StageScored, scored),
		Stage(StageFiltered, filtered),
		Stage(StageSummarized, summarized),
	), nil
}

// maybeDedup dedups, or only flattens the collection into its values when disabled.
func (b *base) maybeDedup(ctx context.Context, data content.Collection, dedup bool) ([]content.Item, error) {
	if !dedup {
		return data.Values(), nil
	}
	return b.Dedup(ctx, data, ToRead)
}
