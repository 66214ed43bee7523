// Package score rates, ranks and filters items for the reading list.
package score

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/elonfeng/curator/pkg/cache"
	"github.com/elonfeng/curator/pkg/content"
	"github.com/elonfeng/curator/pkg/llm"
)

// Evaluator rates a batch of items. *llm.Evaluator implements it.
type Evaluator interface {
	Evaluate(ctx context.Context, items []content.Item) (map[string]llm.Evaluation, error)
}

// Scorer assigns relevance scores. With an Evaluator the model's score is the
// base; without one, or when the model call fails, the keyword heuristic is.
type Scorer struct {
	eval     Evaluator // nil = heuristic only
	interest *Interest
	cache    *cache.Tiered // nil = no caching
	logger   *slog.Logger
}

// NewScorer creates a Scorer. eval and c may be nil.
func NewScorer(eval Evaluator, interest *Interest, c *cache.Tiered, logger *slog.Logger) *Scorer {
	if interest == nil {
		interest = NewInterest(nil, nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{eval: eval, interest: interest, cache: c, logger: logger.With("component", "score")}
}

type cachedScore struct {
	Score      float64  `json:"score"`
	Related    int      `json:"related"`
	Topics     []string `json:"topics,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// Score rates items for the run starting at start. Each history title within
// maxDistance (Jaccard distance of significant tokens) adds 1 to the base
// score, capped at 10. Results are cached per start date and item.
func (s *Scorer) Score(ctx context.Context, items []content.Item, history []string, start time.Time, maxDistance float64) ([]content.Item, error) {
	out := make([]content.Item, len(items))
	copy(out, items)

	day := start.UTC().Format(time.DateOnly)
	dist := fmt.Sprintf("%.3f", maxDistance)

	var pending []int
	for i := range out {
		if hit, ok := cache.GetJSON[cachedScore](ctx, s.cache, cache.Key("score", day, dist, out[i].ID)); ok {
			apply(&out[i], hit)
			continue
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return out, nil
	}

	batch := make([]content.Item, len(pending))
	for j, i := range pending {
		batch[j] = out[i]
	}
	evals := s.evaluate(ctx, batch)

	historyTokens := make([][]string, len(history))
	for i, h := range history {
		historyTokens[i] = Tokens(h)
	}

	for _, i := range pending {
		it := &out[i]
		result := cachedScore{}
		if ev, ok := evals[it.ID]; ok {
			result.Score = ev.Score
			result.Topics = ev.Topics
			result.Categories = ev.Categories
		} else {
			result.Score = s.interest.Score(it.Title + " " + it.Description)
		}

		titleTokens := Tokens(it.Title)
		for _, h := range historyTokens {
			if len(titleTokens) > 0 && len(h) > 0 && Distance(titleTokens, h) <= maxDistance {
				result.Related++
			}
		}
		result.Score = min(10, result.Score+float64(result.Related))

		apply(it, result)
		cache.SetJSON(ctx, s.cache, cache.Key("score", day, dist, it.ID), result)
	}
	return out, nil
}

// Rank rates items and orders them by score, highest first. Ties keep input order.
func (s *Scorer) Rank(ctx context.Context, items []content.Item) ([]content.Item, error) {
	out := make([]content.Item, len(items))
	copy(out, items)

	evals := s.evaluate(ctx, out)
	for i := range out {
		if ev, ok := evals[out[i].ID]; ok {
			out[i].Score = ev.Score
			out[i].Topics = ev.Topics
			out[i].Categories = ev.Categories
			continue
		}
		text := out[i].Title + " " + out[i].Description
		out[i].Score = s.interest.Score(text)
		if len(out[i].Topics) == 0 {
			out[i].Topics = s.interest.Matches(text)
		}
	}

	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	return out, nil
}

// evaluate returns model evaluations, or nil when there is no model or it failed.
func (s *Scorer) evaluate(ctx context.Context, items []content.Item) map[string]llm.Evaluation {
	if s.eval == nil || len(items) == 0 {
		return nil
	}
	evals, err := s.eval.Evaluate(ctx, items)
	if err != nil {
		s.logger.Warn("llm evaluation failed, using keyword heuristic", "items", len(items), "error", err)
		return nil
	}
	s.logger.Debug("llm evaluation", "items", len(items), "evaluated", len(evals))
	return evals
}

func apply(it *content.Item, r cachedScore) {
	it.Score = r.Score
	it.Related = r.Related
	if len(r.Topics) > 0 {
		it.Topics = r.Topics
	}
	if len(r.Categories) > 0 {
		it.Categories = r.Categories
	}
}
