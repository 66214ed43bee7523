package operator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/elonfeng/curator/internal/store"
	"github.com/elonfeng/curator/pkg/content"
	"github.com/elonfeng/curator/pkg/push"
	"github.com/elonfeng/curator/pkg/score"
)

const (
	// extractiveMax bounds summaries built without a language model.
	extractiveMax = 500

	historyWindow = 30 * 24 * time.Hour
	historyLimit  = 500
)

// Dedup drops items already pushed into the target namespace, then in-batch
// duplicates sharing a content hash. The result is ordered by item ID.
func (b *base) Dedup(ctx context.Context, data content.Collection, target string) ([]content.Item, error) {
	items := data.Values()
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}

	pushed, err := b.deps.Store.PushedIDs(ctx, target, ids)
	if err != nil {
		return nil, fmt.Errorf("dedup %s: %w", b.kind.Slug(), err)
	}

	seen := make(map[string]bool, len(items))
	out := make([]content.Item, 0, len(items))
	for _, it := range items {
		if pushed[it.ID] {
			continue
		}
		h := it.Hash()
		if seen[h] {
			continue
		}
		seen[h] = true
		it.Deduped = true
		out = append(out, it)
	}

	b.logger.Info("dedup", "target", target, "in", len(items), "out", len(out))
	return out, nil
}

// Summarize attaches a summary to every item. Model failures fall back to an
// extractive summary and never drop the item.
func (b *base) Summarize(ctx context.Context, items []content.Item) ([]content.Item, error) {
	out := make([]content.Item, len(items))
	copy(out, items)

	for i := range out {
		if b.deps.Summarizer == nil {
			out[i].Summary = Extractive(out[i].Text(), extractiveMax)
			continue
		}
		s, err := b.deps.Summarizer.Summarize(ctx, out[i])
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			b.logger.Warn("summarize failed", "item", out[i].ID, "error", err)
			s = out[i].Description
			if s == "" {
				s = Extractive(out[i].Text(), extractiveMax)
			}
		}
		out[i].Summary = s
	}
	return out, nil
}

// Rank orders items by relevance, highest first.
func (b *base) Rank(ctx context.Context, items []content.Item) ([]content.Item, error) {
	return b.deps.Scorer.Rank(ctx, items)
}

// Score rates items against the reading list history of the last month.
func (b *base) Score(ctx context.Context, items []content.Item, start time.Time, maxDistance float64) ([]content.Item, error) {
	recent, err := b.deps.Store.RecentPushed(ctx, ToRead, start.Add(-historyWindow), historyLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	history := make([]string, 0, len(recent))
	for _, p := range recent {
		if p.Title != "" {
			history = append(history, p.Title)
		}
	}
	return b.deps.Scorer.Score(ctx, items, history, start, maxDistance)
}

// Filter keeps at most k items scoring at least minScore.
func (b *base) Filter(items []content.Item, k int, minScore float64) []content.Item {
	return score.Filter(items, k, minScore)
}

// Push sends items to targets and records every delivered item in the
// reading list namespace, including when some targets failed.
func (b *base) Push(ctx context.Context, items []content.Item, targets []string) ([]push.Report, error) {
	if b.deps.Pusher == nil {
		return nil, fmt.Errorf("push %s: no targets configured", b.kind.Slug())
	}
	reports, pushErr := b.deps.Pusher.Push(ctx, b.kind.Label(), items, targets)

	byID := make(map[string]content.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	now := time.Now().UTC()
	var records []store.PushedItem
	for _, r := range reports {
		for _, id := range r.PushedIDs {
			it := byID[id]
			records = append(records, store.PushedItem{
				Namespace: ToRead,
				ItemID:    id,
				Source:    b.kind.Slug(),
				Title:     it.Title,
				URL:       it.URL,
				PushedAt:  now,
			})
		}
	}
	if len(records) > 0 {
		if err := b.deps.Store.MarkPushed(ctx, records); err != nil {
			return reports, fmt.Errorf("record pushed items: %w", err)
		}
	}

	if pushErr != nil {
		return reports, fmt.Errorf("push %s: %w", b.kind.Slug(), pushErr)
	}
	return reports, nil
}

// Extractive returns the leading sentences of text, up to maxChars runes.
func Extractive(text string, maxChars int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len([]rune(text)) <= maxChars {
		return text
	}

	var b strings.Builder
	for _, sentence := range sentences(text) {
		if len([]rune(b.String()))+len([]rune(sentence))+1 > maxChars {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(sentence)
	}
	if b.Len() > 0 {
		return b.String()
	}

	runes := []rune(text)
	return string(runes[:maxChars]) + "..."
}

func sentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 == len(text) || text[i+1] == ' ' {
				out = append(out, strings.TrimSpace(text[start:i+1]))
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}
