package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elonfeng/curator/pkg/content"
)

const evaluateSystem = `You are a reading-list curator. You evaluate a batch of articles, videos and feed entries
and decide how worthwhile each one is for a technically minded reader.`

const evaluatePrompt = `For each item, assign:
1. "score" (0-10): how worthwhile is it to read or watch?
   - 9-10: exceptional, original and highly relevant
   - 7-8: clearly worth the time
   - 5-6: decent but not essential
   - 3-4: low novelty or weak relevance
   - 0-2: noise, spam or off-topic
2. "topics": up to 3 short topic labels (e.g. "Go generics", "LLM evaluation")
3. "categories": up to 3 broad categories (e.g. "Engineering", "AI", "Business")
4. "reason" (1 sentence): why this score?

Be strict. Most items should score 5 or below.

Items:
%s

Respond with a JSON array. Each element must have: "id", "score" (integer 0-10), "topics", "categories", "reason".
Return ONLY the JSON array, no other text.`

// Evaluation is the model's verdict on one item.
type Evaluation struct {
	ID         string   `json:"id"`
	Score      float64  `json:"score"`
	Topics     []string `json:"topics"`
	Categories []string `json:"categories"`
	Reason     string   `json:"reason"`
}

// Evaluator scores items in batches.
type Evaluator struct {
	llm       Completer
	batchSize int
}

// NewEvaluator creates an Evaluator. batchSize <= 0 means 20 items per request.
func NewEvaluator(c Completer, batchSize int) *Evaluator {
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Evaluator{llm: c, batchSize: batchSize}
}

// Evaluate returns evaluations keyed by item ID. Items the model skipped are absent.
func (e *Evaluator) Evaluate(ctx context.Context, items []content.Item) (map[string]Evaluation, error) {
	out := make(map[string]Evaluation, len(items))
	for start := 0; start < len(items); start += e.batchSize {
		end := min(start+e.batchSize, len(items))
		results, err := e.evaluateBatch(ctx, items[start:end])
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			out[r.ID] = r
		}
	}
	return out, nil
}

func (e *Evaluator) evaluateBatch(ctx context.Context, items []content.Item) ([]Evaluation, error) {
	var lines []string
	for _, it := range items {
		line := fmt.Sprintf("- ID: %s | Source: %s | Title: %s", it.ID, it.Source, it.Title)
		if desc := it.Description; desc != "" {
			line += " | Desc: " + truncate(desc, 200)
		} else if it.Content != "" {
			line += " | Excerpt: " + truncate(strings.Join(strings.Fields(it.Content), " "), 300)
		}
		if it.URL != "" {
			line += " | URL: " + it.URL
		}
		lines = append(lines, line)
	}

	raw, err := e.llm.Complete(ctx, evaluateSystem, fmt.Sprintf(evaluatePrompt, strings.Join(lines, "\n")))
	if err != nil {
		return nil, fmt.Errorf("evaluate items: %w", err)
	}

	raw = cleanJSONResponse(raw)
	var results []Evaluation
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, fmt.Errorf("parse llm response: %w, content: %s", err, truncate(raw, 500))
	}
	for i := range results {
		results[i].Score = clamp(results[i].Score, 0, 10)
	}
	return results, nil
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
