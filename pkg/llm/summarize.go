package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/elonfeng/curator/pkg/content"
)

const summarySystem = `You summarize articles and video transcripts for a personal reading list.
Write 2 to 4 plain sentences covering the main point and why it matters.
No preamble, no markdown, no bullet points.`

// Summarizer produces short summaries with a language model.
type Summarizer struct {
	llm      Completer
	maxChars int
}

// NewSummarizer creates a Summarizer. Item text beyond maxChars is cut before sending.
func NewSummarizer(c Completer, maxChars int) *Summarizer {
	return &Summarizer{llm: c, maxChars: maxChars}
}

// Summarize returns a summary for a single item.
func (s *Summarizer) Summarize(ctx context.Context, it content.Item) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", it.Title)
	if it.Author != "" {
		fmt.Fprintf(&b, "Author: %s\n", it.Author)
	}
	kind := "Article"
	if it.Source == content.KindYoutube {
		kind = "Transcript"
	}
	fmt.Fprintf(&b, "%s:\n%s", kind, truncate(it.Text(), s.maxChars))

	out, err := s.llm.Complete(ctx, summarySystem, b.String())
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", it.ID, err)
	}
	return strings.TrimSpace(out), nil
}
