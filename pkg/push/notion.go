package push

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/elonfeng/curator/pkg/content"
	"github.com/elonfeng/curator/pkg/notion"
)

// PageCreator is the part of the Notion client the target needs.
type PageCreator interface {
	CreatePage(ctx context.Context, dbID string, props map[string]any, children []notion.Block) (notion.Page, error)
}

// Notion creates one page per item in the reading list database.
type Notion struct {
	client PageCreator
	dbID   string
	logger *slog.Logger
}

// NewNotion creates the notion target.
func NewNotion(client PageCreator, dbID string, logger *slog.Logger) *Notion {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notion{client: client, dbID: dbID, logger: logger.With("component", "push.notion")}
}

func (n *Notion) Name() string { return "notion" }

func (n *Notion) Push(ctx context.Context, label string, items []content.Item) (Report, error) {
	report := Report{Target: n.Name()}
	if n.dbID == "" {
		return report, fmt.Errorf("reading list database id is not configured")
	}

	for _, it := range items {
		if it.Title == "" && it.URL == "" {
			report.Skipped++
			continue
		}
		page, err := n.client.CreatePage(ctx, n.dbID, pageProperties(label, it), pageBody(it))
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			n.logger.Warn("create page failed", "item", it.ID, "error", err)
			report.Failed++
			continue
		}
		report.ok(it.ID, page.URL)
	}
	return report, nil
}

func pageProperties(label string, it content.Item) map[string]any {
	title := it.Title
	if title == "" {
		title = it.URL
	}
	props := map[string]any{
		"Name":   notion.TitleProp(title),
		"URL":    notion.URLProp(it.URL),
		"Source": notion.SelectProp(label),
		"Score":  notion.NumberProp(it.Score),
	}
	if it.Summary != "" {
		props["Summary"] = notion.RichTextProp(it.Summary)
	}
	if it.Author != "" {
		props["Author"] = notion.RichTextProp(it.Author)
	}
	if len(it.Topics) > 0 {
		props["Topics"] = notion.MultiSelectProp(it.Topics)
	}
	if len(it.Categories) > 0 {
		props["Categories"] = notion.MultiSelectProp(it.Categories)
	}
	if !it.PublishedAt.IsZero() {
		props["Published"] = notion.DateProp(it.PublishedAt.UTC().Format(time.RFC3339))
	}
	return props
}

func pageBody(it content.Item) []notion.Block {
	var blocks []notion.Block
	if it.URL != "" {
		blocks = append(blocks, notion.BookmarkBlock(it.URL))
	}
	if it.Summary != "" {
		blocks = append(blocks, notion.ParagraphBlocks(it.Summary)...)
	}
	return blocks
}
