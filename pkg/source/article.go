package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/elonfeng/curator/pkg/content"
	"github.com/elonfeng/curator/pkg/notion"
)

// Article collects links saved to the Notion article inbox and extracts their text.
type Article struct {
	notion  DatabaseQuerier
	fetcher PageFetcher
	dbID    string
	logger  *slog.Logger
}

// NewArticle creates the article inbox source.
func NewArticle(q DatabaseQuerier, fetcher PageFetcher, dbID string, logger *slog.Logger) *Article {
	if logger == nil {
		logger = slog.Default()
	}
	return &Article{notion: q, fetcher: fetcher, dbID: dbID, logger: logger.With("component", "source.article")}
}

func (a *Article) Kind() content.Kind { return content.KindArticle }

func (a *Article) Collect(ctx context.Context, since time.Time) ([]content.Item, error) {
	if a.dbID == "" {
		return nil, fmt.Errorf("article inbox: database id required (set NOTION_DATABASE_ID_INBOX_ARTICLE)")
	}

	pages, err := a.notion.QueryDatabase(ctx, a.dbID, notion.QueryOptions{EditedAfter: since})
	if err != nil {
		return nil, fmt.Errorf("article inbox: %w", err)
	}

	now := time.Now().UTC()
	var items []content.Item
	for _, p := range pages {
		link := pageURL(p)
		if link == "" {
			a.logger.Debug("inbox page without link", "page", p.ID)
			continue
		}

		it := content.Item{
			ID:           "article:" + p.ID,
			Source:       content.KindArticle,
			ExternalID:   p.ID,
			Title:        p.Title(),
			URL:          link,
			Tags:         p.Names("Tags"),
			PublishedAt:  p.CreatedTime,
			FetchedAt:    now,
			LastEditedAt: p.LastEditedTime,
			Extra:        map[string]any{"notion_page_url": p.URL},
		}

		page, err := a.fetcher.Fetch(ctx, link)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.logger.Warn("extract failed", "url", link, "error", err)
		} else {
			if it.Title == "" {
				it.Title = page.Title
			}
			it.Author = page.Byline
			it.Description = truncate(page.Excerpt, 500)
			it.Content = page.Content
		}
		if it.Title == "" {
			it.Title = link
		}
		items = append(items, it)
	}
	return items, nil
}
