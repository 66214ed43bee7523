package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/mmcdole/gofeed"

	"github.com/elonfeng/curator/pkg/content"
	"github.com/elonfeng/curator/pkg/retry"
)

// RSSFeed is a named RSS/Atom feed URL.
type RSSFeed struct {
	Name string
	URL  string
}

// RSS collects entries from RSS/Atom feeds.
type RSS struct {
	client  *http.Client
	parser  *gofeed.Parser
	feeds   []RSSFeed
	maxAge  time.Duration
	exclude []string
	logger  *slog.Logger
}

// NewRSS creates the feed source. maxAge bounds the window on the first sync.
func NewRSS(feeds []RSSFeed, maxAge time.Duration, exclude []string, logger *slog.Logger) *RSS {
	if logger == nil {
		logger = slog.Default()
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	var ex []string
	for _, e := range exclude {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			ex = append(ex, e)
		}
	}
	return &RSS{
		client:  &http.Client{Timeout: 30 * time.Second},
		parser:  gofeed.NewParser(),
		feeds:   feeds,
		maxAge:  maxAge,
		exclude: ex,
		logger:  logger.With("component", "source.rss"),
	}
}

func (r *RSS) Kind() content.Kind { return content.KindRSS }

// Collect reads every feed. A broken feed is logged and skipped.
func (r *RSS) Collect(ctx context.Context, since time.Time) ([]content.Item, error) {
	cutoff := since
	if cutoff.IsZero() {
		cutoff = time.Now().Add(-r.maxAge)
	}

	var all []content.Item
	for _, feed := range r.feeds {
		items, err := r.collectFeed(ctx, feed, cutoff)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn("feed failed", "feed", feed.Name, "error", err)
			continue
		}
		all = append(all, items...)
	}
	return all, nil
}

func (r *RSS) collectFeed(ctx context.Context, feed RSSFeed, cutoff time.Time) ([]content.Item, error) {
	resp, err := retry.HTTP(ctx, retry.Default, r.client, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "curator/1.0")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch rss %s: %w", feed.Name, err)
	}
	defer resp.Body.Close()

	parsed, err := r.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse rss %s: %w", feed.Name, err)
	}

	now := time.Now().UTC()
	var items []content.Item
	for _, entry := range parsed.Items {
		published := now
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		}
		edited := published
		if entry.UpdatedParsed != nil && entry.UpdatedParsed.After(edited) {
			edited = entry.UpdatedParsed.UTC()
		}

		if !edited.After(cutoff) {
			continue
		}
		if r.excluded(entry.Title + " " + entry.Description) {
			continue
		}

		link := entry.Link
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0]
		}
		guid := coalesce(entry.GUID, link)
		if guid == "" {
			continue
		}

		author := ""
		if entry.Author != nil {
			author = entry.Author.Name
		}

		items = append(items, content.Item{
			ID:           fmt.Sprintf("rss:%s:%s", feed.Name, guid),
			Source:       content.KindRSS,
			ExternalID:   guid,
			Title:        strings.TrimSpace(entry.Title),
			URL:          link,
			Author:       author,
			Description:  truncate(markdown(entry.Description), 500),
			Content:      markdown(coalesce(entry.Content, entry.Description)),
			Tags:         entry.Categories,
			PublishedAt:  published,
			FetchedAt:    now,
			LastEditedAt: edited,
			Extra: map[string]any{
				"feed_name": feed.Name,
			},
		})
	}
	return items, nil
}

func (r *RSS) excluded(text string) bool {
	lower := strings.ToLower(text)
	for _, ex := range r.exclude {
		if strings.Contains(lower, ex) {
			return true
		}
	}
	return false
}

// markdown converts feed HTML to markdown, keeping the raw text if conversion fails.
func markdown(html string) string {
	if !strings.Contains(html, "<") {
		return strings.TrimSpace(html)
	}
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return strings.TrimSpace(html)
	}
	return strings.TrimSpace(md)
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
