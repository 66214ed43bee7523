package source

import (
	"context"
	"time"

	"github.com/elonfeng/curator/pkg/content"
	"github.com/elonfeng/curator/pkg/extract"
	"github.com/elonfeng/curator/pkg/notion"
)

// Source is the interface every inbox must implement. since is the last
// synced edit time; the zero time means the source picks its own window.
type Source interface {
	Kind() content.Kind
	Collect(ctx context.Context, since time.Time) ([]content.Item, error)
}

// DatabaseQuerier is the part of the Notion client inbox sources need.
type DatabaseQuerier interface {
	QueryDatabase(ctx context.Context, dbID string, opts notion.QueryOptions) ([]notion.Page, error)
}

// PageFetcher downloads and extracts an article. *extract.Extractor implements it.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (extract.Page, error)
}

// urlProperties are tried in order before falling back to any url typed property.
var urlProperties = []string{"URL", "Link", "url", "link"}

// pageURL finds the link a user saved in an inbox page.
func pageURL(p notion.Page) string {
	for _, name := range urlProperties {
		if v := p.Text(name); v != "" {
			return v
		}
	}
	for _, prop := range p.Properties {
		if prop.Type == "url" && prop.URL != nil && *prop.URL != "" {
			return *prop.URL
		}
	}
	return ""
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
