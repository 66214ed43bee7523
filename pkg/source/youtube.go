package source

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/elonfeng/curator/pkg/content"
	"github.com/elonfeng/curator/pkg/notion"
	"github.com/elonfeng/curator/pkg/retry"
)

const (
	defaultYouTubeAPI = "https://www.googleapis.com/youtube/v3"
	defaultTimedText  = "https://www.youtube.com/api/timedtext"
)

// YouTubeOptions configures the YouTube source. Either an inbox database or
// channels (with an API key) must be set.
type YouTubeOptions struct {
	Notion    DatabaseQuerier
	InboxDB   string
	APIKey    string
	Channels  []string
	Languages []string
	MaxVideos int

	// Overridable endpoints.
	APIBase       string
	TimedTextBase string
}

// YouTube collects videos saved to the Notion inbox and recent uploads of
// followed channels, with their transcripts as content.
type YouTube struct {
	client *http.Client
	opts   YouTubeOptions
	logger *slog.Logger
}

// NewYouTube creates the YouTube source.
func NewYouTube(opts YouTubeOptions, logger *slog.Logger) *YouTube {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.APIBase == "" {
		opts.APIBase = defaultYouTubeAPI
	}
	if opts.TimedTextBase == "" {
		opts.TimedTextBase = defaultTimedText
	}
	if len(opts.Languages) == 0 {
		opts.Languages = []string{"en"}
	}
	if opts.MaxVideos <= 0 {
		opts.MaxVideos = 20
	}
	return &YouTube{
		client: &http.Client{Timeout: 30 * time.Second},
		opts:   opts,
		logger: logger.With("component", "source.youtube"),
	}
}

func (y *YouTube) Kind() content.Kind { return content.KindYoutube }

func (y *YouTube) Collect(ctx context.Context, since time.Time) ([]content.Item, error) {
	useInbox := y.opts.Notion != nil && y.opts.InboxDB != ""
	useChannels := y.opts.APIKey != "" && len(y.opts.Channels) > 0
	if !useInbox && !useChannels {
		return nil, fmt.Errorf("youtube: no inbox database or channels configured (set NOTION_DATABASE_ID_INBOX_YOUTUBE or YOUTUBE_API_KEY)")
	}

	seen := make(map[string]bool)
	var items []content.Item
	add := func(batch []content.Item) {
		for _, it := range batch {
			if seen[it.ExternalID] {
				continue
			}
			seen[it.ExternalID] = true
			items = append(items, it)
		}
	}

	if useInbox {
		batch, err := y.inbox(ctx, since)
		if err != nil {
			return nil, err
		}
		add(batch)
	}

	if useChannels {
		cutoff := since
		if cutoff.IsZero() {
			cutoff = time.Now().Add(-7 * 24 * time.Hour)
		}
		for _, ch := range y.opts.Channels {
			batch, err := y.channel(ctx, ch, cutoff)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				y.logger.Warn("channel failed", "channel", ch, "error", err)
				continue
			}
			add(batch)
		}
	}

	if y.opts.APIKey != "" {
		y.enrichMetadata(ctx, items)
	}

	for i := range items {
		text, err := y.Transcript(ctx, items[i].ExternalID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			y.logger.Debug("no transcript", "video", items[i].ExternalID, "error", err)
			continue
		}
		items[i].Content = text
	}
	return items, nil
}

func (y *YouTube) inbox(ctx context.Context, since time.Time) ([]content.Item, error) {
	pages, err := y.opts.Notion.QueryDatabase(ctx, y.opts.InboxDB, notion.QueryOptions{EditedAfter: since})
	if err != nil {
		return nil, fmt.Errorf("youtube inbox: %w", err)
	}

	now := time.Now().UTC()
	var items []content.Item
	for _, p := range pages {
		link := pageURL(p)
		videoID := VideoID(link)
		if videoID == "" {
			y.logger.Debug("inbox page without video link", "page", p.ID, "url", link)
			continue
		}
		items = append(items, content.Item{
			ID:           "youtube:" + videoID,
			Source:       content.KindYoutube,
			ExternalID:   videoID,
			Title:        p.Title(),
			URL:          watchURL(videoID),
			Tags:         p.Names("Tags"),
			PublishedAt:  p.CreatedTime,
			FetchedAt:    now,
			LastEditedAt: p.LastEditedTime,
			Extra: map[string]any{
				"notion_page_url": p.URL,
			},
		})
	}
	return items, nil
}

func (y *YouTube) channel(ctx context.Context, channelID string, cutoff time.Time) ([]content.Item, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("channelId", channelID)
	params.Set("type", "video")
	params.Set("order", "date")
	params.Set("publishedAfter", cutoff.UTC().Format(time.RFC3339))
	params.Set("maxResults", strconv.Itoa(y.opts.MaxVideos))
	params.Set("key", y.opts.APIKey)

	var result ytSearchResult
	if err := y.getJSON(ctx, y.opts.APIBase+"/search?"+params.Encode(), &result); err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}

	now := time.Now().UTC()
	var items []content.Item
	for _, r := range result.Items {
		videoID := r.ID.VideoID
		if videoID == "" {
			continue
		}
		published := r.Snippet.PublishedAt
		if published.IsZero() {
			published = now
		}
		items = append(items, content.Item{
			ID:           "youtube:" + videoID,
			Source:       content.KindYoutube,
			ExternalID:   videoID,
			Title:        html.UnescapeString(r.Snippet.Title),
			URL:          watchURL(videoID),
			Author:       r.Snippet.ChannelTitle,
			Description:  truncate(r.Snippet.Description, 500),
			PublishedAt:  published,
			FetchedAt:    now,
			LastEditedAt: published,
			Extra: map[string]any{
				"channel_id": r.Snippet.ChannelID,
			},
		})
	}
	return items, nil
}

// enrichMetadata fills titles and descriptions of inbox videos. Failures only cost metadata.
func (y *YouTube) enrichMetadata(ctx context.Context, items []content.Item) {
	idx := make(map[string]int)
	var ids []string
	for i, it := range items {
		if it.Author != "" && it.Description != "" {
			continue
		}
		idx[it.ExternalID] = i
		ids = append(ids, it.ExternalID)
	}

	for start := 0; start < len(ids); start += 50 {
		end := min(start+50, len(ids))

		params := url.Values{}
		params.Set("part", "snippet")
		params.Set("id", strings.Join(ids[start:end], ","))
		params.Set("key", y.opts.APIKey)

		var result ytVideoResult
		if err := y.getJSON(ctx, y.opts.APIBase+"/videos?"+params.Encode(), &result); err != nil {
			y.logger.Warn("video metadata failed", "error", err)
			return
		}
		for _, v := range result.Items {
			i, ok := idx[v.ID]
			if !ok {
				continue
			}
			it := &items[i]
			if it.Title == "" {
				it.Title = html.UnescapeString(v.Snippet.Title)
			}
			if it.Author == "" {
				it.Author = v.Snippet.ChannelTitle
			}
			if it.Description == "" {
				it.Description = truncate(v.Snippet.Description, 500)
			}
			if !v.Snippet.PublishedAt.IsZero() {
				it.PublishedAt = v.Snippet.PublishedAt
			}
		}
	}
}

// Transcript returns the caption text of a video in the first available language.
func (y *YouTube) Transcript(ctx context.Context, videoID string) (string, error) {
	var lastErr error
	for _, lang := range y.opts.Languages {
		params := url.Values{}
		params.Set("v", videoID)
		params.Set("lang", lang)

		text, err := y.timedText(ctx, y.opts.TimedTextBase+"?"+params.Encode())
		if err != nil {
			lastErr = err
			continue
		}
		if text != "" {
			return text, nil
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no captions in %s", strings.Join(y.opts.Languages, ","))
	}
	return "", lastErr
}

func (y *YouTube) timedText(ctx context.Context, reqURL string) (string, error) {
	resp, err := retry.HTTP(ctx, retry.Default, y.client, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	})
	if err != nil {
		return "", fmt.Errorf("fetch transcript: %w", err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse transcript: %w", err)
	}

	var lines []string
	doc.Find("text").Each(func(_ int, s *goquery.Selection) {
		// captions are escaped twice
		line := strings.TrimSpace(html.UnescapeString(s.Text()))
		if line != "" {
			lines = append(lines, strings.Join(strings.Fields(line), " "))
		}
	})
	return strings.Join(lines, " "), nil
}

func (y *YouTube) getJSON(ctx context.Context, reqURL string, out any) error {
	resp, err := retry.HTTP(ctx, retry.Default, y.client, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// VideoID extracts the video id from the usual YouTube link shapes.
func VideoID(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	switch host {
	case "youtu.be":
		return strings.Trim(u.Path, "/")
	case "youtube.com", "music.youtube.com":
		if v := u.Query().Get("v"); v != "" {
			return v
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) == 2 && (parts[0] == "shorts" || parts[0] == "embed" || parts[0] == "live") {
			return parts[1]
		}
	}
	return ""
}

func watchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

type ytSearchResult struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet ytSnippet `json:"snippet"`
	} `json:"items"`
}

type ytSnippet struct {
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ChannelTitle string    `json:"channelTitle"`
	ChannelID    string    `json:"channelId"`
	PublishedAt  time.Time `json:"publishedAt"`
}

type ytVideoResult struct {
	Items []struct {
		ID      string    `json:"id"`
		Snippet ytSnippet `json:"snippet"`
	} `json:"items"`
}
