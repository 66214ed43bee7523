package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/curator/pkg/content"
	"github.com/elonfeng/curator/pkg/extract"
	"github.com/elonfeng/curator/pkg/notion"
)

type fakeInbox struct {
	pages []notion.Page
	opts  notion.QueryOptions
	err   error
}

func (f *fakeInbox) QueryDatabase(_ context.Context, _ string, opts notion.QueryOptions) ([]notion.Page, error) {
	f.opts = opts
	return f.pages, f.err
}

type fakeFetcher struct {
	pages map[string]extract.Page
}

func (f fakeFetcher) Fetch(_ context.Context, rawURL string) (extract.Page, error) {
	p, ok := f.pages[rawURL]
	if !ok {
		return extract.Page{}, errors.New("404")
	}
	return p, nil
}

func strPtr(s string) *string { return &s }

func inboxPage(id, title, link string, edited time.Time) notion.Page {
	props := map[string]notion.Property{
		"Name": {Type: "title", Title: []notion.RichText{{PlainText: title}}},
	}
	if link != "" {
		props["URL"] = notion.Property{Type: "url", URL: strPtr(link)}
	}
	return notion.Page{ID: id, LastEditedTime: edited, Properties: props}
}

func TestArticleCollect(t *testing.T) {
	edited := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	inbox := &fakeInbox{pages: []notion.Page{
		inboxPage("p1", "", "https://blog.example/a", edited),
		inboxPage("p2", "Saved title", "https://blog.example/missing", edited.Add(time.Hour)),
		inboxPage("p3", "no link", "", edited),
	}}
	fetcher := fakeFetcher{pages: map[string]extract.Page{
		"https://blog.example/a": {Title: "Extracted", Byline: "Ann", Excerpt: "short", Content: "body text"},
	}}
	since := edited.Add(-time.Hour)

	items, err := NewArticle(inbox, fetcher, "db", nil).Collect(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, since, inbox.opts.EditedAfter)

	require.Len(t, items, 2)
	assert.Equal(t, "article:p1", items[0].ID)
	assert.Equal(t, content.KindArticle, items[0].Source)
	assert.Equal(t, "Extracted", items[0].Title)
	assert.Equal(t, "Ann", items[0].Author)
	assert.Equal(t, "body text", items[0].Content)
	assert.Equal(t, edited, items[0].LastEditedAt)

	// extraction failure keeps the item
	assert.Equal(t, "Saved title", items[1].Title)
	assert.Empty(t, items[1].Content)
}

func TestArticleNeedsDatabase(t *testing.T) {
	_, err := NewArticle(&fakeInbox{}, fakeFetcher{}, "", nil).Collect(context.Background(), time.Time{})
	assert.Error(t, err)
}

const feedXML = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Blog</title>
<item><title>Fresh Go post</title><link>https://blog.example/fresh</link><guid>g1</guid>
<description>&lt;p&gt;Hello &lt;b&gt;gophers&lt;/b&gt;&lt;/p&gt;</description><pubDate>%s</pubDate></item>
<item><title>Sponsored crypto deal</title><link>https://blog.example/ad</link><guid>g2</guid><pubDate>%s</pubDate></item>
<item><title>Old post</title><link>https://blog.example/old</link><guid>g3</guid><pubDate>%s</pubDate></item>
</channel></rss>`

func TestRSSCollect(t *testing.T) {
	now := time.Now().UTC()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, feedXML,
			now.Add(-time.Hour).Format(time.RFC1123Z),
			now.Add(-time.Hour).Format(time.RFC1123Z),
			now.Add(-72*time.Hour).Format(time.RFC1123Z))
	}))
	defer srv.Close()

	rss := NewRSS([]RSSFeed{
		{Name: "blog", URL: srv.URL + "/feed"},
		{Name: "broken", URL: srv.URL + "/broken"},
	}, 24*time.Hour, []string{"Crypto"}, nil)

	items, err := rss.Collect(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, items, 1)

	it := items[0]
	assert.Equal(t, "rss:blog:g1", it.ID)
	assert.Equal(t, content.KindRSS, it.Source)
	assert.Equal(t, "https://blog.example/fresh", it.URL)
	assert.Contains(t, it.Content, "**gophers**")
	assert.NotContains(t, it.Content, "<b>")
	assert.Equal(t, "blog", it.Extra["feed_name"])
}

func TestRSSSinceCutoff(t *testing.T) {
	now := time.Now().UTC()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, feedXML,
			now.Add(-time.Hour).Format(time.RFC1123Z),
			now.Add(-time.Hour).Format(time.RFC1123Z),
			now.Add(-72*time.Hour).Format(time.RFC1123Z))
	}))
	defer srv.Close()

	rss := NewRSS([]RSSFeed{{Name: "blog", URL: srv.URL}}, 24*time.Hour, nil, nil)
	items, err := rss.Collect(context.Background(), now.Add(-100*time.Hour))
	require.NoError(t, err)
	assert.Len(t, items, 3)

	items, err = rss.Collect(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestVideoID(t *testing.T) {
	tests := map[string]string{
		"https://www.youtube.com/watch?v=abc123&t=10": "abc123",
		"https://youtu.be/xyz789":                     "xyz789",
		"https://m.youtube.com/shorts/short1":         "short1",
		"https://youtube.com/embed/emb1":              "emb1",
		"https://vimeo.com/123":                       "",
		"not a url":                                   "",
	}
	for link, want := range tests {
		assert.Equal(t, want, VideoID(link), link)
	}
}

func TestYouTubeCollect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/search":
			assert.Equal(t, "chan1", r.URL.Query().Get("channelId"))
			fmt.Fprint(w, `{"items":[
				{"id":{"videoId":"vid2"},"snippet":{"title":"Channel upload","channelTitle":"Chan","channelId":"chan1","description":"d","publishedAt":"2024-05-01T10:00:00Z"}},
				{"id":{"videoId":"vid1"},"snippet":{"title":"dup","channelTitle":"Chan","channelId":"chan1","description":"d","publishedAt":"2024-05-01T09:00:00Z"}}
			]}`)
		case r.URL.Path == "/api/videos":
			fmt.Fprint(w, `{"items":[{"id":"vid1","snippet":{"title":"ignored","channelTitle":"Inbox Channel","description":"from api"}}]}`)
		case r.URL.Path == "/timedtext":
			if r.URL.Query().Get("v") == "vid1" && r.URL.Query().Get("lang") == "en" {
				fmt.Fprint(w, `<?xml version="1.0" encoding="utf-8" ?><transcript><text start="0" dur="1">it&amp;#39;s</text><text start="1" dur="1">a   test</text></transcript>`)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	inbox := &fakeInbox{pages: []notion.Page{
		inboxPage("p1", "Inbox video", "https://youtu.be/vid1", time.Now()),
		inboxPage("p2", "Not a video", "https://blog.example/x", time.Now()),
	}}
	yt := NewYouTube(YouTubeOptions{
		Notion:        inbox,
		InboxDB:       "db",
		APIKey:        "key",
		Channels:      []string{"chan1"},
		APIBase:       srv.URL + "/api",
		TimedTextBase: srv.URL + "/timedtext",
	}, nil)

	items, err := yt.Collect(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "youtube:vid1", items[0].ID)
	assert.Equal(t, "Inbox video", items[0].Title)
	assert.Equal(t, "Inbox Channel", items[0].Author)
	assert.Equal(t, "from api", items[0].Description)
	assert.Equal(t, "it's a test", items[0].Content)

	assert.Equal(t, "youtube:vid2", items[1].ID)
	assert.Equal(t, content.KindYoutube, items[1].Source)
	assert.Empty(t, items[1].Content)
	assert.True(t, strings.HasSuffix(items[1].URL, "v=vid2"))
}

func TestYouTubeNeedsInput(t *testing.T) {
	_, err := NewYouTube(YouTubeOptions{}, nil).Collect(context.Background(), time.Time{})
	assert.Error(t, err)
}
