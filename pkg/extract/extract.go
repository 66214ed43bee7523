// Package extract turns article web pages into clean markdown text.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/elonfeng/curator/pkg/retry"
)

const maxBodyBytes = 5 << 20

// Page is the readable part of a web page.
type Page struct {
	Title   string
	Byline  string
	Excerpt string
	Content string // markdown
}

// Extractor downloads pages and extracts their main content.
type Extractor struct {
	client    *http.Client
	userAgent string
	maxChars  int
}

// New creates an Extractor. maxChars <= 0 disables truncation.
func New(userAgent string, maxChars int) *Extractor {
	return &Extractor{
		client:    &http.Client{Timeout: 30 * time.Second},
		userAgent: userAgent,
		maxChars:  maxChars,
	}
}

// Fetch downloads rawURL and extracts its content.
func (e *Extractor) Fetch(ctx context.Context, rawURL string) (Page, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil || pageURL.Host == "" {
		return Page{}, fmt.Errorf("invalid url %q", rawURL)
	}

	resp, err := retry.HTTP(ctx, retry.Default, e.client, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", e.userAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml")
		return req, nil
	})
	if err != nil {
		return Page{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Page{}, fmt.Errorf("read %s: %w", rawURL, err)
	}
	return e.FromHTML(body, pageURL)
}

// FromHTML extracts content from an already downloaded document.
// Readability is tried first; goquery is the fallback for pages it rejects.
func (e *Extractor) FromHTML(body []byte, pageURL *url.URL) (Page, error) {
	if len(body) == 0 {
		return Page{}, fmt.Errorf("empty document")
	}

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil || strings.TrimSpace(article.TextContent) == "" {
		return e.fromGoquery(body)
	}

	md, err := htmltomarkdown.ConvertString(article.Content)
	if err != nil {
		md = article.TextContent
	}

	return Page{
		Title:   strings.TrimSpace(article.Title),
		Byline:  strings.TrimSpace(article.Byline),
		Excerpt: strings.TrimSpace(article.Excerpt),
		Content: Truncate(strings.TrimSpace(md), e.maxChars),
	}, nil
}

var noiseSelectors = strings.Join([]string{
	"script", "style", "noscript", "iframe", "svg",
	"header", "footer", "nav", "aside",
	".advertisement", ".ad", ".sidebar", ".comments",
	"[role=navigation]", "[role=banner]", "[role=contentinfo]",
}, ", ")

func (e *Extractor) fromGoquery(body []byte) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Page{}, fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title, _ = doc.Find("meta[property='og:title']").Attr("content")
	}
	excerpt, _ := doc.Find("meta[name='description']").Attr("content")

	doc.Find(noiseSelectors).Remove()

	sel := doc.Find("article, main, .content, .post-content, .article-content, #content").First()
	if sel.Length() == 0 {
		sel = doc.Find("body")
	}
	text := strings.Join(strings.Fields(sel.Text()), " ")
	if text == "" {
		return Page{}, fmt.Errorf("no content extracted")
	}

	return Page{
		Title:   title,
		Excerpt: strings.TrimSpace(excerpt),
		Content: Truncate(text, e.maxChars),
	}, nil
}

// Truncate cuts s to at most n runes, appending "..." when it cuts. n <= 0 keeps s whole.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
