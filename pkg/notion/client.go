// Package notion is a small client for the parts of the Notion API curator needs:
// querying inbox databases and creating pages in the reading list.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/elonfeng/curator/pkg/retry"
)

// APIVersion is sent as the Notion-Version header.
const APIVersion = "2022-06-28"

// ErrNoToken is returned when the client is used without an integration token.
var ErrNoToken = errors.New("notion token is not configured")

// Client talks to the Notion REST API. Requests are rate limited and retried.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   retry.Config
}

// New creates a client. rps <= 0 falls back to the documented average of 3 requests per second.
func New(token, baseURL string, rps float64) *Client {
	if baseURL == "" {
		baseURL = "https://api.notion.com"
	}
	if rps <= 0 {
		rps = 3
	}
	return &Client{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		retry:   retry.Default,
	}
}

// Page is a database row.
type Page struct {
	ID             string              `json:"id"`
	URL            string              `json:"url"`
	CreatedTime    time.Time           `json:"created_time"`
	LastEditedTime time.Time           `json:"last_edited_time"`
	Archived       bool                `json:"archived"`
	Properties     map[string]Property `json:"properties"`
}

// Property is a typed page property. Only the field matching Type is set.
type Property struct {
	Type        string     `json:"type"`
	Title       []RichText `json:"title,omitempty"`
	RichText    []RichText `json:"rich_text,omitempty"`
	URL         *string    `json:"url,omitempty"`
	Select      *Option    `json:"select,omitempty"`
	MultiSelect []Option   `json:"multi_select,omitempty"`
	Number      *float64   `json:"number,omitempty"`
	Date        *Date      `json:"date,omitempty"`
}

// RichText is a text span.
type RichText struct {
	Type      string `json:"type,omitempty"`
	PlainText string `json:"plain_text,omitempty"`
	Text      *Text  `json:"text,omitempty"`
}

// Text is the writable part of a RichText.
type Text struct {
	Content string `json:"content"`
	Link    *Link  `json:"link,omitempty"`
}

// Link is a hyperlink target.
type Link struct {
	URL string `json:"url"`
}

// Option is a select or multi-select value.
type Option struct {
	Name string `json:"name"`
}

// Date is a date property value.
type Date struct {
	Start string `json:"start"`
}

// Title returns the plain text of the page's title property.
func (p Page) Title() string {
	for _, prop := range p.Properties {
		if prop.Type == "title" {
			return plain(prop.Title)
		}
	}
	return ""
}

// Text returns a property's value as plain text, whatever its type.
func (p Page) Text(name string) string {
	prop, ok := p.Properties[name]
	if !ok {
		return ""
	}
	switch prop.Type {
	case "title":
		return plain(prop.Title)
	case "rich_text":
		return plain(prop.RichText)
	case "url":
		if prop.URL != nil {
			return *prop.URL
		}
	case "select":
		if prop.Select != nil {
			return prop.Select.Name
		}
	case "number":
		if prop.Number != nil {
			return fmt.Sprintf("%g", *prop.Number)
		}
	case "date":
		if prop.Date != nil {
			return prop.Date.Start
		}
	case "multi_select":
		names := make([]string, len(prop.MultiSelect))
		for i, o := range prop.MultiSelect {
			names[i] = o.Name
		}
		return strings.Join(names, ",")
	}
	return ""
}

// Names returns the option names of a multi-select property.
func (p Page) Names(name string) []string {
	prop, ok := p.Properties[name]
	if !ok || prop.Type != "multi_select" {
		return nil
	}
	names := make([]string, len(prop.MultiSelect))
	for i, o := range prop.MultiSelect {
		names[i] = o.Name
	}
	return names
}

func plain(spans []RichText) string {
	var b strings.Builder
	for _, s := range spans {
		if s.PlainText != "" {
			b.WriteString(s.PlainText)
		} else if s.Text != nil {
			b.WriteString(s.Text.Content)
		}
	}
	return b.String()
}

// QueryOptions narrows a database query.
type QueryOptions struct {
	EditedAfter time.Time // zero means no filter
	PageSize    int
	MaxPages    int // 0 means all
}

type queryResponse struct {
	Results    []Page `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// QueryDatabase returns pages from dbID, oldest edit first, following pagination.
func (c *Client) QueryDatabase(ctx context.Context, dbID string, opts QueryOptions) ([]Page, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}

	var (
		pages  []Page
		cursor string
	)
	for n := 0; opts.MaxPages == 0 || n < opts.MaxPages; n++ {
		body := map[string]any{
			"page_size": pageSize,
			"sorts": []map[string]string{
				{"timestamp": "last_edited_time", "direction": "ascending"},
			},
		}
		if !opts.EditedAfter.IsZero() {
			body["filter"] = map[string]any{
				"timestamp": "last_edited_time",
				"last_edited_time": map[string]string{
					"after": opts.EditedAfter.UTC().Format(time.RFC3339),
				},
			}
		}
		if cursor != "" {
			body["start_cursor"] = cursor
		}

		var resp queryResponse
		if err := c.do(ctx, http.MethodPost, "/v1/databases/"+dbID+"/query", body, &resp); err != nil {
			return nil, fmt.Errorf("query database %s: %w", dbID, err)
		}
		for _, p := range resp.Results {
			if !p.Archived {
				pages = append(pages, p)
			}
		}
		if !resp.HasMore || resp.NextCursor == "" {
			break
		}
		cursor = resp.NextCursor
	}
	return pages, nil
}

// CreatePage adds a row to dbID with the given properties and body blocks.
func (c *Client) CreatePage(ctx context.Context, dbID string, props map[string]any, children []Block) (Page, error) {
	body := map[string]any{
		"parent":     map[string]string{"database_id": dbID},
		"properties": props,
	}
	if len(children) > 0 {
		if len(children) > maxChildren {
			children = children[:maxChildren]
		}
		body["children"] = children
	}

	var page Page
	if err := c.do(ctx, http.MethodPost, "/v1/pages", body, &page); err != nil {
		return Page{}, fmt.Errorf("create page in %s: %w", dbID, err)
	}
	return page, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.token == "" {
		return ErrNoToken
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	resp, err := retry.HTTP(ctx, c.retry, c.http, func() (*http.Request, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Notion-Version", APIVersion)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
