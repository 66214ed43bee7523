package push

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/elonfeng/curator/pkg/content"
	"github.com/elonfeng/curator/pkg/retry"
)

// digestLimit caps how many items one chat message lists.
const digestLimit = 10

// Slack posts a digest through a Slack incoming webhook.
type Slack struct {
	client     *http.Client
	webhookURL string
}

// NewSlack creates the slack target.
func NewSlack(webhookURL string) *Slack {
	return &Slack{client: &http.Client{Timeout: 10 * time.Second}, webhookURL: webhookURL}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Push(ctx context.Context, label string, items []content.Item) (Report, error) {
	if len(items) == 0 {
		return Report{Target: s.Name()}, nil
	}
	shown, rest := split(items)

	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{"type": "plain_text", "text": fmt.Sprintf("📚 %s: %d new", label, len(items))},
		},
	}
	for _, it := range shown {
		text := fmt.Sprintf("*<%s|%s>*  (score %.1f)", it.URL, it.Title, it.Score)
		if it.Summary != "" {
			text += "\n" + it.Summary
		}
		blocks = append(blocks, map[string]any{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": text},
		})
	}
	if rest > 0 {
		blocks = append(blocks, map[string]any{
			"type":     "context",
			"elements": []map[string]any{{"type": "mrkdwn", "text": fmt.Sprintf("and %d more", rest)}},
		})
	}

	if err := postJSON(ctx, s.client, s.webhookURL, map[string]any{"blocks": blocks}, nil); err != nil {
		return Report{Target: s.Name()}, fmt.Errorf("send slack webhook: %w", err)
	}
	return digestReport(s.Name(), items), nil
}

// Discord posts a digest embed through a Discord webhook.
type Discord struct {
	client     *http.Client
	webhookURL string
}

// NewDiscord creates the discord target.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{client: &http.Client{Timeout: 10 * time.Second}, webhookURL: webhookURL}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Push(ctx context.Context, label string, items []content.Item) (Report, error) {
	if len(items) == 0 {
		return Report{Target: d.Name()}, nil
	}
	shown, rest := split(items)

	var links []string
	for _, it := range shown {
		links = append(links, fmt.Sprintf("• [%s](%s) (%.1f)", it.Title, it.URL, it.Score))
	}
	if rest > 0 {
		links = append(links, fmt.Sprintf("and %d more", rest))
	}

	embed := map[string]any{
		"title":       fmt.Sprintf("📚 %s: %d new", label, len(items)),
		"description": strings.Join(links, "\n"),
		"color":       0x2F80ED,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}
	if err := postJSON(ctx, d.client, d.webhookURL, map[string]any{"embeds": []map[string]any{embed}}, nil); err != nil {
		return Report{Target: d.Name()}, fmt.Errorf("send discord webhook: %w", err)
	}
	return digestReport(d.Name(), items), nil
}

// Webhook posts the items as JSON to a generic endpoint, signed when a secret is set.
type Webhook struct {
	client *http.Client
	url    string
	secret string
}

// NewWebhook creates the generic webhook target.
func NewWebhook(url, secret string) *Webhook {
	return &Webhook{client: &http.Client{Timeout: 10 * time.Second}, url: url, secret: secret}
}

func (w *Webhook) Name() string { return "webhook" }

// WebhookPayload is the body sent by the webhook target.
type WebhookPayload struct {
	Source string         `json:"source"`
	SentAt time.Time      `json:"sent_at"`
	Items  []content.Item `json:"items"`
}

func (w *Webhook) Push(ctx context.Context, label string, items []content.Item) (Report, error) {
	if len(items) == 0 {
		return Report{Target: w.Name()}, nil
	}
	body, err := json.Marshal(WebhookPayload{Source: label, SentAt: time.Now().UTC(), Items: items})
	if err != nil {
		return Report{Target: w.Name()}, fmt.Errorf("marshal webhook payload: %w", err)
	}

	headers := map[string]string{"User-Agent": "curator/1.0"}
	if w.secret != "" {
		headers["X-Signature-256"] = "sha256=" + Sign(w.secret, body)
	}
	if err := postRaw(ctx, w.client, w.url, body, headers); err != nil {
		return Report{Target: w.Name()}, fmt.Errorf("send webhook: %w", err)
	}
	return digestReport(w.Name(), items), nil
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func split(items []content.Item) ([]content.Item, int) {
	if len(items) <= digestLimit {
		return items, 0
	}
	return items[:digestLimit], len(items) - digestLimit
}

func digestReport(target string, items []content.Item) Report {
	r := Report{Target: target}
	for _, it := range items {
		r.ok(it.ID, "")
	}
	return r
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any, headers map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return postRaw(ctx, client, url, body, headers)
}

func postRaw(ctx context.Context, client *http.Client, url string, body []byte, headers map[string]string) error {
	resp, err := retry.HTTP(ctx, retry.Default, client, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
	if err != nil {
		return err
	}
	return resp.Body.Close()
}
