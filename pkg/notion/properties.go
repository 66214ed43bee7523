package notion

import (
	"strings"
	"unicode/utf8"
)

// Notion rejects text objects over 2000 characters and requests with more than 100 children.
const (
	maxTextLen  = 2000
	maxChildren = 100
)

// Block is a page body block in request form.
type Block map[string]any

// TitleProp builds a title property value.
func TitleProp(s string) map[string]any {
	return map[string]any{"title": textSpans(s)}
}

// RichTextProp builds a rich_text property value.
func RichTextProp(s string) map[string]any {
	return map[string]any{"rich_text": textSpans(s)}
}

// URLProp builds a url property value. Empty URLs are sent as null.
func URLProp(s string) map[string]any {
	if s == "" {
		return map[string]any{"url": nil}
	}
	return map[string]any{"url": s}
}

// SelectProp builds a select property value.
func SelectProp(name string) map[string]any {
	return map[string]any{"select": map[string]string{"name": sanitizeOption(name)}}
}

// MultiSelectProp builds a multi_select property value.
func MultiSelectProp(names []string) map[string]any {
	opts := make([]map[string]string, 0, len(names))
	seen := make(map[string]bool)
	for _, n := range names {
		n = sanitizeOption(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		opts = append(opts, map[string]string{"name": n})
	}
	return map[string]any{"multi_select": opts}
}

// NumberProp builds a number property value.
func NumberProp(f float64) map[string]any {
	return map[string]any{"number": f}
}

// DateProp builds a date property value from an ISO-8601 string.
func DateProp(start string) map[string]any {
	return map[string]any{"date": map[string]string{"start": start}}
}

// ParagraphBlocks splits text on blank lines into paragraph blocks.
func ParagraphBlocks(text string) []Block {
	var blocks []Block
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		blocks = append(blocks, Block{
			"object": "block",
			"type":   "paragraph",
			"paragraph": map[string]any{
				"rich_text": textSpans(para),
			},
		})
		if len(blocks) == maxChildren {
			break
		}
	}
	return blocks
}

// BookmarkBlock embeds a link preview.
func BookmarkBlock(url string) Block {
	return Block{
		"object":   "block",
		"type":     "bookmark",
		"bookmark": map[string]string{"url": url},
	}
}

// textSpans chunks s into text objects within the API length limit.
func textSpans(s string) []RichText {
	var spans []RichText
	for _, chunk := range chunk(s, maxTextLen) {
		spans = append(spans, RichText{Type: "text", Text: &Text{Content: chunk}})
	}
	if spans == nil {
		spans = []RichText{}
	}
	return spans
}

func chunk(s string, n int) []string {
	var out []string
	for len(s) > 0 {
		if utf8.RuneCountInString(s) <= n {
			out = append(out, s)
			break
		}
		cut := 0
		for i := 0; i < n; i++ {
			_, size := utf8.DecodeRuneInString(s[cut:])
			cut += size
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	return out
}

// select option names may not contain commas
func sanitizeOption(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, ",", " "))
}
