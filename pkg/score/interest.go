package score

import "strings"

// DefaultKeywords is used when no interests are configured.
var DefaultKeywords = []string{
	"artificial intelligence", "machine learning", "deep learning",
	"neural network", "llm", "large language model", "gpt",
	"transformer", "diffusion", "generative ai", "genai",
	"reinforcement learning", "fine-tuning", "fine tuning",
	"rag", "retrieval augmented", "vector database", "embedding",
	"inference", "ai agent", "agentic", "foundation model",
	"openai", "anthropic", "claude", "llama", "mistral", "gemini",
	"golang", "go", "rust", "kubernetes", "postgres", "sqlite",
	"distributed systems", "database", "compiler", "performance",
	"security", "open source", "programming", "software engineering",
}

// Interest is the keyword heuristic used when no language model is configured.
type Interest struct {
	words   map[string]bool
	phrases []string
	exclude []string
}

// NewInterest builds the heuristic. Empty keywords means DefaultKeywords.
func NewInterest(keywords, exclude []string) *Interest {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}

	in := &Interest{words: make(map[string]bool)}
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		// single words match whole tokens so "go" does not hit "google"
		if toks := Tokens(kw); len(toks) == 1 && toks[0] == kw {
			in.words[kw] = true
		} else {
			in.phrases = append(in.phrases, kw)
		}
	}
	for _, ex := range exclude {
		if ex = strings.ToLower(strings.TrimSpace(ex)); ex != "" {
			in.exclude = append(in.exclude, ex)
		}
	}
	return in
}

// Excluded reports whether text contains an exclude keyword.
func (in *Interest) Excluded(text string) bool {
	lower := strings.ToLower(text)
	for _, ex := range in.exclude {
		if strings.Contains(lower, ex) {
			return true
		}
	}
	return false
}

// Matches returns the distinct keywords found in text.
func (in *Interest) Matches(text string) []string {
	lower := strings.ToLower(text)
	seen := make(map[string]bool)
	var found []string
	for _, tok := range Tokens(lower) {
		if in.words[tok] && !seen[tok] {
			seen[tok] = true
			found = append(found, tok)
		}
	}
	for _, p := range in.phrases {
		if strings.Contains(lower, p) && !seen[p] {
			seen[p] = true
			found = append(found, p)
		}
	}
	return found
}

// Score rates text 0-10: excluded text is 0, no match is 2, each match adds 2 from a base of 3.
func (in *Interest) Score(text string) float64 {
	if in.Excluded(text) {
		return 0
	}
	n := len(in.Matches(text))
	if n == 0 {
		return 2
	}
	return min(10, 3+2*float64(n))
}
