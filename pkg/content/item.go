package content

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Kind identifies which inbox an item came from.
type Kind string

const (
	KindArticle Kind = "Article"
	KindYoutube Kind = "Youtube"
	KindRSS     Kind = "RSS"
)

// ErrUnknownKind is returned for source names outside Article, Youtube and RSS.
var ErrUnknownKind = errors.New("unknown source")

// AllKinds returns all known kinds in their default processing order.
func AllKinds() []Kind {
	return []Kind{KindArticle, KindYoutube, KindRSS}
}

// ParseKind maps a CLI source name to a Kind. Names are case-sensitive.
func ParseKind(name string) (Kind, error) {
	switch k := Kind(strings.TrimSpace(name)); k {
	case KindArticle, KindYoutube, KindRSS:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// ParseKinds splits a comma separated source list, keeping the given order.
// Names that are not a known kind are returned in unknown; empty entries are ignored.
func ParseKinds(list string) (kinds []Kind, unknown []string) {
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		k, err := ParseKind(name)
		if err != nil {
			unknown = append(unknown, name)
			continue
		}
		kinds = append(kinds, k)
	}
	return kinds, unknown
}

// KindFromSlug resolves a lowercase slug ("article", "youtube", "rss") or a CLI name.
func KindFromSlug(s string) (Kind, error) {
	for _, k := range AllKinds() {
		if strings.EqualFold(s, k.Slug()) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Slug is the lowercase form used in file names, URLs and the state store.
func (k Kind) Slug() string { return strings.ToLower(string(k)) }

// SnapshotName is the JSON file a sync run writes for this kind.
func (k Kind) SnapshotName() string { return k.Slug() + ".json" }

// Label is the display name used in stats.
func (k Kind) Label() string {
	if k == KindYoutube {
		return "YouTube"
	}
	return string(k)
}

// Item is a single content unit shared by all sources.
type Item struct {
	ID           string         `json:"id"`
	Source       Kind           `json:"source"`
	ExternalID   string         `json:"external_id"`
	Title        string         `json:"title"`
	URL          string         `json:"url"`
	Author       string         `json:"author,omitempty"`
	Description  string         `json:"description,omitempty"`
	Content      string         `json:"content,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	PublishedAt  time.Time      `json:"published_at"`
	FetchedAt    time.Time      `json:"fetched_at"`
	LastEditedAt time.Time      `json:"last_edited_at"`
	Deduped      bool           `json:"deduped,omitempty"`
	Score        float64        `json:"score,omitempty"`
	Related      int            `json:"related,omitempty"`
	Topics       []string       `json:"topics,omitempty"`
	Categories   []string       `json:"categories,omitempty"`
	Summary      string         `json:"summary,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// Text returns the best available body for summarizing or scoring.
func (it Item) Text() string {
	if it.Content != "" {
		return it.Content
	}
	if it.Description != "" {
		return it.Description
	}
	return it.Title
}

// Hash identifies an item by its normalized title and URL. Items with
// neither fall back to their ID so they never collide with each other.
func (it Item) Hash() string {
	key := normalize(it.Title) + "|" + normalize(strings.TrimRight(it.URL, "/"))
	if key == "|" {
		key = "id:" + it.ID
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func normalize(s string) string {
	s = norm.NFKC.String(s)
	return strings.Join(strings.Fields(cases.Fold().String(s)), " ")
}

// Collection maps item ID to item. It is what a pull produces and a snapshot stores.
type Collection map[string]Item

// Add inserts it under its ID, replacing an existing entry with the same ID.
func (c Collection) Add(it Item) {
	c[it.ID] = it
}

// Values returns the items ordered by ID.
func (c Collection) Values() []Item {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	items := make([]Item, 0, len(ids))
	for _, id := range ids {
		items = append(items, c[id])
	}
	return items
}

// LatestEdit returns the most recent LastEditedAt (or FetchedAt) in the collection.
func (c Collection) LatestEdit() time.Time {
	var latest time.Time
	for _, it := range c {
		t := it.LastEditedAt
		if t.IsZero() {
			t = it.FetchedAt
		}
		if t.After(latest) {
			latest = t
		}
	}
	return latest
}
