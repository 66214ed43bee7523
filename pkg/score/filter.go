package score

import (
	"sort"

	"github.com/elonfeng/curator/pkg/content"
)

// Filter keeps items scoring at least minScore, highest first, and at most k of them.
// k <= 0 keeps every item that passes the threshold.
func Filter(items []content.Item, k int, minScore float64) []content.Item {
	var kept []content.Item
	for _, it := range items {
		if it.Score >= minScore {
			kept = append(kept, it)
		}
	}
	sort.SliceStable(kept, func(a, b int) bool { return kept[a].Score > kept[b].Score })
	if k > 0 && len(kept) > k {
		kept = kept[:k]
	}
	return kept
}
