package curate

import (
	"sort"

	"github.com/mikan-dev/tech-kawaraban/internal/domain"
)

// Merge concatenates fetcher batches in order, drops later duplicates of the
// same OriginalURL (first occurrence wins, later ones are discarded rather
// than reconciled), and sorts by FetchedAt descending. The result is the
// candidate order fed into curation, not the published order.
func Merge(batches ...[]domain.Article) []domain.Article {
	var total int
	for _, b := range batches {
		total += len(b)
	}

	seen := make(map[string]struct{}, total)
	merged := make([]domain.Article, 0, total)
	for _, batch := range batches {
		for _, art := range batch {
			if _, dup := seen[art.OriginalURL]; dup {
				continue
			}
			seen[art.OriginalURL] = struct{}{}
			merged = append(merged, art)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].FetchedAt.After(merged[j].FetchedAt)
	})
	return merged
}
