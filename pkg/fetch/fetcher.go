package fetch

import (
	"context"
	"sync"

	"github.com/mikan-dev/tech-kawaraban/internal/domain"
	"github.com/mikan-dev/tech-kawaraban/internal/logger"
)

// Fetcher pulls candidate articles from one external source. Implementations
// absorb per-unit failures (one feed, one search topic) internally; a
// returned error means the whole source produced nothing this run.
type Fetcher interface {
	ID() string
	Fetch(ctx context.Context) ([]domain.Article, error)
}

// Collect runs every fetcher concurrently and waits for all of them to
// settle. A failing fetcher contributes an empty batch and is logged; it
// never cancels its siblings. Batches come back in fetcher order so the
// downstream first-wins deduplication stays deterministic.
func Collect(ctx context.Context, log logger.Logger, fetchers []Fetcher) [][]domain.Article {
	log = logger.Ensure(log)
	batches := make([][]domain.Article, len(fetchers))

	var wg sync.WaitGroup
	for i, f := range fetchers {
		wg.Add(1)
		go func(idx int, f Fetcher) {
			defer wg.Done()

			articles, err := f.Fetch(ctx)
			if err != nil {
				log.WarnObj("source fetch failed", "fetch_error", map[string]any{
					"fetcher": f.ID(),
					"error":   err.Error(),
				})
				return
			}
			batches[idx] = articles
		}(i, f)
	}
	wg.Wait()

	return batches
}
