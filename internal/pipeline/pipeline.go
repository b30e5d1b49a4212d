package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mikan-dev/tech-kawaraban/internal/curate"
	"github.com/mikan-dev/tech-kawaraban/internal/domain"
	"github.com/mikan-dev/tech-kawaraban/internal/logger"
	"github.com/mikan-dev/tech-kawaraban/internal/store"
	"github.com/mikan-dev/tech-kawaraban/pkg/fetch"
	"github.com/mikan-dev/tech-kawaraban/pkg/publish"
)

// RunResult reports one completed curation run.
type RunResult struct {
	Count     int
	Timestamp time.Time
}

// Pipeline runs one fetch → merge → curate → save cycle. Per-source and
// per-item failures are absorbed by the fetchers and the curator; only a
// failed save surfaces as an error, because a failed save means stale data
// keeps being served.
type Pipeline struct {
	fetchers   []fetch.Fetcher
	curator    *curate.Curator
	store      store.Store
	publishers []publish.Publisher
	log        logger.Logger
	now        func() time.Time
}

// New wires a Pipeline.
func New(fetchers []fetch.Fetcher, curator *curate.Curator, st store.Store, publishers []publish.Publisher, log logger.Logger) *Pipeline {
	return &Pipeline{
		fetchers:   fetchers,
		curator:    curator,
		store:      st,
		publishers: publishers,
		log:        logger.Ensure(log),
		now:        time.Now,
	}
}

// Run executes one curation run and replaces the stored curated set.
func (p *Pipeline) Run(ctx context.Context) (RunResult, error) {
	started := p.now()

	batches := fetch.Collect(ctx, p.log, p.fetchers)
	merged := curate.Merge(batches...)

	// A broken read degrades to an empty exclusion set rather than aborting
	// the run; the subsequent save still replaces the whole set.
	previous, err := p.store.LoadCurated(ctx)
	if err != nil {
		p.log.WarnObj("loading previous curated set failed", "load_previous_error", map[string]any{
			"error": err.Error(),
		})
		previous = domain.CuratedSet{}
	}

	curated := p.curator.Curate(ctx, merged, previous.Articles)

	set := domain.CuratedSet{Articles: curated, UpdatedAt: p.now()}
	if err := p.store.SaveCurated(ctx, set); err != nil {
		return RunResult{}, fmt.Errorf("save curated set: %w", err)
	}

	p.log.InfoObj("curation run completed", "run_complete", map[string]any{
		"candidates": len(merged),
		"curated":    len(curated),
		"elapsed":    p.now().Sub(started).String(),
	})

	if len(p.publishers) > 0 {
		publish.NotifyAll(ctx, p.publishers, publish.Event{
			RunID:      uuid.NewString(),
			Count:      len(curated),
			Timestamp:  set.UpdatedAt,
			Categories: set.CategoryCounts(),
		}, p.log)
	}

	return RunResult{Count: len(curated), Timestamp: set.UpdatedAt}, nil
}
