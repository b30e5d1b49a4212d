package store

import (
	"context"
	"time"

	"github.com/mikan-dev/tech-kawaraban/internal/domain"
)

// Store persists the single "latest" curated set. A save replaces the whole
// set; a failed save must leave the previous set untouched.
type Store interface {
	SaveCurated(ctx context.Context, set domain.CuratedSet) error
	LoadCurated(ctx context.Context) (domain.CuratedSet, error)
	LastUpdated(ctx context.Context) (time.Time, bool, error)
}
