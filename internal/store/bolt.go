package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mikan-dev/tech-kawaraban/internal/domain"
)

var (
	bucketNews = []byte("news")

	keyCurated     = []byte("curated-news")
	keyLastUpdated = []byte("news-last-updated")
)

// BoltStore keeps the curated set and its last-updated stamp in a single
// bbolt bucket. Both keys are written inside one transaction, so readers
// never observe the stamp without the matching data.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the store file at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketNews)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init store bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close releases the underlying database file.
func (s *BoltStore) Close() error { return s.db.Close() }

// SaveCurated replaces the latest curated set and stamps the update time.
func (s *BoltStore) SaveCurated(ctx context.Context, set domain.CuratedSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	articles, err := json.Marshal(set.Articles)
	if err != nil {
		return fmt.Errorf("marshal curated articles: %w", err)
	}

	updatedAt := set.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNews)
		if err := b.Put(keyCurated, articles); err != nil {
			return err
		}
		return b.Put(keyLastUpdated, []byte(updatedAt.UTC().Format(time.RFC3339)))
	})
	if err != nil {
		return fmt.Errorf("save curated set: %w", err)
	}
	return nil
}

// LoadCurated returns the latest curated set, or an empty one when nothing
// has been saved yet.
func (s *BoltStore) LoadCurated(ctx context.Context) (domain.CuratedSet, error) {
	if err := ctx.Err(); err != nil {
		return domain.CuratedSet{}, err
	}

	var set domain.CuratedSet
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNews)

		if raw := b.Get(keyCurated); raw != nil {
			if err := json.Unmarshal(raw, &set.Articles); err != nil {
				return fmt.Errorf("decode curated articles: %w", err)
			}
		}
		if raw := b.Get(keyLastUpdated); raw != nil {
			if t, err := time.Parse(time.RFC3339, string(raw)); err == nil {
				set.UpdatedAt = t
			}
		}
		return nil
	})
	if err != nil {
		return domain.CuratedSet{}, fmt.Errorf("load curated set: %w", err)
	}
	return set, nil
}

// LastUpdated returns the stamp of the last successful save, if any.
func (s *BoltStore) LastUpdated(ctx context.Context) (time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, err
	}

	var (
		updatedAt time.Time
		present   bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketNews).Get(keyLastUpdated)
		if raw == nil {
			return nil
		}
		t, err := time.Parse(time.RFC3339, string(raw))
		if err != nil {
			return fmt.Errorf("decode last-updated stamp: %w", err)
		}
		updatedAt = t
		present = true
		return nil
	})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load last-updated: %w", err)
	}
	return updatedAt, present, nil
}
