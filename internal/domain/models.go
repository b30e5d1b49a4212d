package domain

import "time"

// Domain contains the core models shared by fetchers, curation, and storage.

// Source tags where an article was discovered.
type Source string

const (
	SourceX   Source = "x"
	SourceWeb Source = "web"
	SourceRSS Source = "rss"
)

// Category is one of the fixed topic tags assigned at summarization time.
type Category string

const (
	CategoryAI       Category = "ai"
	CategoryFrontend Category = "frontend"
	CategoryBackend  Category = "backend"
	CategoryInfra    Category = "infra"
	CategoryMobile   Category = "mobile"
)

// DefaultCategory is applied when the summarizer cannot determine a category.
const DefaultCategory = CategoryFrontend

// Categories returns every known category in display order.
func Categories() []Category {
	return []Category{
		CategoryAI,
		CategoryFrontend,
		CategoryBackend,
		CategoryInfra,
		CategoryMobile,
	}
}

// ValidCategory reports whether c is one of the known categories.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryAI, CategoryFrontend, CategoryBackend, CategoryInfra, CategoryMobile:
		return true
	}
	return false
}

// Article is the normalized unit of content flowing through the pipeline.
// Title and Summary are in the target language (Japanese) regardless of the
// source language. OriginalURL is the deduplication key across sources.
type Article struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Summary      string    `json:"summary"`
	OriginalURL  string    `json:"originalUrl"`
	Source       Source    `json:"source"`
	Category     Category  `json:"category"`
	FeedName     string    `json:"feedName,omitempty"`
	PublishedAt  time.Time `json:"publishedAt"`
	FetchedAt    time.Time `json:"fetchedAt"`
	Rank         int       `json:"rank,omitempty"`
	CategoryRank int       `json:"categoryRank,omitempty"`
	Citations    []string  `json:"citations,omitempty"`
}

// CuratedSet is the output of one curation run: articles ordered by rank plus
// the run's completion time. Rank values are exactly 1..len(Articles).
type CuratedSet struct {
	Articles  []Article `json:"articles"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CategoryCounts tallies curated articles per category, used in run events.
func (s CuratedSet) CategoryCounts() map[string]int {
	if len(s.Articles) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, art := range s.Articles {
		counts[string(art.Category)]++
	}
	return counts
}
