package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mikan-dev/tech-kawaraban/internal/domain"
	"github.com/mikan-dev/tech-kawaraban/internal/logger"
	"github.com/mikan-dev/tech-kawaraban/internal/sources"
	"github.com/mikan-dev/tech-kawaraban/pkg/textgen"
)

// RawItem is a candidate tuple as produced by a source fetcher, before
// normalization into a domain.Article.
type RawItem struct {
	Title       string
	Content     string
	URL         string
	Source      domain.Source
	FeedName    string
	PublishedAt time.Time
}

// Summarizer turns raw candidates into normalized articles with an
// AI-generated Japanese title, summary, and category.
type Summarizer struct {
	gen         textgen.Client
	registry    *sources.Registry
	fallbackLen int
	log         logger.Logger
	now         func() time.Time
	newID       func() string
}

// New builds a Summarizer. The registry supplies the category rubric embedded
// in the prompt.
func New(gen textgen.Client, registry *sources.Registry, fallbackLen int, log logger.Logger) *Summarizer {
	if registry == nil {
		registry = sources.Default()
	}
	if fallbackLen <= 0 {
		fallbackLen = 300
	}
	return &Summarizer{
		gen:         gen,
		registry:    registry,
		fallbackLen: fallbackLen,
		log:         logger.Ensure(log),
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// parsedSummary is the structured object requested from the model.
type parsedSummary struct {
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	Category string `json:"category"`
}

// Summarize issues one generation call and returns a normalized Article.
// Errors from the generation call itself propagate; a malformed response
// never does — the fixed-rule fallback record is returned instead, so the
// pipeline cannot halt on model misbehavior.
func (s *Summarizer) Summarize(ctx context.Context, item RawItem) (domain.Article, error) {
	resp, err := s.gen.Generate(ctx, s.prompt(item), textgen.Options{})
	if err != nil {
		return domain.Article{}, fmt.Errorf("summarize %q: %w", item.URL, err)
	}

	parsed, ok := s.parse(resp.Text)
	if !ok {
		s.log.WarnObj("summary fallback applied", "summary_fallback", map[string]any{
			"url":   item.URL,
			"title": item.Title,
		})
		parsed = s.fallback(item)
	}

	now := s.now()
	publishedAt := item.PublishedAt
	if publishedAt.IsZero() {
		publishedAt = now
	}

	return domain.Article{
		ID:          s.newID(),
		Title:       parsed.Title,
		Summary:     parsed.Summary,
		OriginalURL: item.URL,
		Source:      item.Source,
		Category:    domain.Category(parsed.Category),
		FeedName:    item.FeedName,
		PublishedAt: publishedAt,
		FetchedAt:   now,
	}, nil
}

// parse extracts and validates the structured summary from the model output.
func (s *Summarizer) parse(text string) (parsedSummary, bool) {
	raw, err := textgen.ExtractObject(text)
	if err != nil {
		return parsedSummary{}, false
	}

	var parsed parsedSummary
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return parsedSummary{}, false
	}
	if strings.TrimSpace(parsed.Title) == "" || strings.TrimSpace(parsed.Summary) == "" {
		return parsedSummary{}, false
	}
	if !domain.ValidCategory(domain.Category(parsed.Category)) {
		parsed.Category = string(domain.DefaultCategory)
	}
	return parsed, true
}

// fallback builds the fixed-rule record: original title, truncated content,
// default category.
func (s *Summarizer) fallback(item RawItem) parsedSummary {
	summary := item.Content
	if runes := []rune(summary); len(runes) > s.fallbackLen {
		summary = string(runes[:s.fallbackLen])
	}
	return parsedSummary{
		Title:    item.Title,
		Summary:  summary,
		Category: string(domain.DefaultCategory),
	}
}

func (s *Summarizer) prompt(item RawItem) string {
	var rubric strings.Builder
	for _, cat := range domain.Categories() {
		fmt.Fprintf(&rubric, "- %s: %s\n", cat, s.registry.Hint(cat))
	}

	return fmt.Sprintf(`Summarize the following article in Japanese.

Title: %s
URL: %s
Content: %s

Respond in the following JSON format:
{
  "title": "Japanese title",
  "summary": "200-300 character summary in Japanese",
  "category": "ai" | "frontend" | "backend" | "infra" | "mobile" (choose one)
}

Category selection criteria:
%s
Important: All text output must be in Japanese.`, item.Title, item.URL, item.Content, rubric.String())
}
