package curate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mikan-dev/tech-kawaraban/internal/domain"
	"github.com/mikan-dev/tech-kawaraban/internal/logger"
	"github.com/mikan-dev/tech-kawaraban/pkg/textgen"
)

// Curator selects and ranks the bounded subset of candidates that survives a
// run. It never returns an error: any failure of the ranking model degrades
// to the deterministic chronological fallback.
type Curator struct {
	gen        textgen.Client
	maxCurated int
	log        logger.Logger
}

// New builds a Curator capped at maxCurated output articles.
func New(gen textgen.Client, maxCurated int, log logger.Logger) *Curator {
	if maxCurated <= 0 {
		maxCurated = 20
	}
	return &Curator{
		gen:        gen,
		maxCurated: maxCurated,
		log:        logger.Ensure(log),
	}
}

// Curate filters out previously published URLs, ranks the survivors, and
// assigns per-category sequence numbers. Rank is always the 1-based position
// in the returned sequence, on every path.
func (c *Curator) Curate(ctx context.Context, candidates, published []domain.Article) []domain.Article {
	excluded := make(map[string]struct{}, len(published))
	for _, art := range published {
		excluded[art.OriginalURL] = struct{}{}
	}

	fresh := make([]domain.Article, 0, len(candidates))
	for _, art := range candidates {
		if _, skip := excluded[art.OriginalURL]; skip {
			continue
		}
		fresh = append(fresh, art)
	}

	if len(fresh) == 0 {
		return []domain.Article{}
	}

	// Small batches keep their chronological order; no model call needed.
	if len(fresh) <= c.maxCurated {
		return assignCategoryRanks(assignRanks(fresh))
	}

	selected, err := c.rankWithModel(ctx, fresh, published, excluded)
	if err != nil {
		c.log.ErrorObj("curation ranking failed, using chronological fallback", "curate_fallback", map[string]any{
			"candidates": len(fresh),
			"error":      err.Error(),
		})
		return assignCategoryRanks(assignRanks(fresh[:c.maxCurated]))
	}

	return assignCategoryRanks(selected)
}

// candidateProjection is the reduced view of a candidate sent to the model.
type candidateProjection struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Summary     string          `json:"summary"`
	Category    domain.Category `json:"category"`
	Source      domain.Source   `json:"source"`
	OriginalURL string          `json:"originalUrl"`
}

// publishedProjection identifies an already-published article in the prompt's
// exclusion list.
type publishedProjection struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// rankWithModel asks the model for an ordered id selection. Hallucinated ids
// and ids pointing at excluded URLs are silently dropped; the result is
// truncated to the output cap even if the model over-selects.
func (c *Curator) rankWithModel(ctx context.Context, fresh, published []domain.Article, excluded map[string]struct{}) ([]domain.Article, error) {
	projections := make([]candidateProjection, 0, len(fresh))
	byID := make(map[string]domain.Article, len(fresh))
	for _, art := range fresh {
		byID[art.ID] = art
		projections = append(projections, candidateProjection{
			ID:          art.ID,
			Title:       art.Title,
			Summary:     art.Summary,
			Category:    art.Category,
			Source:      art.Source,
			OriginalURL: art.OriginalURL,
		})
	}

	candidatesJSON, err := json.Marshal(projections)
	if err != nil {
		return nil, fmt.Errorf("marshal candidates: %w", err)
	}

	var exclusionJSON []byte
	if len(published) > 0 {
		exclusions := make([]publishedProjection, 0, len(published))
		for _, art := range published {
			exclusions = append(exclusions, publishedProjection{Title: art.Title, URL: art.OriginalURL})
		}
		if exclusionJSON, err = json.Marshal(exclusions); err != nil {
			return nil, fmt.Errorf("marshal exclusions: %w", err)
		}
	}

	resp, err := c.gen.Generate(ctx, c.prompt(string(candidatesJSON), string(exclusionJSON)), textgen.Options{})
	if err != nil {
		return nil, fmt.Errorf("curation call: %w", err)
	}

	raw, err := textgen.ExtractArray(resp.Text)
	if err != nil {
		return nil, fmt.Errorf("curation response: %w", err)
	}

	var selectedIDs []string
	if err := json.Unmarshal([]byte(raw), &selectedIDs); err != nil {
		return nil, fmt.Errorf("decode selected ids: %w", err)
	}

	selected := make([]domain.Article, 0, c.maxCurated)
	for _, id := range selectedIDs {
		art, found := byID[id]
		if !found {
			continue
		}
		if _, skip := excluded[art.OriginalURL]; skip {
			continue
		}
		art.Rank = len(selected) + 1
		selected = append(selected, art)
		if len(selected) == c.maxCurated {
			break
		}
	}
	return selected, nil
}

// assignRanks stamps positional ranks 1..len onto a copy of the slice.
func assignRanks(articles []domain.Article) []domain.Article {
	out := make([]domain.Article, len(articles))
	copy(out, articles)
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// assignCategoryRanks walks the curated sequence in rank order and stamps a
// running per-category counter, independent of global rank gaps.
func assignCategoryRanks(articles []domain.Article) []domain.Article {
	counters := make(map[domain.Category]int, len(articles))
	for i := range articles {
		counters[articles[i].Category]++
		articles[i].CategoryRank = counters[articles[i].Category]
	}
	return articles
}

func (c *Curator) prompt(candidatesJSON, exclusionJSON string) string {
	exclusionSection := ""
	if exclusionJSON != "" {
		exclusionSection = fmt.Sprintf(`

CRITICAL EXCLUSION RULE: The following articles have already been published in previous newsletters. You MUST NOT select any of these articles under any circumstances. Compare the URL or title carefully to avoid duplicates. If you select any of these existing articles, your selection will be invalid:
%s

IMPORTANT: Only select NEW articles that are NOT in the exclusion list above.`, exclusionJSON)
	}

	return fmt.Sprintf(`You are a senior tech editor curating a daily newsletter for software engineers.

From the following articles, select exactly %[1]d NEW articles that engineers MUST know about.
IMPORTANT: Ensure at least 1 article from EACH category (ai, frontend, backend, infra, mobile) if available.
Distribute remaining articles based on importance and quality.
Rank them from 1 (most important) to %[1]d.%[2]s
Selection and ranking criteria (in priority order):
1. AI/LLM announcements and developments (highest priority - select 3-5 articles)
2. Frontend framework releases (React, Vue, Svelte, Angular, UI libraries - select 3-5 articles)
3. Backend framework/runtime updates (Go, Rust, Python, Node.js, Hono - select 3-5 articles)
4. Infrastructure services (DBaaS, BaaS, Convex, Turso, Supabase, Docker, K8s - select 3-5 articles)
5. Mobile development (React Native, Flutter, Swift, Kotlin - select 3-5 articles)
6. Breaking changes or security vulnerabilities (can boost any article to top 5)

Articles:
%[3]s

Respond with a JSON array of the selected article IDs in order of importance (rank 1 first):
["id1", "id2", "id3", ...]

IMPORTANT: Select exactly %[1]d articles if %[1]d or more are available. If fewer than %[1]d articles are provided, return all available articles in ranked order. Only select NEW articles that are NOT in the exclusion list.`,
		c.maxCurated, exclusionSection, candidatesJSON)
}
