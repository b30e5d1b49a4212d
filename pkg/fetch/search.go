package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mikan-dev/tech-kawaraban/internal/domain"
	"github.com/mikan-dev/tech-kawaraban/internal/logger"
	"github.com/mikan-dev/tech-kawaraban/internal/sources"
	"github.com/mikan-dev/tech-kawaraban/pkg/textgen"
)

const searchFetcherID = "x-search"

// SearchConfig bounds the live-search fetcher.
type SearchConfig struct {
	Model            string
	MaxPerTopic      int
	MaxSearchResults int
	Concurrency      int
}

// SearchFetcher issues one live-search generation call per configured topic
// and maps the structured results to articles. Topics run concurrently under
// a small in-flight cap to respect upstream rate limits.
type SearchFetcher struct {
	gen    textgen.Client
	topics []sources.Topic
	cfg    SearchConfig
	log    logger.Logger
	now    func() time.Time
	newID  func() string
}

// NewSearchFetcher builds the X live-search source fetcher.
func NewSearchFetcher(gen textgen.Client, registry *sources.Registry, cfg SearchConfig, log logger.Logger) *SearchFetcher {
	if registry == nil {
		registry = sources.Default()
	}
	if cfg.MaxPerTopic <= 0 {
		cfg.MaxPerTopic = 5
	}
	if cfg.MaxSearchResults <= 0 {
		cfg.MaxSearchResults = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	return &SearchFetcher{
		gen:    gen,
		topics: registry.Topics(),
		cfg:    cfg,
		log:    logger.Ensure(log),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (f *SearchFetcher) ID() string { return searchFetcherID }

// Fetch runs every topic through a worker pool capped at cfg.Concurrency.
// One topic's failure never suppresses the others.
func (f *SearchFetcher) Fetch(ctx context.Context) ([]domain.Article, error) {
	perTopic := make([][]domain.Article, len(f.topics))

	workerCount := min(len(f.topics), f.cfg.Concurrency)
	jobCh := make(chan int)

	var wg sync.WaitGroup
	for range workerCount {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobCh {
				topic := f.topics[idx]
				articles, err := f.searchTopic(ctx, topic)
				if err != nil {
					f.log.WarnObj("topic search failed", "search_error", map[string]any{
						"category": string(topic.Category),
						"error":    err.Error(),
					})
					continue
				}
				perTopic[idx] = articles
			}
		}()
	}

	for idx := range f.topics {
		if ctx.Err() != nil {
			break
		}
		jobCh <- idx
	}
	close(jobCh)
	wg.Wait()

	var all []domain.Article
	for _, batch := range perTopic {
		all = append(all, batch...)
	}
	return all, nil
}

// searchResult is the structured item requested from the live-search model.
type searchResult struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	URL     string `json:"url"`
}

// searchTopic issues one generation call for a topic. When no JSON array can
// be extracted but the provider returned citations, placeholder articles are
// built from the cited URLs instead of dropping the topic.
func (f *SearchFetcher) searchTopic(ctx context.Context, topic sources.Topic) ([]domain.Article, error) {
	resp, err := f.gen.Generate(ctx, f.prompt(topic), textgen.Options{
		Model:            f.cfg.Model,
		Search:           true,
		XHandles:         topic.XHandles,
		MaxSearchResults: f.cfg.MaxSearchResults,
	})
	if err != nil {
		return nil, fmt.Errorf("search category %s: %w", topic.Category, err)
	}

	results, err := f.parseResults(resp)
	if err != nil {
		return nil, fmt.Errorf("parse search results for %s: %w", topic.Category, err)
	}

	now := f.now()
	articles := make([]domain.Article, 0, len(results))
	for _, res := range results {
		if strings.TrimSpace(res.URL) == "" {
			continue
		}
		articles = append(articles, domain.Article{
			ID:          f.newID(),
			Title:       res.Title,
			Summary:     res.Summary,
			OriginalURL: res.URL,
			Source:      domain.SourceX,
			Category:    topic.Category,
			PublishedAt: now,
			FetchedAt:   now,
		})
	}
	return articles, nil
}

func (f *SearchFetcher) parseResults(resp textgen.Response) ([]searchResult, error) {
	raw, err := textgen.ExtractArray(resp.Text)
	if errors.Is(err, textgen.ErrNoJSON) {
		return f.resultsFromSources(resp.Sources)
	}
	if err != nil {
		return nil, err
	}

	var results []searchResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, fmt.Errorf("decode search results: %w", err)
	}
	if len(results) > f.cfg.MaxPerTopic {
		results = results[:f.cfg.MaxPerTopic]
	}
	return results, nil
}

// resultsFromSources is the citation fallback: when the model returned no
// structured payload, the cited URLs still identify fresh items.
func (f *SearchFetcher) resultsFromSources(srcs []textgen.Source) ([]searchResult, error) {
	if len(srcs) == 0 {
		return nil, fmt.Errorf("%w and no sources", textgen.ErrNoJSON)
	}
	if len(srcs) > f.cfg.MaxPerTopic {
		srcs = srcs[:f.cfg.MaxPerTopic]
	}

	results := make([]searchResult, 0, len(srcs))
	for _, src := range srcs {
		title := strings.TrimSpace(src.Title)
		if title == "" {
			title = "関連ニュース"
		}
		results = append(results, searchResult{
			Title:   title,
			Summary: "最新の技術情報です。",
			URL:     src.URL,
		})
	}
	return results, nil
}

func (f *SearchFetcher) prompt(topic sources.Topic) string {
	return fmt.Sprintf(`Search for the latest tech news about: %s

Please provide a JSON array of the most important news items. Each item should have:
- title: A concise Japanese title
- summary: A 100-200 character summary in Japanese
- url: The source URL

Respond ONLY with a valid JSON array:
[
  {"title": "...", "summary": "...", "url": "..."},
  ...
]

Return up to %d items. All text must be in Japanese.`, topic.Query, f.cfg.MaxPerTopic)
}
