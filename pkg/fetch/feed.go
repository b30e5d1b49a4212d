package fetch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/mikan-dev/tech-kawaraban/internal/domain"
	"github.com/mikan-dev/tech-kawaraban/internal/logger"
	"github.com/mikan-dev/tech-kawaraban/internal/sources"
	"github.com/mikan-dev/tech-kawaraban/internal/summarize"
	"github.com/mikan-dev/tech-kawaraban/pkg/httpclient"
)

const feedFetcherID = "rss"

// FeedConfig bounds the RSS fetcher's per-run cost.
type FeedConfig struct {
	MaxItemsPerFeed int
	MaxSummarize    int
	Workers         int
}

// FeedFetcher collects items from the configured RSS feeds, filters them
// against the keyword allow-list, and summarizes the survivors.
type FeedFetcher struct {
	client     httpclient.Client
	summarizer *summarize.Summarizer
	feeds      []sources.Feed
	keywords   []string
	cfg        FeedConfig
	log        logger.Logger
	parser     *gofeed.Parser
}

// NewFeedFetcher builds the RSS source fetcher.
func NewFeedFetcher(client httpclient.Client, summarizer *summarize.Summarizer, registry *sources.Registry, cfg FeedConfig, log logger.Logger) *FeedFetcher {
	if client == nil {
		client = httpclient.NewRestyClient(15 * time.Second)
	}
	if registry == nil {
		registry = sources.Default()
	}
	if cfg.MaxItemsPerFeed <= 0 {
		cfg.MaxItemsPerFeed = 5
	}
	if cfg.MaxSummarize <= 0 {
		cfg.MaxSummarize = 10
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	return &FeedFetcher{
		client:     client,
		summarizer: summarizer,
		feeds:      registry.Feeds(),
		keywords:   registry.Keywords(),
		cfg:        cfg,
		log:        logger.Ensure(log),
		parser:     gofeed.NewParser(),
	}
}

func (f *FeedFetcher) ID() string { return feedFetcherID }

// feedEntry is one raw RSS item before summarization.
type feedEntry struct {
	title       string
	content     string
	link        string
	feedName    string
	publishedAt time.Time
}

// Fetch pulls every feed through a bounded worker pool, applies the keyword
// filter, and summarizes up to MaxSummarize surviving items. A failing feed
// contributes zero items; a failing summarization skips that single item.
func (f *FeedFetcher) Fetch(ctx context.Context) ([]domain.Article, error) {
	perFeed := make([][]feedEntry, len(f.feeds))

	workerCount := min(len(f.feeds), f.cfg.Workers)
	jobCh := make(chan int)

	var wg sync.WaitGroup
	for range workerCount {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobCh {
				entries, err := f.fetchFeed(ctx, f.feeds[idx])
				if err != nil {
					f.log.WarnObj("feed fetch failed", "feed_error", map[string]any{
						"feed":  f.feeds[idx].Name,
						"error": err.Error(),
					})
					continue
				}
				perFeed[idx] = entries
			}
		}()
	}

	for idx := range f.feeds {
		if ctx.Err() != nil {
			break
		}
		jobCh <- idx
	}
	close(jobCh)
	wg.Wait()

	var entries []feedEntry
	for _, batch := range perFeed {
		entries = append(entries, batch...)
	}

	filtered := f.filterByKeywords(entries)
	if len(filtered) > f.cfg.MaxSummarize {
		filtered = filtered[:f.cfg.MaxSummarize]
	}

	articles := make([]domain.Article, 0, len(filtered))
	for _, entry := range filtered {
		article, err := f.summarizer.Summarize(ctx, summarize.RawItem{
			Title:       entry.title,
			Content:     entry.content,
			URL:         entry.link,
			Source:      domain.SourceRSS,
			FeedName:    entry.feedName,
			PublishedAt: entry.publishedAt,
		})
		if err != nil {
			f.log.WarnObj("feed item summarization failed", "summarize_error", map[string]any{
				"feed":  entry.feedName,
				"url":   entry.link,
				"error": err.Error(),
			})
			continue
		}
		articles = append(articles, article)
	}

	return articles, nil
}

// fetchFeed downloads and parses one feed, capped at MaxItemsPerFeed entries.
func (f *FeedFetcher) fetchFeed(ctx context.Context, feed sources.Feed) ([]feedEntry, error) {
	resp, err := f.client.Get(ctx, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feed.Name, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned status %d", feed.Name, resp.StatusCode())
	}

	parsed, err := f.parser.ParseString(string(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feed.Name, err)
	}

	items := parsed.Items
	if len(items) > f.cfg.MaxItemsPerFeed {
		items = items[:f.cfg.MaxItemsPerFeed]
	}

	entries := make([]feedEntry, 0, len(items))
	for _, item := range items {
		if item == nil || strings.TrimSpace(item.Link) == "" {
			continue
		}

		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = "No title"
		}

		content := item.Description
		if strings.TrimSpace(content) == "" {
			content = item.Content
		}

		var publishedAt time.Time
		if item.PublishedParsed != nil {
			publishedAt = *item.PublishedParsed
		}

		entries = append(entries, feedEntry{
			title:       title,
			content:     stripHTML(content),
			link:        strings.TrimSpace(item.Link),
			feedName:    feed.Name,
			publishedAt: publishedAt,
		})
	}
	return entries, nil
}

// filterByKeywords keeps entries whose title+content mentions at least one
// allow-listed keyword, rejecting off-topic items before the summarization
// budget is spent.
func (f *FeedFetcher) filterByKeywords(entries []feedEntry) []feedEntry {
	if len(f.keywords) == 0 {
		return entries
	}

	out := make([]feedEntry, 0, len(entries))
	for _, entry := range entries {
		text := strings.ToLower(entry.title + " " + entry.content)
		for _, kw := range f.keywords {
			if strings.Contains(text, kw) {
				out = append(out, entry)
				break
			}
		}
	}
	return out
}

// stripHTML reduces an HTML snippet to its text content. Malformed markup
// falls back to the raw string.
func stripHTML(s string) string {
	if !strings.ContainsRune(s, '<') {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}
