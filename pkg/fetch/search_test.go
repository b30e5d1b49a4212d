package fetch

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikan-dev/tech-kawaraban/internal/domain"
	"github.com/mikan-dev/tech-kawaraban/pkg/textgen"
)

// scriptedGen resolves each call by matching a configured query fragment
// against the prompt. Safe for the fetcher's concurrent topic workers.
type scriptedGen struct {
	mu       sync.Mutex
	byQuery  map[string]textgen.Response
	errQuery string
	opts     []textgen.Options
}

func (s *scriptedGen) Generate(_ context.Context, prompt string, opts textgen.Options) (textgen.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts = append(s.opts, opts)
	if s.errQuery != "" && strings.Contains(prompt, s.errQuery) {
		return textgen.Response{}, assert.AnError
	}
	for query, resp := range s.byQuery {
		if strings.Contains(prompt, query) {
			return resp, nil
		}
	}
	return textgen.Response{Text: "[]"}, nil
}

const searchSourcesYAML = `
topics:
  - category: ai
    query: latest AI news
    x_handles: [OpenAI, AnthropicAI]
  - category: backend
    query: latest backend news
`

func TestSearchFetcherParsesStructuredResults(t *testing.T) {
	gen := &scriptedGen{byQuery: map[string]textgen.Response{
		"latest AI news": {Text: `Results:
[{"title":"新モデル発表","summary":"概要","url":"https://example.com/ai"}]`},
	}}

	reg := writeSourcesFile(t, searchSourcesYAML)
	fetcher := NewSearchFetcher(gen, reg, SearchConfig{}, nil)
	got, err := fetcher.Fetch(context.Background())

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "新モデル発表", got[0].Title)
	assert.Equal(t, domain.SourceX, got[0].Source)
	assert.Equal(t, domain.CategoryAI, got[0].Category)
	assert.NotEmpty(t, got[0].ID)

	for _, opts := range gen.opts {
		assert.True(t, opts.Search, "every topic call must enable live search")
	}
}

func TestSearchFetcherIsolatesFailingTopic(t *testing.T) {
	gen := &scriptedGen{
		errQuery: "latest AI news",
		byQuery: map[string]textgen.Response{
			"latest backend news": {Text: `[{"title":"T","summary":"S","url":"https://example.com/be"}]`},
		},
	}

	reg := writeSourcesFile(t, searchSourcesYAML)
	fetcher := NewSearchFetcher(gen, reg, SearchConfig{}, nil)
	got, err := fetcher.Fetch(context.Background())

	require.NoError(t, err, "one failing topic must not fail the fetch")
	require.Len(t, got, 1)
	assert.Equal(t, domain.CategoryBackend, got[0].Category)
}

func TestSearchFetcherCitationFallback(t *testing.T) {
	gen := &scriptedGen{byQuery: map[string]textgen.Response{
		"latest AI news": {
			Text: "I found several relevant posts but cannot format them.",
			Sources: []textgen.Source{
				{URL: "https://example.com/cited1"},
				{URL: "https://example.com/cited2", Title: "Cited title"},
			},
		},
	}}

	reg := writeSourcesFile(t, `
topics:
  - category: ai
    query: latest AI news
`)
	fetcher := NewSearchFetcher(gen, reg, SearchConfig{}, nil)
	got, err := fetcher.Fetch(context.Background())

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "関連ニュース", got[0].Title)
	assert.Equal(t, "https://example.com/cited1", got[0].OriginalURL)
	assert.Equal(t, "Cited title", got[1].Title)
}

func TestSearchFetcherNoJSONAndNoSourcesDropsTopic(t *testing.T) {
	gen := &scriptedGen{byQuery: map[string]textgen.Response{
		"latest AI news": {Text: "nothing useful"},
	}}

	reg := writeSourcesFile(t, `
topics:
  - category: ai
    query: latest AI news
`)
	fetcher := NewSearchFetcher(gen, reg, SearchConfig{}, nil)
	got, err := fetcher.Fetch(context.Background())

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchFetcherCapsPerTopic(t *testing.T) {
	gen := &scriptedGen{byQuery: map[string]textgen.Response{
		"latest AI news": {Text: `[
			{"title":"1","summary":"s","url":"https://example.com/1"},
			{"title":"2","summary":"s","url":"https://example.com/2"},
			{"title":"3","summary":"s","url":"https://example.com/3"}
		]`},
	}}

	reg := writeSourcesFile(t, `
topics:
  - category: ai
    query: latest AI news
`)
	fetcher := NewSearchFetcher(gen, reg, SearchConfig{MaxPerTopic: 2}, nil)
	got, err := fetcher.Fetch(context.Background())

	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSearchFetcherDropsBlankURLs(t *testing.T) {
	gen := &scriptedGen{byQuery: map[string]textgen.Response{
		"latest AI news": {Text: `[
			{"title":"keep","summary":"s","url":"https://example.com/k"},
			{"title":"drop","summary":"s","url":"  "}
		]`},
	}}

	reg := writeSourcesFile(t, `
topics:
  - category: ai
    query: latest AI news
`)
	fetcher := NewSearchFetcher(gen, reg, SearchConfig{}, nil)
	got, err := fetcher.Fetch(context.Background())

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "keep", got[0].Title)
}
