package curate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikan-dev/tech-kawaraban/internal/domain"
	"github.com/mikan-dev/tech-kawaraban/pkg/textgen"
)

// fakeGen scripts the text-generation capability.
type fakeGen struct {
	response textgen.Response
	err      error
	calls    int
	lastArgs string
}

func (f *fakeGen) Generate(_ context.Context, prompt string, _ textgen.Options) (textgen.Response, error) {
	f.calls++
	f.lastArgs = prompt
	return f.response, f.err
}

func makeCandidates(n int) []domain.Article {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cats := domain.Categories()
	out := make([]domain.Article, 0, n)
	for i := range n {
		out = append(out, domain.Article{
			ID:          fmt.Sprintf("id-%d", i),
			Title:       fmt.Sprintf("title %d", i),
			OriginalURL: fmt.Sprintf("https://example.com/%d", i),
			Category:    cats[i%len(cats)],
			Source:      domain.SourceRSS,
			FetchedAt:   base.Add(-time.Duration(i) * time.Minute),
		})
	}
	return out
}

func assertValidRanks(t *testing.T, articles []domain.Article, maxLen int) {
	t.Helper()
	assert.LessOrEqual(t, len(articles), maxLen)
	counters := map[domain.Category]int{}
	for i, art := range articles {
		assert.Equal(t, i+1, art.Rank, "rank must be contiguous from 1")
		counters[art.Category]++
		assert.Equal(t, counters[art.Category], art.CategoryRank, "category rank must count per category")
	}
}

func TestCurateSmallBatchKeepsChronologicalOrder(t *testing.T) {
	gen := &fakeGen{}
	c := New(gen, 20, nil)
	candidates := makeCandidates(5)

	got := c.Curate(context.Background(), candidates, nil)

	require.Len(t, got, 5)
	for i, art := range got {
		assert.Equal(t, candidates[i].ID, art.ID)
		assert.Equal(t, i+1, art.Rank)
	}
	assert.Zero(t, gen.calls, "small batches must not call the model")

	// Pure function: a second pass yields the identical assignment.
	again := c.Curate(context.Background(), candidates, nil)
	assert.Equal(t, got, again)
}

func TestCurateExclusionEmptiesCandidates(t *testing.T) {
	c := New(&fakeGen{}, 20, nil)
	candidates := makeCandidates(3)

	got := c.Curate(context.Background(), candidates, candidates)

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCurateLargeBatchUsesModelSelection(t *testing.T) {
	candidates := makeCandidates(25)
	published := []domain.Article{
		{OriginalURL: "https://example.com/0"},
		{OriginalURL: "https://example.com/1"},
		{OriginalURL: "https://example.com/2"},
	}

	// The model answers with 20 ids from the surviving 22, in its own order.
	var ids []string
	for i := 22; i >= 3; i-- {
		ids = append(ids, fmt.Sprintf("id-%d", i))
	}
	payload, err := json.Marshal(ids)
	require.NoError(t, err)

	gen := &fakeGen{response: textgen.Response{Text: "Here you go:\n" + string(payload)}}
	c := New(gen, 20, nil)

	got := c.Curate(context.Background(), candidates, published)

	assert.Equal(t, 1, gen.calls)
	assertValidRanks(t, got, 20)
	for _, art := range got {
		for _, pub := range published {
			assert.NotEqual(t, pub.OriginalURL, art.OriginalURL)
		}
	}
	// Model order decides rank.
	assert.Equal(t, "id-22", got[0].ID)
}

func TestCurateSkipsHallucinatedIDs(t *testing.T) {
	candidates := makeCandidates(25)

	ids := []string{"id-3", "made-up", "id-4", "also-fake", "id-5"}
	payload, _ := json.Marshal(ids)
	gen := &fakeGen{response: textgen.Response{Text: string(payload)}}
	c := New(gen, 20, nil)

	got := c.Curate(context.Background(), candidates, nil)

	require.Len(t, got, 3)
	assert.Equal(t, []string{"id-3", "id-4", "id-5"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assertValidRanks(t, got, 20)
}

func TestCurateTruncatesOverSelection(t *testing.T) {
	candidates := makeCandidates(30)

	ids := make([]string, 0, 30)
	for i := range 30 {
		ids = append(ids, fmt.Sprintf("id-%d", i))
	}
	payload, _ := json.Marshal(ids)
	gen := &fakeGen{response: textgen.Response{Text: string(payload)}}
	c := New(gen, 20, nil)

	got := c.Curate(context.Background(), candidates, nil)

	assert.Len(t, got, 20)
	assertValidRanks(t, got, 20)
}

func TestCurateFallbackMatchesSuccessShape(t *testing.T) {
	candidates := makeCandidates(25)

	cases := map[string]*fakeGen{
		"call error":    {err: errors.New("upstream down")},
		"no JSON array": {response: textgen.Response{Text: "sorry, cannot help with that"}},
		"invalid JSON":  {response: textgen.Response{Text: "[not, valid, json"}},
	}

	for name, gen := range cases {
		t.Run(name, func(t *testing.T) {
			c := New(gen, 20, nil)
			got := c.Curate(context.Background(), candidates, nil)

			require.Len(t, got, 20)
			assertValidRanks(t, got, 20)
			// Deterministic fallback: first 20 in chronological order.
			for i, art := range got {
				assert.Equal(t, candidates[i].ID, art.ID)
			}
		})
	}
}

func TestCuratePromptCarriesExclusionList(t *testing.T) {
	candidates := makeCandidates(25)
	published := []domain.Article{{Title: "old news", OriginalURL: "https://example.com/old"}}

	gen := &fakeGen{response: textgen.Response{Text: `["id-1"]`}}
	c := New(gen, 20, nil)
	c.Curate(context.Background(), candidates, published)

	assert.Contains(t, gen.lastArgs, "https://example.com/old")
	assert.Contains(t, gen.lastArgs, "CRITICAL EXCLUSION RULE")
}

func TestCategoryRanksRestartPerCategory(t *testing.T) {
	articles := []domain.Article{
		{Category: domain.CategoryAI, Rank: 1},
		{Category: domain.CategoryFrontend, Rank: 2},
		{Category: domain.CategoryAI, Rank: 3},
		{Category: domain.CategoryAI, Rank: 4},
		{Category: domain.CategoryFrontend, Rank: 5},
	}

	got := assignCategoryRanks(articles)

	assert.Equal(t, []int{1, 1, 2, 3, 2}, []int{
		got[0].CategoryRank, got[1].CategoryRank, got[2].CategoryRank,
		got[3].CategoryRank, got[4].CategoryRank,
	})
}
