package sources

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mikan-dev/tech-kawaraban/internal/domain"
)

// Registry is the single shared table of content sources: RSS feed endpoints,
// per-category search topics, the keyword allow-list applied to feed items,
// and the per-category hint text shared by the summarizer prompt rubric. One
// table feeds both the fetchers and the summarizer so the two cannot drift.
type Registry struct {
	feeds    []Feed
	topics   []Topic
	keywords []string
	hints    map[domain.Category]string
}

// Feed is one RSS feed endpoint.
type Feed struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Language string `yaml:"language"`
}

// Topic is one search unit: a category with its query and the X accounts
// whose posts the live search is restricted to.
type Topic struct {
	Category domain.Category `yaml:"category"`
	Query    string          `yaml:"query"`
	XHandles []string        `yaml:"x_handles"`
}

type registryFile struct {
	Feeds    []Feed            `yaml:"feeds"`
	Topics   []Topic           `yaml:"topics"`
	Keywords []string          `yaml:"keywords"`
	Hints    map[string]string `yaml:"hints"`
}

// Load reads the sources registry from a YAML file. Environment variables in
// the file are expanded before decoding. Sections left empty fall back to the
// built-in defaults.
func Load(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sources file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &file); err != nil {
		return nil, fmt.Errorf("decode sources file: %w", err)
	}

	reg := Default()
	if len(file.Feeds) > 0 {
		feeds, err := sanitizeFeeds(file.Feeds)
		if err != nil {
			return nil, err
		}
		reg.feeds = feeds
	}
	if len(file.Topics) > 0 {
		topics, err := sanitizeTopics(file.Topics)
		if err != nil {
			return nil, err
		}
		reg.topics = topics
	}
	if len(file.Keywords) > 0 {
		reg.keywords = sanitizeKeywords(file.Keywords)
	}
	for name, hint := range file.Hints {
		cat := domain.Category(strings.ToLower(strings.TrimSpace(name)))
		if !domain.ValidCategory(cat) {
			return nil, fmt.Errorf("hints: unknown category %q", name)
		}
		if hint = strings.TrimSpace(hint); hint != "" {
			reg.hints[cat] = hint
		}
	}

	return reg, nil
}

func sanitizeFeeds(in []Feed) ([]Feed, error) {
	seen := make(map[string]struct{}, len(in))
	out := make([]Feed, 0, len(in))
	for i, f := range in {
		f.Name = strings.TrimSpace(f.Name)
		f.URL = strings.TrimSpace(f.URL)
		f.Language = strings.ToLower(strings.TrimSpace(f.Language))
		if f.Name == "" {
			return nil, fmt.Errorf("feeds[%d]: name is required", i)
		}
		if f.URL == "" {
			return nil, fmt.Errorf("feed %q: url is required", f.Name)
		}
		key := strings.ToLower(f.Name)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate feed %q", f.Name)
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	return out, nil
}

func sanitizeTopics(in []Topic) ([]Topic, error) {
	seen := make(map[domain.Category]struct{}, len(in))
	out := make([]Topic, 0, len(in))
	for i, t := range in {
		t.Category = domain.Category(strings.ToLower(strings.TrimSpace(string(t.Category))))
		t.Query = strings.TrimSpace(t.Query)
		if !domain.ValidCategory(t.Category) {
			return nil, fmt.Errorf("topics[%d]: unknown category %q", i, t.Category)
		}
		if t.Query == "" {
			return nil, fmt.Errorf("topic %q: query is required", t.Category)
		}
		if _, dup := seen[t.Category]; dup {
			return nil, fmt.Errorf("duplicate topic for category %q", t.Category)
		}
		seen[t.Category] = struct{}{}

		handles := make([]string, 0, len(t.XHandles))
		for _, h := range t.XHandles {
			if h = strings.TrimSpace(h); h != "" {
				handles = append(handles, h)
			}
		}
		t.XHandles = handles
		out = append(out, t)
	}
	return out, nil
}

func sanitizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, kw := range in {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// Feeds returns the configured RSS feeds.
func (r *Registry) Feeds() []Feed { return r.feeds }

// Topics returns the configured search topics.
func (r *Registry) Topics() []Topic { return r.topics }

// Keywords returns the lowercase keyword allow-list for feed items.
func (r *Registry) Keywords() []string { return r.keywords }

// Hint returns the category selection hint used in the summarizer rubric.
func (r *Registry) Hint(c domain.Category) string { return r.hints[c] }

// Default returns the built-in registry used when no sources file is
// configured.
func Default() *Registry {
	return &Registry{
		feeds: []Feed{
			{Name: "Zenn", URL: "https://zenn.dev/feed", Language: "ja"},
			{Name: "Qiita", URL: "https://qiita.com/popular-items/feed", Language: "ja"},
			{Name: "Dev.to", URL: "https://dev.to/feed", Language: "en"},
			{Name: "Hacker News", URL: "https://hnrss.org/frontpage", Language: "en"},
		},
		topics: []Topic{
			{
				Category: domain.CategoryAI,
				Query:    "Latest AI, LLM, machine learning, ChatGPT, Claude news and announcements",
				XHandles: []string{"OpenAI", "AnthropicAI", "GoogleAI", "xai", "_akhaliq"},
			},
			{
				Category: domain.CategoryFrontend,
				Query:    "Latest React, Vue, Svelte, Next.js, frontend framework news and releases",
				XHandles: []string{"reactjs", "vuejs", "svelte", "vercel", "nextjs"},
			},
			{
				Category: domain.CategoryBackend,
				Query:    "Latest Go, Rust, Node.js, Bun, Deno, Hono backend framework news and releases",
				XHandles: []string{"golang", "rustlang", "honojs", "bunjavascript", "deno_land"},
			},
			{
				Category: domain.CategoryInfra,
				Query:    "Latest Supabase, Convex, Turso, Docker, Kubernetes infrastructure news and releases",
				XHandles: []string{"supabase", "convex_dev", "tursodatabase", "Docker", "kubernetesio"},
			},
			{
				Category: domain.CategoryMobile,
				Query:    "Latest React Native, Flutter, iOS, Android, Expo mobile development news",
				XHandles: []string{"reactnative", "FlutterDev", "Apple", "Android", "expo"},
			},
		},
		keywords: []string{
			"react", "next", "typescript", "javascript", "ai", "llm", "gpt",
			"node", "bun", "deno", "rust", "go", "python", "frontend",
			"backend", "api", "web", "tanstack", "hono", "elysia",
		},
		hints: map[domain.Category]string{
			domain.CategoryAI:       "AI, LLM, machine learning, deep learning, ChatGPT, Claude, AI agents (any language)",
			domain.CategoryFrontend: "React, Vue, Svelte, Angular, UI libraries, web frontend, TypeScript frontend",
			domain.CategoryBackend:  "Go, Rust, Python, Node.js, Java, Hono, Elysia, API, microservices, server-side",
			domain.CategoryInfra:    "DBaaS, BaaS, cloud services, Docker, Kubernetes, Convex, Turso, Supabase, Neon",
			domain.CategoryMobile:   "React Native, Flutter, Swift, Kotlin, iOS, Android, mobile apps",
		},
	}
}
