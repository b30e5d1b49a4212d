package textgen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mikan-dev/tech-kawaraban/pkg/httpclient"
)

// Source is a citation attached to a generated response.
type Source struct {
	URL   string
	Title string
}

// Response carries the generated text plus any citations the provider
// returned. Callers treat Text as opaque and extract structured payloads
// with ExtractObject/ExtractArray.
type Response struct {
	Text    string
	Sources []Source
}

// Options tunes a single generation call. Search enables provider-side live
// search (X posts restricted to XHandles when given).
type Options struct {
	Model            string
	Search           bool
	XHandles         []string
	MaxSearchResults int
}

// Client is the text-generation capability consumed by the pipeline.
type Client interface {
	Generate(ctx context.Context, prompt string, opts Options) (Response, error)
}

// Config holds the settings for the chat-completions backed client.
type Config struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

type chatClient struct {
	endpoint string
	model    string
	apiKey   string
	http     httpclient.Client
}

// NewChatClient builds a Client for OpenAI-compatible chat-completion APIs
// (xAI included, which adds live-search parameters on the same surface).
func NewChatClient(cfg Config, client httpclient.Client) Client {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = httpclient.NewRestyClient(timeout)
	}
	return &chatClient{
		endpoint: strings.TrimSpace(cfg.Endpoint),
		model:    strings.TrimSpace(cfg.Model),
		apiKey:   cfg.APIKey,
		http:     client,
	}
}

type chatRequest struct {
	Model            string            `json:"model"`
	Messages         []chatMessage     `json:"messages"`
	SearchParameters *searchParameters `json:"search_parameters,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type searchParameters struct {
	Mode             string         `json:"mode"`
	ReturnCitations  bool           `json:"return_citations"`
	MaxSearchResults int            `json:"max_search_results,omitempty"`
	Sources          []searchSource `json:"sources,omitempty"`
}

type searchSource struct {
	Type             string   `json:"type"`
	IncludedXHandles []string `json:"included_x_handles,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

// Generate posts a single-user-message prompt and returns the raw completion.
func (c *chatClient) Generate(ctx context.Context, prompt string, opts Options) (Response, error) {
	if c.endpoint == "" || c.apiKey == "" {
		return Response{}, fmt.Errorf("text generation client misconfigured")
	}

	model := opts.Model
	if model == "" {
		model = c.model
	}

	req := chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}
	if opts.Search {
		req.SearchParameters = &searchParameters{
			Mode:             "on",
			ReturnCitations:  true,
			MaxSearchResults: opts.MaxSearchResults,
		}
		if len(opts.XHandles) > 0 {
			req.SearchParameters.Sources = []searchSource{
				{Type: "x", IncludedXHandles: opts.XHandles},
			}
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal generation request: %w", err)
	}

	headers := map[string]string{
		"Authorization": "Bearer " + c.apiKey,
		"Content-Type":  "application/json",
	}

	resp, err := c.http.Post(ctx, c.endpoint, headers, body)
	if err != nil {
		return Response{}, fmt.Errorf("call text generation api: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return Response{}, fmt.Errorf("text generation api returned status %d body: %s",
			resp.StatusCode(), bodySnippet(resp.Body()))
	}

	var decoded chatResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return Response{}, fmt.Errorf("decode text generation response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return Response{}, fmt.Errorf("text generation response has no choices")
	}

	out := Response{Text: decoded.Choices[0].Message.Content}
	for _, cite := range decoded.Citations {
		if cite = strings.TrimSpace(cite); cite != "" {
			out.Sources = append(out.Sources, Source{URL: cite})
		}
	}
	return out, nil
}

// bodySnippet truncates a response body for error messages.
func bodySnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
