package textgen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatClientGenerate(t *testing.T) {
	var captured chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices":[{"message":{"content":"generated text"}}],
			"citations":["https://example.com/a"," ","https://example.com/b"]
		}`))
	}))
	defer srv.Close()

	client := NewChatClient(Config{
		Endpoint: srv.URL,
		Model:    "grok-3-latest",
		APIKey:   "secret-key",
		Timeout:  5 * time.Second,
	}, nil)

	got, err := client.Generate(context.Background(), "hello", Options{
		Search:           true,
		XHandles:         []string{"golang"},
		MaxSearchResults: 10,
	})

	require.NoError(t, err)
	assert.Equal(t, "generated text", got.Text)
	require.Len(t, got.Sources, 2, "blank citations must be dropped")
	assert.Equal(t, "https://example.com/a", got.Sources[0].URL)

	assert.Equal(t, "grok-3-latest", captured.Model)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
	assert.Equal(t, "hello", captured.Messages[0].Content)
	require.NotNil(t, captured.SearchParameters)
	assert.Equal(t, "on", captured.SearchParameters.Mode)
	assert.True(t, captured.SearchParameters.ReturnCitations)
	require.Len(t, captured.SearchParameters.Sources, 1)
	assert.Equal(t, []string{"golang"}, captured.SearchParameters.Sources[0].IncludedXHandles)
}

func TestChatClientOmitsSearchParamsByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_, present := req["search_parameters"]
		assert.False(t, present)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	client := NewChatClient(Config{Endpoint: srv.URL, Model: "m", APIKey: "k"}, nil)

	got, err := client.Generate(context.Background(), "p", Options{})
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Text)
}

func TestChatClientNon200Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	client := NewChatClient(Config{Endpoint: srv.URL, Model: "m", APIKey: "k"}, nil)

	_, err := client.Generate(context.Background(), "p", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestChatClientEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	client := NewChatClient(Config{Endpoint: srv.URL, Model: "m", APIKey: "k"}, nil)

	_, err := client.Generate(context.Background(), "p", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestChatClientMisconfigured(t *testing.T) {
	client := NewChatClient(Config{Model: "m"}, nil)

	_, err := client.Generate(context.Background(), "p", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "misconfigured")
}
