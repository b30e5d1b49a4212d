package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mikan-dev/tech-kawaraban/internal/logger"
	"github.com/mikan-dev/tech-kawaraban/pkg/httpclient"
)

// httpPublisher posts run events to a generic webhook sink.
type httpPublisher struct {
	id     string
	cfg    HTTPPublisherConfig
	client httpclient.Client
	log    logger.Logger
}

// newHTTPPublisher creates a webhook publisher from a config entry.
func newHTTPPublisher(_ context.Context, cfg PublisherConfig, log logger.Logger) (Publisher, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("publisher %q missing http configuration", cfg.ID)
	}
	if cfg.HTTP.Method != http.MethodPost {
		return nil, fmt.Errorf("http method %q not supported for publisher %q", cfg.HTTP.Method, cfg.ID)
	}

	timeout := time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second
	return &httpPublisher{
		id:     cfg.ID,
		cfg:    *cfg.HTTP,
		client: httpclient.NewRestyClient(timeout),
		log:    logger.Ensure(log),
	}, nil
}

func (p *httpPublisher) ID() string   { return p.id }
func (p *httpPublisher) Type() string { return TypeHTTP }

// Publish posts the JSON-encoded run event to the configured URL.
func (p *httpPublisher) Publish(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal run event: %w", err)
	}

	headers := map[string]string{"Content-Type": "application/json"}
	for k, v := range p.cfg.Headers {
		headers[k] = v
	}

	resp, err := p.client.Post(ctx, p.cfg.URL, headers, payload)
	if err != nil {
		return fmt.Errorf("post run event: %w", err)
	}
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}

	p.log.DebugObj("http publisher delivered run event", "publisher_http_delivery", map[string]any{
		"url": p.cfg.URL,
	})
	return nil
}
