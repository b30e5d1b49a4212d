package publish

import (
	"context"
	"time"

	"github.com/mikan-dev/tech-kawaraban/internal/logger"
)

// Event describes one completed curation run. Publishers fan it out to
// downstream consumers (ops alerting, cache warmers, static-site rebuilds).
type Event struct {
	RunID      string         `json:"runId"`
	Count      int            `json:"count"`
	Timestamp  time.Time      `json:"timestamp"`
	Categories map[string]int `json:"categories,omitempty"`
}

// Publisher delivers run events to one configured sink.
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}

// NotifyAll delivers the event to every publisher, best-effort. Failures are
// logged and never aggregated into an error: a sink outage must not fail the
// run that produced the event.
func NotifyAll(ctx context.Context, pubs []Publisher, evt Event, log logger.Logger) {
	log = logger.Ensure(log)
	for _, pub := range pubs {
		if err := pub.Publish(ctx, evt); err != nil {
			log.WarnObj("run event delivery failed", "publish_error", map[string]any{
				"publisher": pub.ID(),
				"type":      pub.Type(),
				"error":     err.Error(),
			})
			continue
		}
		log.DebugObj("run event delivered", "publish_ok", map[string]any{
			"publisher": pub.ID(),
			"run_id":    evt.RunID,
		})
	}
}
