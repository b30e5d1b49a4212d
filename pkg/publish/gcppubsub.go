package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/mikan-dev/tech-kawaraban/internal/logger"
)

// gcpTopic defines the minimal subset of the Pub/Sub topic used by the sender.
type gcpTopic interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// gcpPubSubSender implements queueSender for Google Cloud Pub/Sub.
type gcpPubSubSender struct {
	topic gcpTopic
	log   logger.Logger
}

// newGCPPubSubSender builds a Pub/Sub sender, optionally with an explicit
// credentials file.
func newGCPPubSubSender(ctx context.Context, cfg *GCPPubSubConfig, log logger.Logger) (queueSender, error) {
	if cfg == nil {
		return nil, fmt.Errorf("gcp pubsub configuration is missing")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	return &gcpPubSubSender{
		topic: client.Topic(cfg.Topic),
		log:   logger.Ensure(log),
	}, nil
}

// Send publishes the run event to the configured Pub/Sub topic and waits for
// the server acknowledgement.
func (s *gcpPubSubSender) Send(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal run event: %w", err)
	}

	result := s.topic.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"run_id": evt.RunID,
			"count":  strconv.Itoa(evt.Count),
		},
	})

	id, err := result.Get(ctx)
	if err != nil {
		s.log.ErrorObj("pubsub publisher send failed", "publisher_pubsub_error", map[string]any{
			"error": err.Error(),
		})
		return fmt.Errorf("send run event to pubsub: %w", err)
	}
	s.log.DebugObj("pubsub publisher delivered run event", "publisher_pubsub_delivery", map[string]any{
		"message_id": id,
	})
	return nil
}
