package alerts

import (
	"context"
	"encoding/json"
	"fmt"
)

// TopicPublisher is satisfied by aws.SNSClient.
type TopicPublisher interface {
	PublishMessage(ctx context.Context, subject, body string, attributes map[string]string) (string, error)
}

// SNSPublisher publishes events as JSON to an SNS topic.
type SNSPublisher struct {
	topic TopicPublisher
}

// NewSNSPublisher creates an SNS-backed publisher.
func NewSNSPublisher(topic TopicPublisher) *SNSPublisher {
	return &SNSPublisher{topic: topic}
}

// Publish sends the JSON envelope with eventType and severity message attributes so
// subscribers can filter without parsing the body.
func (p *SNSPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}
	_, err = p.topic.PublishMessage(ctx, string(event.Type), string(body), map[string]string{
		"eventType": string(event.Type),
		"severity":  event.Severity,
	})
	return err
}
