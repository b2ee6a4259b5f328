package alerts

import (
	"context"
	"strings"
)

// MessagePublisher is satisfied by camunda.Client.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, name, correlationKey, messageID string, variables interface{}) error
}

// ZeebePublisher publishes events as zeebe messages so a BPMN enforcement process can
// correlate on them. The message name is the event type in kebab case, e.g.
// compliance-report-created.
type ZeebePublisher struct {
	client MessagePublisher
}

// NewZeebePublisher creates a publisher that sends events as zeebe messages.
func NewZeebePublisher(client MessagePublisher) *ZeebePublisher {
	return &ZeebePublisher{client: client}
}

// MessageName turns an event type into its BPMN message name.
func MessageName(t EventType) string {
	return strings.NewReplacer(".", "-", "_", "-").Replace(string(t))
}

func (p *ZeebePublisher) Publish(ctx context.Context, event Event) error {
	vars := map[string]interface{}{
		"eventId":    event.ID,
		"eventType":  string(event.Type),
		"severity":   event.Severity,
		"occurredAt": event.OccurredAt,
		"payload":    event.Payload,
	}
	return p.client.PublishMessage(ctx, MessageName(event.Type), event.CorrelationKey, event.ID, vars)
}
