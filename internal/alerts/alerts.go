// Package alerts publishes domain events to the outbound alert sinks. Delivery to people
// (SMS, email, push) is the job of whatever subscribes to these sinks.
package alerts

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"tourism-compliance/internal/common/errors"
	"tourism-compliance/internal/common/logger"

	"github.com/google/uuid"
)

// EventType names a domain event.
type EventType string

const (
	EventReportCreated      EventType = "compliance_report.created"
	EventEnforcementSummary EventType = "enforcement.summary"
	EventListingRevalidated EventType = "listing.revalidated"
)

// Event is the envelope every sink receives. CorrelationKey ties the event to the record
// it is about (report id, listing id or run id).
type Event struct {
	ID             string      `json:"id"`
	Type           EventType   `json:"type"`
	Severity       string      `json:"severity,omitempty"`
	CorrelationKey string      `json:"correlationKey"`
	OccurredAt     time.Time   `json:"occurredAt"`
	Payload        interface{} `json:"payload"`
}

// NewEvent stamps a new event with an id and the current time.
func NewEvent(eventType EventType, correlationKey, severity string, payload interface{}) Event {
	return Event{
		ID:             uuid.NewString(),
		Type:           eventType,
		Severity:       severity,
		CorrelationKey: correlationKey,
		OccurredAt:     time.Now().UTC(),
		Payload:        payload,
	}
}

// Publisher delivers domain events to an outbound sink.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// LogPublisher writes events to the structured log. It is the sink of last resort when no
// external transport is configured.
type LogPublisher struct {
	logger logger.Logger
}

// NewLogPublisher creates a sink that only logs events.
func NewLogPublisher(log logger.Logger) *LogPublisher {
	return &LogPublisher{logger: log.WithFields(map[string]interface{}{"component": "alerts"})}
}

func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	payload, _ := json.Marshal(event.Payload)
	p.logger.Info("domain event", map[string]interface{}{
		"eventId":        event.ID,
		"eventType":      string(event.Type),
		"severity":       event.Severity,
		"correlationKey": event.CorrelationKey,
		"payload":        string(payload),
	})
	return nil
}

// MultiPublisher fans an event out to every sink. All sinks are attempted; the failures
// are joined into one EventPublishFailed error.
type MultiPublisher struct {
	sinks []namedSink
}

type namedSink struct {
	name string
	pub  Publisher
}

// NewMultiPublisher creates an empty fan-out publisher.
func NewMultiPublisher() *MultiPublisher {
	return &MultiPublisher{}
}

// Add registers a named sink and returns m for chaining.
func (m *MultiPublisher) Add(name string, p Publisher) *MultiPublisher {
	if p != nil {
		m.sinks = append(m.sinks, namedSink{name: name, pub: p})
	}
	return m
}

func (m *MultiPublisher) Len() int { return len(m.sinks) }

// Publish attempts every sink and joins their errors.
func (m *MultiPublisher) Publish(ctx context.Context, event Event) error {
	var failed []string
	var errs []error
	for _, s := range m.sinks {
		if err := s.pub.Publish(ctx, event); err != nil {
			failed = append(failed, s.name)
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.NewEventPublishFailedError(fmt.Sprint(failed), stderrors.Join(errs...)).
		WithMetadata("eventId", event.ID).
		WithMetadata("eventType", string(event.Type))
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
