package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/om2108/OneGate/libs/kafkax"
	"github.com/om2108/OneGate/services/visit-service/internal/model"
	"github.com/segmentio/kafka-go"
)

// Lifecycle event types; the Kafka topic name equals the event type.
const (
	AppointmentRequested = "visit.appointment.requested.v1"
	AppointmentApproved  = "visit.appointment.approved.v1"
	AppointmentDeclined  = "visit.appointment.declined.v1"
	AppointmentDeleted   = "visit.appointment.deleted.v1"
	AppointmentExpired   = "visit.appointment.expired.v1"
	AppointmentScored    = "visit.appointment.scored.v1"
)

// Publisher emits appointment lifecycle notifications. Delivery is
// best-effort at-most-once: a failed write is logged and never blocks
// or rolls back the state transition that produced it.
type Publisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewPublisher(brokers string, logger *slog.Logger) *Publisher {
	list := kafkax.SplitBrokers(brokers)
	if len(list) == 0 {
		logger.Warn("lifecycle events disabled (no kafka brokers configured)")
		return &Publisher{logger: logger}
	}
	return &Publisher{
		writer: kafka.NewWriter(kafka.WriterConfig{
			Brokers:  list,
			Balancer: &kafka.Hash{},
		}),
		logger: logger,
	}
}

func (p *Publisher) Close() {
	if p != nil && p.writer != nil {
		_ = p.writer.Close()
	}
}

func (p *Publisher) Publish(ctx context.Context, eventType string, appt model.Appointment) {
	if p == nil || p.writer == nil {
		return
	}

	body := map[string]any{
		"appointment_id": appt.ID,
		"property_id":    appt.PropertyID,
		"requester_id":   appt.RequesterID,
		"status":         string(appt.Status),
		"location":       appt.Location,
	}
	if appt.ScheduledAt != nil {
		body["scheduled_at"] = appt.ScheduledAt.UTC().Format(time.RFC3339)
	}
	if appt.NoShowScore != nil {
		body["no_show_score"] = *appt.NoShowScore
	}
	payload, err := json.Marshal(body)
	if err != nil {
		p.logger.Error("failed to build event payload", "err", err, "event_type", eventType)
		return
	}

	msg := kafka.Message{
		Topic: eventType,
		Key:   []byte(appt.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(uuid.NewString())},
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	msg.Headers = kafkax.InjectTraceHeaders(ctx, msg.Headers)

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("event publish failed", "err", err, "event_type", eventType, "appointment_id", appt.ID)
	}
}
