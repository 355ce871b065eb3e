package audit

import (
	"context"

	"github.com/baechuer/real-time-ressys/services/jam-service/internal/domain"
	appCtx "github.com/baechuer/real-time-ressys/services/jam-service/internal/pkg/context"
	"github.com/rs/zerolog"
)

// Logger provides structured audit logging for registration changes.
type Logger struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

// Registered logs a successful seat reservation.
func (l *Logger) Registered(ctx context.Context, ev domain.Event, userID string) {
	l.log.Info().
		Str("action", "registration_created").
		Str("event_id", ev.ID).
		Str("user_id", userID).
		Int("reserved", ev.Reserved).
		Int("max_capacity", ev.MaxCapacity).
		Str("trace_id", appCtx.GetTraceID(ctx)).
		Msg("User registered for event")
}

// Canceled logs a cancellation that released a seat.
func (l *Logger) Canceled(ctx context.Context, ev domain.Event, userID string) {
	l.log.Info().
		Str("action", "registration_canceled").
		Str("event_id", ev.ID).
		Str("user_id", userID).
		Int("reserved", ev.Reserved).
		Str("trace_id", appCtx.GetTraceID(ctx)).
		Msg("User canceled registration")
}

// ConsistencyViolation logs reserved observed outside [0, max_capacity].
// The value is reported as read, never corrected.
func (l *Logger) ConsistencyViolation(ctx context.Context, ev domain.Event, source string) {
	l.log.Error().
		Str("action", "consistency_violation").
		Str("source", source).
		Str("event_id", ev.ID).
		Int("reserved", ev.Reserved).
		Int("max_capacity", ev.MaxCapacity).
		Str("trace_id", appCtx.GetTraceID(ctx)).
		Msg("Reserved seats out of bounds")
}

// CapacityRejected logs an organizer update whose max_capacity fell below reserved.
func (l *Logger) CapacityRejected(ctx context.Context, eventID string, reserved, requested int) {
	l.log.Warn().
		Str("action", "capacity_rejected").
		Str("event_id", eventID).
		Int("reserved", reserved).
		Int("requested_max_capacity", requested).
		Str("trace_id", appCtx.GetTraceID(ctx)).
		Msg("Capacity update below reserved seats rejected")
}

// EventRemoved logs an organizer delete that dropped registrations with it.
func (l *Logger) EventRemoved(ctx context.Context, eventID string) {
	l.log.Warn().
		Str("action", "event_removed").
		Str("event_id", eventID).
		Str("trace_id", appCtx.GetTraceID(ctx)).
		Msg("Event removed with its registrations")
}

func (l *Logger) OutboxMessageSent(ctx context.Context, messageID, routingKey string) {
	l.log.Debug().
		Str("action", "outbox_sent").
		Str("message_id", messageID).
		Str("routing_key", routingKey).
		Msg("Outbox message sent")
}

func (l *Logger) OutboxMessageDead(ctx context.Context, messageID, routingKey string, retries int) {
	l.log.Error().
		Str("action", "outbox_dead").
		Str("message_id", messageID).
		Str("routing_key", routingKey).
		Int("retries", retries).
		Msg("Outbox message moved to dead status")
}
