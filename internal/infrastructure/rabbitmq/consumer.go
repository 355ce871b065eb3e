package rabbitmq

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/baechuer/real-time-ressys/services/jam-service/internal/contracts/event"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/metrics"
	appCtx "github.com/baechuer/real-time-ressys/services/jam-service/internal/pkg/context"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/pkg/logger"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/service"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	queueName     = "jam-service.event-lifecycle"
	consumerTag   = "jam-service"
	prefetchCount = 10
)

// errDrop marks a message that can never succeed; it is acked and counted.
var errDrop = errors.New("drop")

// Applier is the lifecycle entry point the consumer feeds.
type Applier interface {
	Apply(ctx context.Context, messageID string, ch service.Change) (applied bool, err error)
}

type Consumer struct {
	rabbitURL string
	exchange  string
	lifecycle Applier
}

func NewConsumer(rabbitURL, exchange string, lifecycle Applier) *Consumer {
	return &Consumer{
		rabbitURL: strings.TrimSpace(rabbitURL),
		exchange:  strings.TrimSpace(exchange),
		lifecycle: lifecycle,
	}
}

// Run consumes until ctx is done. Setup failures and a closed delivery
// channel are returned so the supervisor can restart the process.
func (c *Consumer) Run(ctx context.Context) error {
	log := logger.Component("rabbitmq_consumer")

	conn, err := amqp.Dial(c.rabbitURL)
	if err != nil {
		return fmt.Errorf("consumer: dial rabbitmq: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("consumer: open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(c.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("consumer: declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consumer: declare queue: %w", err)
	}
	for _, rk := range []string{event.RKEventPublished, event.RKEventUpdated, event.RKEventDeactivated, event.RKEventDeleted} {
		if err := ch.QueueBind(q.Name, rk, c.exchange, false, nil); err != nil {
			return fmt.Errorf("consumer: bind %s: %w", rk, err)
		}
	}
	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		return fmt.Errorf("consumer: qos: %w", err)
	}

	deliveries, err := ch.Consume(q.Name, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consumer: consume: %w", err)
	}

	metrics.SetDependencyHealth("rabbitmq", true)
	log.Info().Str("queue", q.Name).Msg("consumer started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("consumer stopped")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				metrics.SetDependencyHealth("rabbitmq", false)
				return errors.New("consumer: delivery channel closed")
			}
			if err := c.handleDelivery(ctx, d); err != nil {
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// handleDelivery returns an error only when the message should be requeued.
func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) error {
	baseLog := logger.Logger.With().
		Str("component", "rabbitmq_consumer").
		Str("routing_key", d.RoutingKey).
		Logger()

	var env event.DomainEventEnvelope[json.RawMessage]
	if err := json.Unmarshal(d.Body, &env); err != nil {
		baseLog.Warn().Err(err).Msg("invalid envelope json; dropping")
		metrics.RecordLifecycleMessage(d.RoutingKey, "dropped")
		return nil
	}
	if env.Version != event.EnvelopeVersion {
		baseLog.Warn().Int("version", env.Version).Msg("unsupported envelope version; dropping")
		metrics.RecordLifecycleMessage(d.RoutingKey, "dropped")
		return nil
	}

	msgID := messageID(env.MessageID, d)
	traceID := strings.TrimSpace(env.TraceID)
	log := baseLog.With().Str("message_id", msgID).Str("trace_id", traceID).Logger()

	change, err := toChange(d.RoutingKey, env.Payload)
	if err != nil {
		log.Warn().Err(err).Msg("unusable payload; dropping")
		metrics.RecordLifecycleMessage(d.RoutingKey, "dropped")
		return nil
	}

	ctx = appCtx.WithTraceID(ctx, traceID)
	applied, err := c.lifecycle.Apply(ctx, msgID, change)
	return settle(log, d.RoutingKey, applied, err)
}

// settle decides between ack and requeue. Transient and unclassified
// failures are retried; a domain rejection will fail the same way again.
func settle(log zerolog.Logger, routingKey string, applied bool, err error) error {
	switch {
	case err == nil && applied:
		metrics.RecordLifecycleMessage(routingKey, "applied")
		return nil
	case err == nil:
		log.Info().Msg("duplicate delivery ignored")
		metrics.RecordLifecycleMessage(routingKey, "duplicate")
		return nil
	case domain.IsRetryable(err) || domain.KindOf(err) == "":
		log.Error().Err(err).Msg("processing failed (requeue)")
		metrics.RecordLifecycleMessage(routingKey, "requeued")
		return err
	default:
		log.Warn().Err(err).Str("code", string(domain.CodeOf(err))).Msg("change rejected; dropping")
		metrics.RecordLifecycleMessage(routingKey, "rejected")
		return nil
	}
}

// messageID prefers the envelope id, then the AMQP property, then a content hash.
func messageID(envID string, d amqp.Delivery) string {
	if id := strings.TrimSpace(envID); id != "" {
		return id
	}
	if id := strings.TrimSpace(d.MessageId); id != "" {
		return id
	}
	h := sha256.Sum256(append([]byte(d.RoutingKey+"\n"), d.Body...))
	return "hash:" + hex.EncodeToString(h[:])
}

func toChange(routingKey string, raw json.RawMessage) (service.Change, error) {
	switch routingKey {
	case event.RKEventPublished, event.RKEventUpdated:
		var p event.EventSnapshotPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return service.Change{}, fmt.Errorf("%w: %v", errDrop, err)
		}
		ev, err := snapshotToEvent(p)
		if err != nil {
			return service.Change{}, err
		}
		return service.Change{Kind: service.ChangeUpsert, Event: ev}, nil

	case event.RKEventDeactivated, event.RKEventDeleted:
		var p event.EventRefPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return service.Change{}, fmt.Errorf("%w: %v", errDrop, err)
		}
		id := strings.TrimSpace(p.Ref())
		if id == "" {
			return service.Change{}, fmt.Errorf("%w: missing event_id", errDrop)
		}
		kind := service.ChangeDeactivate
		if routingKey == event.RKEventDeleted {
			kind = service.ChangeDelete
		}
		return service.Change{Kind: kind, EventID: id}, nil

	default:
		return service.Change{}, fmt.Errorf("%w: unknown routing key %q", errDrop, routingKey)
	}
}

// snapshotToEvent requires the fields a projection cannot guess. Reserved
// is left zero; the store keeps its own value on update.
func snapshotToEvent(p event.EventSnapshotPayload) (domain.Event, error) {
	id := strings.TrimSpace(p.EventID)
	if id == "" || strings.TrimSpace(p.OwnerID) == "" || p.DateTime == nil || p.MaxCapacity == nil {
		return domain.Event{}, fmt.Errorf("%w: missing required fields", errDrop)
	}
	ev := domain.Event{
		ID:          id,
		OwnerID:     strings.TrimSpace(p.OwnerID),
		Name:        strings.TrimSpace(p.Name),
		Description: p.Description,
		Genres:      p.Genres,
		Address:     p.Address,
		DateTime:    *p.DateTime,
		MaxCapacity: *p.MaxCapacity,
		Active:      true,
	}
	if p.Latitude != nil {
		ev.Latitude = *p.Latitude
	}
	if p.Longitude != nil {
		ev.Longitude = *p.Longitude
	}
	if p.Active != nil {
		ev.Active = *p.Active
	}
	return ev, nil
}
