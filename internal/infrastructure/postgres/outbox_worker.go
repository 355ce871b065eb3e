package postgres

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/baechuer/real-time-ressys/services/jam-service/internal/audit"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/metrics"
	appCtx "github.com/baechuer/real-time-ressys/services/jam-service/internal/pkg/context"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/pkg/logger"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	outboxBatchSize   = 20
	outboxMaxAttempts = 12
	outboxInFlight    = 15 * time.Second
	outboxPollEvery   = 500 * time.Millisecond
	confirmWait       = 600 * time.Millisecond
)

// computeNextRetry is 2^attempt seconds clamped to [5s, 30m] with +/-10% jitter.
func computeNextRetry(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	sec := math.Pow(2, float64(attempt))
	if sec < 5 {
		sec = 5
	}
	if sec > 1800 {
		sec = 1800
	}
	d := time.Duration(sec) * time.Second
	j := time.Duration(rand.Int63n(int64(d/5))) - d/10
	return d + j
}

type outboxMsg struct {
	ID         uuid.UUID
	MessageID  uuid.UUID
	TraceID    string
	RoutingKey string
	Payload    []byte
	Attempt    int
}

// OutboxWorker relays pending outbox rows to the events exchange with
// publisher confirms and mandatory returns.
type OutboxWorker struct {
	repo     *Repository
	url      string
	exchange string
	audit    *audit.Logger
	log      zerolog.Logger
}

func (r *Repository) NewOutboxWorker(rabbitURL, exchange string, auditLog *audit.Logger) *OutboxWorker {
	if auditLog == nil {
		auditLog = audit.New(logger.Logger)
	}
	return &OutboxWorker{
		repo:     r,
		url:      rabbitURL,
		exchange: exchange,
		audit:    auditLog,
		log:      logger.Component("outbox_worker"),
	}
}

// Run blocks until ctx is done or the broker connection cannot be set up.
func (w *OutboxWorker) Run(ctx context.Context) error {

	conn, err := amqp.Dial(w.url)
	if err != nil {
		return fmt.Errorf("outbox: dial rabbitmq: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("outbox: open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(w.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("outbox: declare exchange %q: %w", w.exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("outbox: enable confirms: %w", err)
	}
	confirmCh := ch.NotifyPublish(make(chan amqp.Confirmation, 100))
	returnCh := ch.NotifyReturn(make(chan amqp.Return, 100))
	closeCh := conn.NotifyClose(make(chan *amqp.Error, 1))

	ticker := time.NewTicker(outboxPollEvery)
	defer ticker.Stop()

	var lastErr string
	var lastAt time.Time

	w.log.Info().Str("exchange", w.exchange).Msg("started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopped")
			return nil
		case amqpErr := <-closeCh:
			metrics.SetDependencyHealth("rabbitmq", false)
			return fmt.Errorf("outbox: connection closed: %v", amqpErr)
		case <-ticker.C:
			if err := w.processBatch(ctx, ch, confirmCh, returnCh); err != nil {
				if err.Error() != lastErr || time.Since(lastAt) > 10*time.Second {
					w.log.Warn().Err(err).Msg("outbox batch failed")
					lastErr = err.Error()
					lastAt = time.Now()
				}
			} else {
				lastErr = ""
			}
		}
	}
}

// claimBatch picks due rows and pushes their next_retry_at forward so a
// second worker skips them while this one publishes outside the tx.
func (w *OutboxWorker) claimBatch(ctx context.Context) ([]outboxMsg, error) {
	tx, err := w.repo.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT id, message_id, trace_id, routing_key, payload, attempt
		FROM outbox
		WHERE status = 'pending'
		  AND next_retry_at <= NOW()
		ORDER BY next_retry_at ASC, occurred_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, outboxBatchSize)
	if err != nil {
		return nil, err
	}

	var batch []outboxMsg
	for rows.Next() {
		var m outboxMsg
		if err := rows.Scan(&m.ID, &m.MessageID, &m.TraceID, &m.RoutingKey, &m.Payload, &m.Attempt); err != nil {
			rows.Close()
			return nil, err
		}
		batch = append(batch, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(batch) > 0 {
		ids := make([]uuid.UUID, 0, len(batch))
		for _, m := range batch {
			ids = append(ids, m.ID)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE outbox SET next_retry_at = $2 WHERE id = ANY($1)
		`, ids, time.Now().Add(outboxInFlight)); err != nil {
			return nil, err
		}
	}
	return batch, tx.Commit(ctx)
}

func (w *OutboxWorker) processBatch(
	ctx context.Context,
	ch *amqp.Channel,
	confirmCh <-chan amqp.Confirmation,
	returnCh <-chan amqp.Return,
) error {
	batch, err := w.claimBatch(ctx)
	if err != nil {
		return err
	}

	for _, m := range batch {
	drain:
		for {
			select {
			case <-returnCh:
			case <-confirmCh:
			default:
				break drain
			}
		}

		pub := amqp.Publishing{
			ContentType:   "application/json",
			Body:          m.Payload,
			DeliveryMode:  amqp.Persistent,
			Timestamp:     time.Now().UTC(),
			MessageId:     m.MessageID.String(),
			CorrelationId: m.TraceID,
			AppId:         "jam-service",
		}
		if err := ch.PublishWithContext(ctx, w.exchange, m.RoutingKey, true, false, pub); err != nil {
			w.fail(ctx, m, fmt.Sprintf("publish error: %v", err))
			continue
		}

		// a Return for an unroutable message arrives before its Confirm
		var (
			returned  bool
			confirmed bool
			conf      amqp.Confirmation
		)
		deadline := time.After(confirmWait)
	wait:
		for !confirmed {
			select {
			case ret := <-returnCh:
				returned = true
				w.fail(ctx, m, fmt.Sprintf("NO_ROUTE: code=%d text=%s exchange=%s rk=%s",
					ret.ReplyCode, ret.ReplyText, ret.Exchange, ret.RoutingKey))
			case c := <-confirmCh:
				confirmed = true
				conf = c
			case <-deadline:
				if !returned {
					w.fail(ctx, m, "confirm/return timeout")
				}
				break wait
			}
		}
		if returned || !confirmed {
			continue
		}
		if !conf.Ack {
			w.fail(ctx, m, fmt.Sprintf("NACK: delivery_tag=%d", conf.DeliveryTag))
			continue
		}

		w.markSent(ctx, m)
	}
	return nil
}

func (w *OutboxWorker) markSent(ctx context.Context, m outboxMsg) {
	if _, err := w.repo.pool.Exec(ctx, `
		UPDATE outbox SET status = 'sent', last_error = NULL WHERE id = $1
	`, m.ID); err != nil {
		w.log.Warn().Err(err).Str("outbox_id", m.ID.String()).Msg("mark sent failed")
		return
	}
	metrics.RecordOutbox("sent")
	w.audit.OutboxMessageSent(appCtx.WithTraceID(ctx, m.TraceID), m.MessageID.String(), m.RoutingKey)
}

func (w *OutboxWorker) fail(ctx context.Context, m outboxMsg, errMsg string) {
	next := m.Attempt + 1
	if next >= outboxMaxAttempts {
		_, _ = w.repo.pool.Exec(ctx, `
			UPDATE outbox SET status = 'dead', attempt = $2, last_error = $3 WHERE id = $1
		`, m.ID, next, errMsg)
		metrics.RecordOutbox("dead")
		w.audit.OutboxMessageDead(appCtx.WithTraceID(ctx, m.TraceID), m.MessageID.String(), m.RoutingKey, next)
		return
	}

	delay := computeNextRetry(next)
	_, _ = w.repo.pool.Exec(ctx, `
		UPDATE outbox
		SET attempt = $2,
		    next_retry_at = NOW() + make_interval(secs => $3),
		    last_error = $4
		WHERE id = $1
	`, m.ID, next, delay.Seconds(), errMsg)
	metrics.RecordOutbox("retry")

	w.log.Warn().
		Str("outbox_id", m.ID.String()).
		Str("message_id", m.MessageID.String()).
		Str("routing_key", m.RoutingKey).
		Int("attempt", next).
		Dur("retry_in", delay).
		Str("error", errMsg).
		Msg("outbox publish failed; scheduled retry")
}
