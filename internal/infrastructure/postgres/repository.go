package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/baechuer/real-time-ressys/services/jam-service/internal/contracts/event"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/domain"
	appCtx "github.com/baechuer/real-time-ressys/services/jam-service/internal/pkg/context"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

var (
	_ domain.Store        = (*Repository)(nil)
	_ domain.MessageFence = (*Repository)(nil)
)

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// -------------------------
// Lock order, for any transaction touching one event:
//   1) events row (FOR UPDATE)
//   2) registrations rows of that event
// register, cancel, upsert and delete all take the events row first, so
// they serialize per event and never deadlock against each other.
// -------------------------

const eventColumns = `id, owner_id, name, description, genres, address, latitude, longitude, date_time, max_capacity, reserved, active`

func scanEvent(row pgx.Row) (domain.Event, error) {
	var e domain.Event
	err := row.Scan(&e.ID, &e.OwnerID, &e.Name, &e.Description, &e.Genres, &e.Address,
		&e.Latitude, &e.Longitude, &e.DateTime, &e.MaxCapacity, &e.Reserved, &e.Active)
	return e, err
}

func lockEvent(ctx context.Context, tx pgx.Tx, eventID string) (domain.Event, error) {
	ev, err := scanEvent(tx.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, eventID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Event{}, domain.ErrEventNotFound
	}
	return ev, err
}

// RegisterIfCapacityAvailable checks every precondition and applies both
// sub-updates inside one transaction holding the event row lock.
func (r *Repository) RegisterIfCapacityAvailable(ctx context.Context, eventID, userID string) (domain.Event, error) {
	var out domain.Event
	err := withTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		ev, err := lockEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if !ev.Active {
			return domain.ErrEventInactive
		}

		var registered bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM registrations WHERE event_id = $1 AND user_id = $2)
		`, eventID, userID).Scan(&registered); err != nil {
			return err
		}
		if registered {
			return domain.ErrAlreadyRegistered
		}
		// overflow is reported, never treated as full
		if err := ev.CheckConsistency(); err != nil {
			return err
		}
		if ev.Reserved == ev.MaxCapacity {
			return domain.ErrEventFull
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO registrations (event_id, user_id, created_at) VALUES ($1, $2, NOW())
		`, eventID, userID); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrAlreadyRegistered
			}
			return err
		}

		if err := tx.QueryRow(ctx, `
			UPDATE events SET reserved = reserved + 1, updated_at = NOW()
			WHERE id = $1
			RETURNING reserved
		`, eventID).Scan(&ev.Reserved); err != nil {
			if isCheckViolation(err) {
				return domain.ErrEventFull
			}
			return err
		}

		if err := enqueueOutbox(ctx, tx, event.RKRegistrationCreated, event.RegistrationPayload{
			EventID: eventID, UserID: userID, Reserved: ev.Reserved, MaxCapacity: ev.MaxCapacity,
		}); err != nil {
			return err
		}

		out = ev
		return nil
	})
	if err != nil {
		return domain.Event{}, mapErr("register", err)
	}
	return out, nil
}

// CancelRegistration removes the edge and decrements reserved, floored at 0,
// in one transaction. A missing edge or event is a committed no-op.
func (r *Repository) CancelRegistration(ctx context.Context, eventID, userID string) (domain.Event, bool, error) {
	var (
		out     domain.Event
		removed bool
	)
	err := withTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		ev, err := lockEvent(ctx, tx, eventID)
		if errors.Is(err, domain.ErrEventNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		out = ev

		tag, err := tx.Exec(ctx, `DELETE FROM registrations WHERE event_id = $1 AND user_id = $2`, eventID, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		removed = true

		if ev.Reserved <= 0 {
			logger.WithCtx(ctx).Error().
				Str("event_id", eventID).
				Int("reserved", ev.Reserved).
				Msg("cancel: registration existed with reserved already at 0")
		}

		if err := tx.QueryRow(ctx, `
			UPDATE events SET reserved = GREATEST(reserved - 1, 0), updated_at = NOW()
			WHERE id = $1
			RETURNING reserved
		`, eventID).Scan(&out.Reserved); err != nil {
			return err
		}

		return enqueueOutbox(ctx, tx, event.RKRegistrationCanceled, event.RegistrationPayload{
			EventID: eventID, UserID: userID, Reserved: out.Reserved, MaxCapacity: out.MaxCapacity,
		})
	})
	if err != nil {
		return domain.Event{}, false, mapErr("cancel registration", err)
	}
	return out, removed, nil
}

func enqueueOutbox(ctx context.Context, tx pgx.Tx, routingKey string, payload any) error {
	messageID := uuid.New()
	traceID := appCtx.GetTraceID(ctx)

	body, err := json.Marshal(event.DomainEventEnvelope[any]{
		Version:    event.EnvelopeVersion,
		Producer:   "jam-service",
		TraceID:    traceID,
		MessageID:  messageID.String(),
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO outbox (message_id, trace_id, routing_key, payload, occurred_at, status)
		VALUES ($1, $2, $3, $4, NOW(), 'pending')
	`, messageID, traceID, routingKey, body)
	return err
}

// UpsertEvent inserts or refreshes an event. On an existing row reserved is
// left alone and a max_capacity below it is rejected.
func (r *Repository) UpsertEvent(ctx context.Context, e domain.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	err := withTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		cur, err := lockEvent(ctx, tx, e.ID)
		switch {
		case errors.Is(err, domain.ErrEventNotFound):
			if e.Reserved < 0 || e.Reserved > e.MaxCapacity {
				return domain.ConsistencyViolation(e.ID, e.Reserved, e.MaxCapacity)
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO events (`+eventColumns+`, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
			`, e.ID, e.OwnerID, e.Name, e.Description, genresOrEmpty(e.Genres), e.Address,
				e.Latitude, e.Longitude, e.DateTime, e.MaxCapacity, e.Reserved, e.Active)
			return err
		case err != nil:
			return err
		}

		if e.MaxCapacity < cur.Reserved {
			return domain.ErrCapacityBelowReserved
		}
		_, err = tx.Exec(ctx, `
			UPDATE events
			SET owner_id = $2, name = $3, description = $4, genres = $5, address = $6,
			    latitude = $7, longitude = $8, date_time = $9, max_capacity = $10,
			    active = $11, updated_at = NOW()
			WHERE id = $1
		`, e.ID, e.OwnerID, e.Name, e.Description, genresOrEmpty(e.Genres), e.Address,
			e.Latitude, e.Longitude, e.DateTime, e.MaxCapacity, e.Active)
		return err
	})
	return mapErr("upsert event", err)
}

func (r *Repository) SetEventActive(ctx context.Context, eventID string, active bool) error {
	tag, err := r.q(ctx).Exec(ctx, `UPDATE events SET active = $2, updated_at = NOW() WHERE id = $1`, eventID, active)
	if err != nil {
		return mapErr("set event active", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

// DeleteEvent removes the event; registrations go with it via ON DELETE CASCADE.
func (r *Repository) DeleteEvent(ctx context.Context, eventID string) (bool, error) {
	var removed bool
	err := withTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := lockEvent(ctx, tx, eventID); err != nil {
			if errors.Is(err, domain.ErrEventNotFound) {
				return nil
			}
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, eventID)
		if err != nil {
			return err
		}
		removed = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		return false, mapErr("delete event", err)
	}
	return removed, nil
}

// SaveCriteria stores the criteria snapshot as jsonb, replacing any previous one.
func (r *Repository) SaveCriteria(ctx context.Context, userID string, c domain.FilterCriteria) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = r.q(ctx).Exec(ctx, `
		INSERT INTO filter_snapshots (user_id, criteria, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET criteria = EXCLUDED.criteria, updated_at = NOW()
	`, strings.TrimSpace(userID), raw)
	return mapErr("save criteria", err)
}

func (r *Repository) LoadCriteria(ctx context.Context, userID string) (*domain.FilterCriteria, error) {
	var raw []byte
	err := r.q(ctx).QueryRow(ctx, `SELECT criteria FROM filter_snapshots WHERE user_id = $1`, strings.TrimSpace(userID)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapErr("load criteria", err)
	}
	var c domain.FilterCriteria
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func genresOrEmpty(g []string) []string {
	if g == nil {
		return []string{}
	}
	return g
}
