package postgres

import (
	"context"
	"errors"

	"github.com/baechuer/real-time-ressys/services/jam-service/internal/domain"
	"github.com/jackc/pgx/v5"
)

func (r *Repository) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	ev, err := scanEvent(r.q(ctx).QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, eventID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Event{}, domain.ErrEventNotFound
	}
	if err != nil {
		return domain.Event{}, mapErr("get event", err)
	}
	return ev, nil
}

// ListActiveEvents returns every active event, past ones included; the
// filter engine decides what is discoverable.
func (r *Repository) ListActiveEvents(ctx context.Context) ([]domain.Event, error) {
	rows, err := r.q(ctx).Query(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE active = TRUE
		ORDER BY date_time ASC, id ASC
	`)
	if err != nil {
		return nil, mapErr("list active events", err)
	}
	return collectEvents(rows, "list active events")
}

func (r *Repository) ListEventsByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]domain.Event, error) {
	rows, err := r.q(ctx).Query(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE owner_id = $1
		  AND ($2::bool = FALSE OR active = TRUE)
		ORDER BY date_time ASC, id ASC
	`, ownerID, activeOnly)
	if err != nil {
		return nil, mapErr("list events by owner", err)
	}
	return collectEvents(rows, "list events by owner")
}

// ListRegisteredEvents joins the user's edges to their events. Edges whose
// event is gone cannot exist thanks to the cascade.
func (r *Repository) ListRegisteredEvents(ctx context.Context, userID string) ([]domain.EventWithID, error) {
	rows, err := r.q(ctx).Query(ctx, `
		SELECT e.id, e.owner_id, e.name, e.description, e.genres, e.address, e.latitude, e.longitude,
		       e.date_time, e.max_capacity, e.reserved, e.active
		FROM registrations rg
		JOIN events e ON e.id = rg.event_id
		WHERE rg.user_id = $1
		ORDER BY e.date_time ASC, e.id ASC
	`, userID)
	if err != nil {
		return nil, mapErr("list registered events", err)
	}
	events, err := collectEvents(rows, "list registered events")
	if err != nil {
		return nil, err
	}
	out := make([]domain.EventWithID, 0, len(events))
	for _, e := range events {
		out = append(out, domain.EventWithID{ID: e.ID, Event: e})
	}
	return out, nil
}

func (r *Repository) IsRegistered(ctx context.Context, eventID, userID string) (bool, error) {
	var ok bool
	err := r.q(ctx).QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM registrations WHERE event_id = $1 AND user_id = $2)
	`, eventID, userID).Scan(&ok)
	if err != nil {
		return false, mapErr("is registered", err)
	}
	return ok, nil
}

func collectEvents(rows pgx.Rows, op string) ([]domain.Event, error) {
	defer rows.Close()
	out := make([]domain.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, mapErr(op, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(op, err)
	}
	return out, nil
}
