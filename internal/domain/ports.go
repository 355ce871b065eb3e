package domain

import (
	"context"
	"time"
)

// RegistrationStore exposes the atomic conditional update the registry relies on.
// Implementations must evaluate every precondition and apply both sub-updates
// (reserved counter and the user's registered set) as one all-or-nothing step
// relative to all concurrent callers on the same event.
type RegistrationStore interface {
	// RegisterIfCapacityAvailable fails with ErrEventNotFound, ErrEventInactive,
	// ErrAlreadyRegistered or ErrEventFull, checked in that order. On success it
	// returns the event as committed.
	RegisterIfCapacityAvailable(ctx context.Context, eventID, userID string) (Event, error)

	// CancelRegistration removes the edge and decrements reserved, floored at 0.
	// removed=false means the user was not registered and nothing changed.
	CancelRegistration(ctx context.Context, eventID, userID string) (ev Event, removed bool, err error)
}

type EventReader interface {
	GetEvent(ctx context.Context, eventID string) (Event, error)
	ListActiveEvents(ctx context.Context) ([]Event, error)
	ListEventsByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]Event, error)
	ListRegisteredEvents(ctx context.Context, userID string) ([]EventWithID, error)
	IsRegistered(ctx context.Context, eventID, userID string) (bool, error)
}

// EventWriter applies owner lifecycle actions received from the organizer side.
type EventWriter interface {
	// UpsertEvent never changes reserved on an existing row.
	UpsertEvent(ctx context.Context, e Event) error
	SetEventActive(ctx context.Context, eventID string, active bool) error
	// DeleteEvent reports whether a row was removed; an unknown id is a no-op.
	DeleteEvent(ctx context.Context, eventID string) (removed bool, err error)
}

type CriteriaStore interface {
	SaveCriteria(ctx context.Context, userID string, c FilterCriteria) error
	// LoadCriteria returns nil, nil when the user has no snapshot.
	LoadCriteria(ctx context.Context, userID string) (*FilterCriteria, error)
}

type Store interface {
	RegistrationStore
	EventReader
	EventWriter
	CriteriaStore
}

// DiscoveryCache holds snapshots of the active event list keyed by a version that
// every register/cancel bumps, so a stale snapshot is never served after a write.
type DiscoveryCache interface {
	Version(ctx context.Context) (int64, error)
	BumpVersion(ctx context.Context) error
	GetEvents(ctx context.Context, version int64) ([]Event, error)
	SetEvents(ctx context.Context, version int64, events []Event, ttl time.Duration) error
}

type RateLimiter interface {
	AllowRequest(ctx context.Context, ip string, limit int, window time.Duration) (bool, error)
}

// MessageFence runs fn at most once per message id. fn receives a context
// bound to the same unit of work as the fence record, so the fence and the
// effect commit together. processed=false means the id was already seen.
type MessageFence interface {
	ProcessOnce(ctx context.Context, messageID, handler string, fn func(ctx context.Context) error) (processed bool, err error)
}
