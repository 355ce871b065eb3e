package event

import "time"

const EnvelopeVersion = 1

// Routing keys consumed from the organizer side.
const (
	RKEventPublished   = "event.published"
	RKEventUpdated     = "event.updated"
	RKEventDeactivated = "event.deactivated"
	RKEventDeleted     = "event.deleted"
)

// Routing keys produced through the outbox.
const (
	RKRegistrationCreated  = "registration.created"
	RKRegistrationCanceled = "registration.canceled"
)

// DomainEventEnvelope is the canonical envelope on the events exchange.
// message_id is optional for older producers.
type DomainEventEnvelope[T any] struct {
	Version    int       `json:"version"`
	Producer   string    `json:"producer"`
	TraceID    string    `json:"trace_id,omitempty"`
	MessageID  string    `json:"message_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    T         `json:"payload"`
}

// EventSnapshotPayload carries the organizer's view of an event. Reserved is
// owned by this service and is therefore absent. Pointers detect missing fields.
type EventSnapshotPayload struct {
	EventID     string   `json:"event_id"`
	OwnerID     string   `json:"owner_id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	Address     string   `json:"address,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	DateTime    *int64   `json:"date_time,omitempty"`
	MaxCapacity *int     `json:"max_capacity,omitempty"`
	Active      *bool    `json:"active,omitempty"`
}

// EventRefPayload identifies an event for deactivate/delete. Legacy producers send id.
type EventRefPayload struct {
	EventID string `json:"event_id,omitempty"`
	ID      string `json:"id,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func (p EventRefPayload) Ref() string {
	if p.EventID != "" {
		return p.EventID
	}
	return p.ID
}

// RegistrationPayload is published for registration.created / registration.canceled.
type RegistrationPayload struct {
	EventID     string `json:"event_id"`
	UserID      string `json:"user_id"`
	Reserved    int    `json:"reserved"`
	MaxCapacity int    `json:"max_capacity"`
}
