package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is one scheduled jam or performance.
// DateTime is an absolute instant in epoch milliseconds.
type Event struct {
	ID          string   `json:"id"`
	OwnerID     string   `json:"owner_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Genres      []string `json:"genres"`
	Address     string   `json:"address"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	DateTime    int64    `json:"date_time"`
	MaxCapacity int      `json:"max_capacity"`
	Reserved    int      `json:"reserved"`
	Active      bool     `json:"active"`
}

// EventWithID pairs an event with the id it is registered under for one user.
type EventWithID struct {
	ID    string `json:"id"`
	Event Event  `json:"event"`
}

// NewEvent builds a freshly created event: reserved=0, active=true.
func NewEvent(ownerID, name, description string, genres []string, address string, lat, lng float64, start time.Time, maxCapacity int) (*Event, error) {
	ownerID = strings.TrimSpace(ownerID)
	name = strings.TrimSpace(name)

	if ownerID == "" {
		return nil, ValidationMeta(CodeInvalidEvent, "owner_id is required", nil)
	}
	if name == "" || len(name) > 120 {
		return nil, ValidationMeta(CodeInvalidEvent, "name is required and must be <= 120 chars", nil)
	}
	if start.IsZero() {
		return nil, ValidationMeta(CodeInvalidEvent, "date_time is required", nil)
	}
	if maxCapacity <= 0 {
		return nil, ValidationMeta(CodeInvalidEvent, "max_capacity must be > 0", nil)
	}
	if !validLatLng(lat, lng) {
		return nil, ValidationMeta(CodeInvalidEvent, "coordinates out of range", nil)
	}

	return &Event{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Name:        name,
		Description: strings.TrimSpace(description),
		Genres:      append([]string(nil), genres...),
		Address:     strings.TrimSpace(address),
		Latitude:    lat,
		Longitude:   lng,
		DateTime:    start.UnixMilli(),
		MaxCapacity: maxCapacity,
		Reserved:    0,
		Active:      true,
	}, nil
}

func (e Event) StartsAt() time.Time {
	return time.UnixMilli(e.DateTime).UTC()
}

// AvailableSeats is maxCapacity - reserved.
func (e Event) AvailableSeats() int {
	return e.MaxCapacity - e.Reserved
}

func (e Event) IsFull() bool {
	return e.Reserved >= e.MaxCapacity
}

// CheckConsistency reports a violation of 0 <= reserved <= maxCapacity.
func (e Event) CheckConsistency() error {
	if e.Reserved < 0 || e.Reserved > e.MaxCapacity {
		return ConsistencyViolation(e.ID, e.Reserved, e.MaxCapacity)
	}
	return nil
}

// Validate checks the fields a store accepts on upsert.
func (e Event) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return ValidationMeta(CodeInvalidEvent, "id is required", nil)
	}
	if strings.TrimSpace(e.OwnerID) == "" {
		return ValidationMeta(CodeInvalidEvent, "owner_id is required", nil)
	}
	if e.MaxCapacity <= 0 {
		return ValidationMeta(CodeInvalidEvent, "max_capacity must be > 0", map[string]string{"event_id": e.ID})
	}
	if !validLatLng(e.Latitude, e.Longitude) {
		return ValidationMeta(CodeInvalidEvent, "coordinates out of range", map[string]string{"event_id": e.ID})
	}
	return nil
}

func validLatLng(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
