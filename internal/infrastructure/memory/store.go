// Package memory is an in-process Store used for local runs and unit tests.
// It honours the same atomic register/cancel contract as the postgres store:
// every precondition and both sub-updates happen under the event's own lock.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/baechuer/real-time-ressys/services/jam-service/internal/domain"
)

type eventRecord struct {
	mu          sync.Mutex
	ev          domain.Event
	registrants map[string]struct{}
	deleted     bool
}

type Store struct {
	mu     sync.RWMutex
	events map[string]*eventRecord

	// user -> event ids; an index only, eventRecord.registrants is authoritative
	usersMu sync.Mutex
	byUser  map[string]map[string]struct{}

	criteriaMu sync.RWMutex
	criteria   map[string][]byte
}

var _ domain.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		events:   make(map[string]*eventRecord),
		byUser:   make(map[string]map[string]struct{}),
		criteria: make(map[string][]byte),
	}
}

func (s *Store) record(eventID string) (*eventRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.events[eventID]
	return rec, ok
}

func alive(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return domain.Transient(op, err)
	}
	return nil
}

func (s *Store) RegisterIfCapacityAvailable(ctx context.Context, eventID, userID string) (domain.Event, error) {
	if err := alive(ctx, "register"); err != nil {
		return domain.Event{}, err
	}
	rec, ok := s.record(eventID)
	if !ok {
		return domain.Event{}, domain.ErrEventNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	switch {
	case rec.deleted:
		return domain.Event{}, domain.ErrEventNotFound
	case !rec.ev.Active:
		return domain.Event{}, domain.ErrEventInactive
	}
	if _, dup := rec.registrants[userID]; dup {
		return domain.Event{}, domain.ErrAlreadyRegistered
	}
	if err := rec.ev.CheckConsistency(); err != nil {
		return domain.Event{}, err
	}
	if rec.ev.Reserved == rec.ev.MaxCapacity {
		return domain.Event{}, domain.ErrEventFull
	}

	rec.registrants[userID] = struct{}{}
	rec.ev.Reserved++
	s.index(userID, eventID, true)

	return cloneEvent(rec.ev), nil
}

func (s *Store) CancelRegistration(ctx context.Context, eventID, userID string) (domain.Event, bool, error) {
	if err := alive(ctx, "cancel"); err != nil {
		return domain.Event{}, false, err
	}
	rec, ok := s.record(eventID)
	if !ok {
		return domain.Event{}, false, nil
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.deleted {
		return domain.Event{}, false, nil
	}
	if _, registered := rec.registrants[userID]; !registered {
		return cloneEvent(rec.ev), false, nil
	}

	delete(rec.registrants, userID)
	if rec.ev.Reserved > 0 {
		rec.ev.Reserved--
	}
	s.index(userID, eventID, false)

	return cloneEvent(rec.ev), true, nil
}

func (s *Store) index(userID, eventID string, add bool) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	set := s.byUser[userID]
	if add {
		if set == nil {
			set = make(map[string]struct{})
			s.byUser[userID] = set
		}
		set[eventID] = struct{}{}
		return
	}
	delete(set, eventID)
	if len(set) == 0 {
		delete(s.byUser, userID)
	}
}

func (s *Store) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	if err := alive(ctx, "get event"); err != nil {
		return domain.Event{}, err
	}
	rec, ok := s.record(eventID)
	if !ok {
		return domain.Event{}, domain.ErrEventNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.deleted {
		return domain.Event{}, domain.ErrEventNotFound
	}
	return cloneEvent(rec.ev), nil
}

func (s *Store) snapshot(keep func(domain.Event) bool) []domain.Event {
	s.mu.RLock()
	recs := make([]*eventRecord, 0, len(s.events))
	for _, rec := range s.events {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	out := make([]domain.Event, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		if !rec.deleted && keep(rec.ev) {
			out = append(out, cloneEvent(rec.ev))
		}
		rec.mu.Unlock()
	}
	sortEvents(out)
	return out
}

func (s *Store) ListActiveEvents(ctx context.Context) ([]domain.Event, error) {
	if err := alive(ctx, "list active events"); err != nil {
		return nil, err
	}
	return s.snapshot(func(e domain.Event) bool { return e.Active }), nil
}

func (s *Store) ListEventsByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]domain.Event, error) {
	if err := alive(ctx, "list events by owner"); err != nil {
		return nil, err
	}
	return s.snapshot(func(e domain.Event) bool {
		return e.OwnerID == ownerID && (!activeOnly || e.Active)
	}), nil
}

func (s *Store) ListRegisteredEvents(ctx context.Context, userID string) ([]domain.EventWithID, error) {
	if err := alive(ctx, "list registered events"); err != nil {
		return nil, err
	}
	s.usersMu.Lock()
	ids := make([]string, 0, len(s.byUser[userID]))
	for id := range s.byUser[userID] {
		ids = append(ids, id)
	}
	s.usersMu.Unlock()
	sort.Strings(ids)

	out := make([]domain.EventWithID, 0, len(ids))
	for _, id := range ids {
		rec, ok := s.record(id)
		if !ok {
			continue
		}
		rec.mu.Lock()
		_, registered := rec.registrants[userID]
		if registered && !rec.deleted {
			out = append(out, domain.EventWithID{ID: id, Event: cloneEvent(rec.ev)})
		}
		rec.mu.Unlock()
	}
	return out, nil
}

func (s *Store) IsRegistered(ctx context.Context, eventID, userID string) (bool, error) {
	if err := alive(ctx, "is registered"); err != nil {
		return false, err
	}
	rec, ok := s.record(eventID)
	if !ok {
		return false, domain.ErrEventNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.deleted {
		return false, domain.ErrEventNotFound
	}
	_, registered := rec.registrants[userID]
	return registered, nil
}

// UpsertEvent inserts a new event or replaces an existing one's descriptive
// fields. Reserved is never taken from e on an existing event.
func (s *Store) UpsertEvent(ctx context.Context, e domain.Event) error {
	if err := alive(ctx, "upsert event"); err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	rec, ok := s.events[e.ID]
	if !ok || rec.deleted {
		if e.Reserved < 0 || e.Reserved > e.MaxCapacity {
			s.mu.Unlock()
			return domain.ConsistencyViolation(e.ID, e.Reserved, e.MaxCapacity)
		}
		s.events[e.ID] = &eventRecord{ev: cloneEvent(e), registrants: make(map[string]struct{})}
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	rec.mu.Lock()
	if rec.deleted {
		rec.mu.Unlock()
		return s.UpsertEvent(ctx, e)
	}
	defer rec.mu.Unlock()
	if e.MaxCapacity < rec.ev.Reserved {
		return domain.ErrCapacityBelowReserved
	}
	reserved := rec.ev.Reserved
	rec.ev = cloneEvent(e)
	rec.ev.Reserved = reserved
	return nil
}

func (s *Store) SetEventActive(ctx context.Context, eventID string, active bool) error {
	if err := alive(ctx, "set event active"); err != nil {
		return err
	}
	rec, ok := s.record(eventID)
	if !ok {
		return domain.ErrEventNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.deleted {
		return domain.ErrEventNotFound
	}
	rec.ev.Active = active
	return nil
}

// DeleteEvent removes the event and every registration edge pointing at it.
func (s *Store) DeleteEvent(ctx context.Context, eventID string) (bool, error) {
	if err := alive(ctx, "delete event"); err != nil {
		return false, err
	}
	s.mu.Lock()
	rec, ok := s.events[eventID]
	delete(s.events, eventID)
	s.mu.Unlock()
	if !ok {
		return false, nil
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.deleted = true
	for userID := range rec.registrants {
		s.index(userID, eventID, false)
	}
	rec.registrants = nil
	return true, nil
}

// SaveCriteria stores the snapshot in its JSON form, as the postgres store does.
func (s *Store) SaveCriteria(ctx context.Context, userID string, c domain.FilterCriteria) error {
	if err := alive(ctx, "save criteria"); err != nil {
		return err
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	s.criteriaMu.Lock()
	s.criteria[userID] = raw
	s.criteriaMu.Unlock()
	return nil
}

func (s *Store) LoadCriteria(ctx context.Context, userID string) (*domain.FilterCriteria, error) {
	if err := alive(ctx, "load criteria"); err != nil {
		return nil, err
	}
	s.criteriaMu.RLock()
	raw, ok := s.criteria[userID]
	s.criteriaMu.RUnlock()
	if !ok {
		return nil, nil
	}
	var c domain.FilterCriteria
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func cloneEvent(e domain.Event) domain.Event {
	e.Genres = append([]string(nil), e.Genres...)
	return e
}

func sortEvents(events []domain.Event) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].DateTime != events[j].DateTime {
			return events[i].DateTime < events[j].DateTime
		}
		return events[i].ID < events[j].ID
	})
}
