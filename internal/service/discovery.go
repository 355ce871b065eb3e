package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/baechuer/real-time-ressys/services/jam-service/internal/audit"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/clock"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/filter"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/metrics"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/pkg/logger"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/sorter"
	"github.com/rs/zerolog"
)

const defaultSnapshotTTL = 30 * time.Second

// DiscoveryService serves the read side: filtered discovery, saved criteria,
// a user's own events and an organizer's listing.
type DiscoveryService struct {
	store  domain.Store
	cache  domain.DiscoveryCache
	engine *filter.Engine
	clock  clock.Clock
	ttl    time.Duration
	audit  *audit.Logger
	log    zerolog.Logger
}

type DiscoveryOption func(*DiscoveryService)

func WithCache(c domain.DiscoveryCache, ttl time.Duration) DiscoveryOption {
	return func(s *DiscoveryService) {
		s.cache = c
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithClock(c clock.Clock) DiscoveryOption {
	return func(s *DiscoveryService) { s.clock = c }
}

func NewDiscoveryService(store domain.Store, engine *filter.Engine, auditLog *audit.Logger, opts ...DiscoveryOption) *DiscoveryService {
	if auditLog == nil {
		auditLog = audit.New(logger.Logger)
	}
	s := &DiscoveryService{
		store:  store,
		engine: engine,
		clock:  clock.NewSystem(),
		ttl:    defaultSnapshotTTL,
		audit:  auditLog,
		log:    logger.Component("discovery"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ListDiscoverable returns active, upcoming events matching c. Malformed
// optional fields in c are treated as unconstrained; this never fails on criteria.
func (s *DiscoveryService) ListDiscoverable(ctx context.Context, c *domain.FilterCriteria) ([]domain.Event, error) {
	events, err := s.activeEvents(ctx)
	if err != nil {
		return nil, err
	}

	criteria := c.Normalized()
	if criteria == nil {
		// discovery always hides past events
		criteria = &domain.FilterCriteria{}
	}

	start := time.Now()
	out := s.engine.Apply(events, criteria)
	metrics.ObserveFilter(time.Since(start), len(out))
	return out, nil
}

func (s *DiscoveryService) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return domain.Event{}, domain.ErrEventNotFound
	}
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return domain.Event{}, err
	}
	if err := ev.CheckConsistency(); err != nil {
		metrics.RecordConsistencyViolation()
		s.audit.ConsistencyViolation(ctx, ev, "get_event")
		return domain.Event{}, err
	}
	return ev, nil
}

// activeEvents reads the version-fenced snapshot, falling back to the store on
// any cache problem.
func (s *DiscoveryService) activeEvents(ctx context.Context) ([]domain.Event, error) {
	if s.cache == nil {
		return s.loadActive(ctx)
	}

	version, err := s.cache.Version(ctx)
	if err != nil {
		metrics.RecordCacheLookup("error")
		s.log.Warn().Err(err).Msg("discovery cache: version read failed")
		return s.loadActive(ctx)
	}

	events, err := s.cache.GetEvents(ctx, version)
	switch {
	case err == nil:
		metrics.RecordCacheLookup("hit")
		return events, nil
	case errors.Is(err, domain.ErrCacheMiss):
		metrics.RecordCacheLookup("miss")
	default:
		metrics.RecordCacheLookup("error")
		s.log.Warn().Err(err).Msg("discovery cache: get failed")
	}

	events, err = s.loadActive(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetEvents(ctx, version, events, s.ttl); err != nil {
		s.log.Warn().Err(err).Msg("discovery cache: set failed")
	}
	return events, nil
}

func (s *DiscoveryService) loadActive(ctx context.Context) ([]domain.Event, error) {
	events, err := s.store.ListActiveEvents(ctx)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		if err := ev.CheckConsistency(); err != nil {
			metrics.RecordConsistencyViolation()
			s.audit.ConsistencyViolation(ctx, ev, "list_active")
		}
	}
	return events, nil
}

// SaveCriteria validates c with the construction rules and stores it for userID.
func (s *DiscoveryService) SaveCriteria(ctx context.Context, userID string, c domain.FilterCriteria) error {
	if strings.TrimSpace(userID) == "" {
		return domain.ErrInvalidArgument
	}
	if err := c.Validate(); err != nil {
		return err
	}
	return s.store.SaveCriteria(ctx, userID, *c.Normalized())
}

// LoadCriteria returns the user's saved criteria, normalized, or nil when none.
func (s *DiscoveryService) LoadCriteria(ctx context.Context, userID string) (*domain.FilterCriteria, error) {
	c, err := s.store.LoadCriteria(ctx, userID)
	if err != nil {
		return nil, err
	}
	return c.Normalized(), nil
}

// DiscoverForUser applies the user's saved criteria; no snapshot means unconstrained.
func (s *DiscoveryService) DiscoverForUser(ctx context.Context, userID string) ([]domain.Event, error) {
	c, err := s.LoadCriteria(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.ListDiscoverable(ctx, c)
}

// MyEvents lists the user's registrations, upcoming soonest first then past
// most recent first.
func (s *DiscoveryService) MyEvents(ctx context.Context, userID string) ([]domain.EventWithID, error) {
	events, err := s.store.ListRegisteredEvents(ctx, userID)
	if err != nil {
		return nil, err
	}
	return sorter.Sort(events, s.clock.Now()), nil
}

func (s *DiscoveryService) ListByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]domain.Event, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, domain.ErrInvalidArgument
	}
	return s.store.ListEventsByOwner(ctx, ownerID, activeOnly)
}
