package service

import (
	"context"
	"strings"

	"github.com/baechuer/real-time-ressys/services/jam-service/internal/audit"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/metrics"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/pkg/logger"
	"github.com/rs/zerolog"
)

// Registry is the capacity-safe registration state machine. All atomicity
// comes from the store's conditional update; Registry never reads then writes.
type Registry struct {
	store domain.RegistrationStore
	reads domain.EventReader
	cache domain.DiscoveryCache
	audit *audit.Logger
	log   zerolog.Logger
}

// NewRegistry wires a registry. cache may be nil.
func NewRegistry(store domain.Store, cache domain.DiscoveryCache, auditLog *audit.Logger) *Registry {
	if auditLog == nil {
		auditLog = audit.New(logger.Logger)
	}
	return &Registry{
		store: store,
		reads: store,
		cache: cache,
		audit: auditLog,
		log:   logger.Component("registry"),
	}
}

func normalizeIDs(eventID, userID string) (string, string, error) {
	eventID, userID = strings.TrimSpace(eventID), strings.TrimSpace(userID)
	if eventID == "" {
		return "", "", domain.ValidationMeta(domain.CodeInvalidRegistrationArg, "event id is required", map[string]string{"field": "event_id"})
	}
	if userID == "" {
		return "", "", domain.ValidationMeta(domain.CodeInvalidRegistrationArg, "user id is required", map[string]string{"field": "user_id"})
	}
	return eventID, userID, nil
}

// RegisterIfCapacityAvailable reserves one seat for userID. It fails with
// EVENT_NOT_FOUND, EVENT_INACTIVE, ALREADY_REGISTERED or EVENT_FULL, and a
// failed attempt leaves no trace, so callers may retry transient errors.
func (r *Registry) RegisterIfCapacityAvailable(ctx context.Context, eventID, userID string) (domain.Registration, error) {
	eventID, userID, err := normalizeIDs(eventID, userID)
	if err != nil {
		return domain.Registration{}, err
	}

	ev, err := r.store.RegisterIfCapacityAvailable(ctx, eventID, userID)
	if err != nil {
		metrics.RecordRegistration(outcome(err))
		if domain.KindOf(err) == domain.KindConsistency {
			r.violation(ctx, domain.Event{ID: eventID}, "register")
		}
		if domain.IsRetryable(err) {
			logger.WithCtx(ctx).Warn().Err(err).Str("event_id", eventID).Msg("register: store unavailable")
		}
		return domain.Registration{}, err
	}

	r.invalidate(ctx)

	if err := ev.CheckConsistency(); err != nil {
		r.violation(ctx, ev, "register")
		return domain.Registration{}, err
	}

	metrics.RecordRegistration("ok")
	r.audit.Registered(ctx, ev, userID)

	return domain.Registration{
		EventID:     eventID,
		UserID:      userID,
		State:       domain.StateRegistered,
		Reserved:    ev.Reserved,
		MaxCapacity: ev.MaxCapacity,
	}, nil
}

// CancelRegistration releases userID's seat. Cancelling when not registered is
// a successful no-op with Changed=false.
func (r *Registry) CancelRegistration(ctx context.Context, eventID, userID string) (domain.Cancellation, error) {
	eventID, userID, err := normalizeIDs(eventID, userID)
	if err != nil {
		return domain.Cancellation{}, err
	}

	ev, removed, err := r.store.CancelRegistration(ctx, eventID, userID)
	if err != nil {
		metrics.RecordCancellation(outcome(err))
		return domain.Cancellation{}, err
	}

	res := domain.Cancellation{
		EventID:  eventID,
		UserID:   userID,
		State:    domain.StateNotRegistered,
		Changed:  removed,
		Reserved: ev.Reserved,
	}
	if !removed {
		metrics.RecordCancellation("noop")
		return res, nil
	}

	r.invalidate(ctx)

	if err := ev.CheckConsistency(); err != nil {
		r.violation(ctx, ev, "cancel")
		return domain.Cancellation{}, err
	}

	metrics.RecordCancellation("removed")
	r.audit.Canceled(ctx, ev, userID)
	return res, nil
}

func (r *Registry) IsRegistered(ctx context.Context, eventID, userID string) (domain.RegistrationState, error) {
	eventID, userID, err := normalizeIDs(eventID, userID)
	if err != nil {
		return "", err
	}
	ok, err := r.reads.IsRegistered(ctx, eventID, userID)
	if err != nil {
		return "", err
	}
	if ok {
		return domain.StateRegistered, nil
	}
	return domain.StateNotRegistered, nil
}

// invalidate bumps the discovery snapshot version so the caller's next read
// sees its own write. Cache failures never fail the registration.
func (r *Registry) invalidate(ctx context.Context) {
	if r.cache == nil {
		return
	}
	if err := r.cache.BumpVersion(ctx); err != nil {
		r.log.Warn().Err(err).Msg("discovery cache: bump version failed")
	}
}

func (r *Registry) violation(ctx context.Context, ev domain.Event, source string) {
	metrics.RecordConsistencyViolation()
	r.audit.ConsistencyViolation(ctx, ev, source)
}

func outcome(err error) string {
	if code := domain.CodeOf(err); code != "" {
		return string(code)
	}
	return "error"
}
