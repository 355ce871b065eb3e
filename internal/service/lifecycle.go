package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/baechuer/real-time-ressys/services/jam-service/internal/audit"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/pkg/logger"
	"github.com/rs/zerolog"
)

const lifecycleHandler = "jam-service.lifecycle"

type ChangeKind string

const (
	ChangeUpsert     ChangeKind = "upsert"
	ChangeDeactivate ChangeKind = "deactivate"
	ChangeDelete     ChangeKind = "delete"
)

// Change is one organizer-side action on an event. Event is set for upserts,
// EventID for the others.
type Change struct {
	Kind    ChangeKind
	Event   domain.Event
	EventID string
}

func (c Change) eventID() string {
	if c.Kind == ChangeUpsert {
		return c.Event.ID
	}
	return c.EventID
}

// Lifecycle applies organizer actions to the local event projection. reserved
// is never written here; only the Registry changes it.
type Lifecycle struct {
	store domain.Store
	fence domain.MessageFence
	cache domain.DiscoveryCache
	audit *audit.Logger
	log   zerolog.Logger
}

func NewLifecycle(store domain.Store, fence domain.MessageFence, cache domain.DiscoveryCache, auditLog *audit.Logger) *Lifecycle {
	if auditLog == nil {
		auditLog = audit.New(logger.Logger)
	}
	return &Lifecycle{
		store: store,
		fence: fence,
		cache: cache,
		audit: auditLog,
		log:   logger.Component("lifecycle"),
	}
}

// Apply runs ch once per messageID. applied=false means a duplicate delivery.
// The discovery cache is bumped only after the change has committed.
func (l *Lifecycle) Apply(ctx context.Context, messageID string, ch Change) (applied bool, err error) {
	if ch.eventID() == "" {
		return false, domain.ValidationMeta(domain.CodeInvalidEvent, "event id is required", map[string]string{"change": string(ch.Kind)})
	}

	applied, err = l.fence.ProcessOnce(ctx, messageID, lifecycleHandler, func(ctx context.Context) error {
		return l.apply(ctx, ch)
	})
	if err != nil || !applied {
		return applied, err
	}

	if l.cache != nil {
		if err := l.cache.BumpVersion(ctx); err != nil {
			l.log.Warn().Err(err).Str("event_id", ch.eventID()).Msg("discovery cache: bump version failed")
		}
	}
	return true, nil
}

func (l *Lifecycle) apply(ctx context.Context, ch Change) error {
	switch ch.Kind {
	case ChangeUpsert:
		err := l.store.UpsertEvent(ctx, ch.Event)
		if errors.Is(err, domain.ErrCapacityBelowReserved) {
			reserved := -1
			if cur, gerr := l.store.GetEvent(ctx, ch.Event.ID); gerr == nil {
				reserved = cur.Reserved
			}
			l.audit.CapacityRejected(ctx, ch.Event.ID, reserved, ch.Event.MaxCapacity)
		}
		return err

	case ChangeDeactivate:
		err := l.store.SetEventActive(ctx, ch.EventID, false)
		if errors.Is(err, domain.ErrEventNotFound) {
			// deactivating an event we never saw is already the desired state
			return nil
		}
		return err

	case ChangeDelete:
		removed, err := l.store.DeleteEvent(ctx, ch.EventID)
		if err != nil {
			return err
		}
		if removed {
			l.audit.EventRemoved(ctx, ch.EventID)
		}
		return nil

	default:
		return fmt.Errorf("lifecycle: unknown change kind %q", ch.Kind)
	}
}
