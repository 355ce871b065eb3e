package service_test

import (
	"context"
	"time"

	"github.com/baechuer/real-time-ressys/services/jam-service/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockStore struct{ mock.Mock }

func (m *MockStore) RegisterIfCapacityAvailable(ctx context.Context, eventID, userID string) (domain.Event, error) {
	args := m.Called(ctx, eventID, userID)
	return args.Get(0).(domain.Event), args.Error(1)
}
func (m *MockStore) CancelRegistration(ctx context.Context, eventID, userID string) (domain.Event, bool, error) {
	args := m.Called(ctx, eventID, userID)
	return args.Get(0).(domain.Event), args.Bool(1), args.Error(2)
}
func (m *MockStore) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).(domain.Event), args.Error(1)
}
func (m *MockStore) ListActiveEvents(ctx context.Context) ([]domain.Event, error) {
	args := m.Called(ctx)
	var evs []domain.Event
	if v := args.Get(0); v != nil {
		evs = v.([]domain.Event)
	}
	return evs, args.Error(1)
}
func (m *MockStore) ListEventsByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]domain.Event, error) {
	args := m.Called(ctx, ownerID, activeOnly)
	var evs []domain.Event
	if v := args.Get(0); v != nil {
		evs = v.([]domain.Event)
	}
	return evs, args.Error(1)
}
func (m *MockStore) ListRegisteredEvents(ctx context.Context, userID string) ([]domain.EventWithID, error) {
	args := m.Called(ctx, userID)
	var evs []domain.EventWithID
	if v := args.Get(0); v != nil {
		evs = v.([]domain.EventWithID)
	}
	return evs, args.Error(1)
}
func (m *MockStore) IsRegistered(ctx context.Context, eventID, userID string) (bool, error) {
	args := m.Called(ctx, eventID, userID)
	return args.Bool(0), args.Error(1)
}
func (m *MockStore) UpsertEvent(ctx context.Context, e domain.Event) error {
	return m.Called(ctx, e).Error(0)
}
func (m *MockStore) SetEventActive(ctx context.Context, eventID string, active bool) error {
	return m.Called(ctx, eventID, active).Error(0)
}
func (m *MockStore) DeleteEvent(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}
func (m *MockStore) SaveCriteria(ctx context.Context, userID string, c domain.FilterCriteria) error {
	return m.Called(ctx, userID, c).Error(0)
}
func (m *MockStore) LoadCriteria(ctx context.Context, userID string) (*domain.FilterCriteria, error) {
	args := m.Called(ctx, userID)
	var c *domain.FilterCriteria
	if v := args.Get(0); v != nil {
		c = v.(*domain.FilterCriteria)
	}
	return c, args.Error(1)
}

type MockCache struct{ mock.Mock }

func (m *MockCache) Version(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockCache) BumpVersion(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
func (m *MockCache) GetEvents(ctx context.Context, version int64) ([]domain.Event, error) {
	args := m.Called(ctx, version)
	var evs []domain.Event
	if v := args.Get(0); v != nil {
		evs = v.([]domain.Event)
	}
	return evs, args.Error(1)
}
func (m *MockCache) SetEvents(ctx context.Context, version int64, events []domain.Event, ttl time.Duration) error {
	return m.Called(ctx, version, events, ttl).Error(0)
}
