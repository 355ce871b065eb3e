package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent_Validation(t *testing.T) {
	start := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	t.Run("valid event starts open and empty", func(t *testing.T) {
		e, err := NewEvent("owner-1", "Friday Jam", "bring your axe", []string{"Rock", "Blues"}, "12 King St", -33.87, 151.21, start, 80)
		require.NoError(t, err)
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, 0, e.Reserved)
		assert.True(t, e.Active)
		assert.Equal(t, start.UnixMilli(), e.DateTime)
		assert.Equal(t, start, e.StartsAt())
		assert.Equal(t, 80, e.AvailableSeats())
	})

	t.Run("fail_on_empty_owner", func(t *testing.T) {
		_, err := NewEvent("", "n", "", nil, "", 0, 0, start, 1)
		assert.ErrorIs(t, err, ErrInvalidEvent)
	})

	t.Run("fail_on_non_positive_capacity", func(t *testing.T) {
		_, err := NewEvent("o", "n", "", nil, "", 0, 0, start, 0)
		assert.ErrorIs(t, err, ErrInvalidEvent)
	})

	t.Run("fail_on_bad_coordinates", func(t *testing.T) {
		_, err := NewEvent("o", "n", "", nil, "", 91, 0, start, 1)
		assert.ErrorIs(t, err, ErrInvalidEvent)
	})
}

func TestEvent_CheckConsistency(t *testing.T) {
	assert.NoError(t, Event{ID: "e", MaxCapacity: 2, Reserved: 2}.CheckConsistency())

	err := Event{ID: "e", MaxCapacity: 2, Reserved: 3}.CheckConsistency()
	assert.ErrorIs(t, err, ErrConsistencyViolation)
	assert.Equal(t, KindConsistency, KindOf(err))

	assert.Error(t, Event{ID: "e", MaxCapacity: 2, Reserved: -1}.CheckConsistency())
}

func TestError_IsMatchesOnCode(t *testing.T) {
	wrapped := fmt.Errorf("register: %w", ErrEventFull)
	assert.ErrorIs(t, wrapped, ErrEventFull)
	assert.NotErrorIs(t, wrapped, ErrAlreadyRegistered)
	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.Equal(t, CodeEventFull, CodeOf(wrapped))

	boom := errors.New("dial tcp: i/o timeout")
	tr := Transient("get event", boom)
	assert.ErrorIs(t, tr, ErrStoreUnavailable)
	assert.ErrorIs(t, tr, boom)
	assert.True(t, IsRetryable(tr))
	assert.False(t, IsRetryable(ErrEventFull))
	assert.Equal(t, Kind(""), KindOf(boom))
}
