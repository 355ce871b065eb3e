package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/baechuer/real-time-ressys/services/jam-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/infrastructure/memory"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestRegistry_ConcurrentRegisterOnLastSeat(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ev := upcoming("ev-1")
	ev.MaxCapacity = 1
	require.NoError(t, store.UpsertEvent(ctx, ev))
	reg := service.NewRegistry(store, nil, nil)

	for round := 0; round < 20; round++ {
		for i := 0; i < 2; i++ {
			_, _, err := store.CancelRegistration(ctx, "ev-1", fmt.Sprintf("user-%d", i))
			require.NoError(t, err)
		}

		results := make([]error, 2)
		var g errgroup.Group
		for i := range results {
			g.Go(func() error {
				_, results[i] = reg.RegisterIfCapacityAvailable(ctx, "ev-1", fmt.Sprintf("user-%d", i))
				return nil
			})
		}
		require.NoError(t, g.Wait())

		var ok, full int
		for _, err := range results {
			if err == nil {
				ok++
			} else if errors.Is(err, domain.ErrEventFull) {
				full++
			}
		}
		require.Equal(t, 1, ok, "round %d", round)
		require.Equal(t, 1, full, "round %d", round)

		got, err := store.GetEvent(ctx, "ev-1")
		require.NoError(t, err)
		require.Equal(t, 1, got.Reserved)
	}
}

func TestRegistry_AvailableSeatsCriterionSeesRegistration(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ev := upcoming("ev-80")
	ev.MaxCapacity, ev.Reserved = 80, 79
	require.NoError(t, store.UpsertEvent(ctx, ev))

	reg := service.NewRegistry(store, nil, nil)
	disc := newDiscovery(store)

	one := 1
	c, err := domain.NewFilterCriteria(domain.WithAvailableSeats(&one, nil))
	require.NoError(t, err)

	out, err := disc.ListDiscoverable(ctx, c)
	require.NoError(t, err)
	assert.Len(t, out, 1)

	res, err := reg.RegisterIfCapacityAvailable(ctx, "ev-80", "u-1")
	require.NoError(t, err)
	assert.Equal(t, 80, res.Reserved)

	out, err = disc.ListDiscoverable(ctx, c)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRegistry_MyEventsAfterRegisterAndCancel(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	soon := upcoming("soon")
	later := upcoming("later")
	later.DateTime = fixedNow.Add(48 * time.Hour).UnixMilli()
	require.NoError(t, store.UpsertEvent(ctx, soon))
	require.NoError(t, store.UpsertEvent(ctx, later))

	reg := service.NewRegistry(store, nil, nil)
	disc := newDiscovery(store)

	for _, id := range []string{"later", "soon"} {
		_, err := reg.RegisterIfCapacityAvailable(ctx, id, "u-1")
		require.NoError(t, err)
	}

	mine, err := disc.MyEvents(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "soon", mine[0].ID)
	assert.Equal(t, "later", mine[1].ID)

	_, err = reg.CancelRegistration(ctx, "soon", "u-1")
	require.NoError(t, err)

	mine, err = disc.MyEvents(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "later", mine[0].ID)
}
