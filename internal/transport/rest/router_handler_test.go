package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/baechuer/real-time-ressys/services/jam-service/internal/clock"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/filter"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/infrastructure/memory"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/pkg/logger"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/security"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/service"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/transport/rest/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.InitWithWriter(io.Discard)
}

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeVerifier treats the token itself as the user id; "bad" is rejected.
type fakeVerifier struct{}

func (fakeVerifier) VerifyAccessToken(token string) (security.TokenClaims, error) {
	if token == "bad" {
		return security.TokenClaims{}, security.ErrTokenInvalid
	}
	return security.TokenClaims{UserID: token, Role: "user"}, nil
}

type fakeLimiter struct{ allow bool }

func (f fakeLimiter) AllowRequest(ctx context.Context, ip string, limit int, window time.Duration) (bool, error) {
	return f.allow, nil
}

type testEnv struct {
	store  *memory.Store
	router http.Handler
}

func newEnv(t *testing.T, mutate ...func(*RouterDeps)) *testEnv {
	t.Helper()
	store := memory.NewStore()
	registry := service.NewRegistry(store, nil, nil)
	discovery := service.NewDiscoveryService(store, filter.NewEngine(clock.NewFixed(now), time.UTC), nil,
		service.WithClock(clock.NewFixed(now)))

	deps := RouterDeps{
		Handler:  NewHandler(registry, discovery),
		Verifier: fakeVerifier{},
	}
	for _, m := range mutate {
		m(&deps)
	}
	return &testEnv{store: store, router: NewRouter(deps)}
}

func (e *testEnv) seed(t *testing.T, id string, maxCapacity int, mutate ...func(*domain.Event)) {
	t.Helper()
	ev := domain.Event{
		ID:          id,
		OwnerID:     "owner-1",
		Name:        "Jam " + id,
		Genres:      []string{"Jazz"},
		Latitude:    -33.87,
		Longitude:   151.21,
		DateTime:    now.Add(48 * time.Hour).UnixMilli(),
		MaxCapacity: maxCapacity,
		Active:      true,
	}
	for _, m := range mutate {
		m(&ev)
	}
	require.NoError(t, e.store.UpsertEvent(context.Background(), ev))
}

func (e *testEnv) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+user)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decodeData[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return env.Data
}

func decodeErr(t *testing.T, rr *httptest.ResponseRecorder) response.ErrorPayload {
	t.Helper()
	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body.Error
}

func TestAuth_RequiredOnAPI(t *testing.T) {
	env := newEnv(t)

	rr := env.do(t, http.MethodGet, "/api/v1/me/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/v1/me/events", "bad", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "auth.unauthorized", decodeErr(t, rr).Code)

	rr = env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get(requestIDHeader))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestRequestID_Echoed(t *testing.T) {
	env := newEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/nope", nil)
	req.Header.Set("Authorization", "Bearer alice")
	req.Header.Set(requestIDHeader, "rid-123")
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "rid-123", rr.Header().Get(requestIDHeader))
	assert.Equal(t, "rid-123", decodeErr(t, rr).RequestID)
}

func TestRegisterAndCancel(t *testing.T) {
	env := newEnv(t)
	env.seed(t, "evt-1", 1)

	rr := env.do(t, http.MethodPost, "/api/v1/events/evt-1/registrations", "alice", nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	reg := decodeData[domain.Registration](t, rr)
	assert.Equal(t, domain.StateRegistered, reg.State)
	assert.Equal(t, 1, reg.Reserved)
	assert.Equal(t, 1, reg.MaxCapacity)

	rr = env.do(t, http.MethodPost, "/api/v1/events/evt-1/registrations", "alice", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, string(domain.CodeAlreadyRegistered), decodeErr(t, rr).Code)

	rr = env.do(t, http.MethodPost, "/api/v1/events/evt-1/registrations", "bob", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, string(domain.CodeEventFull), decodeErr(t, rr).Code)

	rr = env.do(t, http.MethodGet, "/api/v1/events/evt-1/registrations", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "registered", decodeData[map[string]string](t, rr)["status"])

	rr = env.do(t, http.MethodDelete, "/api/v1/events/evt-1/registrations", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	c := decodeData[domain.Cancellation](t, rr)
	assert.True(t, c.Changed)
	assert.Equal(t, domain.StateNotRegistered, c.State)

	rr = env.do(t, http.MethodDelete, "/api/v1/events/evt-1/registrations", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, decodeData[domain.Cancellation](t, rr).Changed)
}

func TestRegister_ErrorMapping(t *testing.T) {
	env := newEnv(t)
	env.seed(t, "closed", 5, func(e *domain.Event) { e.Active = false })

	rr := env.do(t, http.MethodPost, "/api/v1/events/missing/registrations", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, string(domain.CodeEventNotFound), decodeErr(t, rr).Code)

	rr = env.do(t, http.MethodPost, "/api/v1/events/closed/registrations", "alice", nil)
	assert.Equal(t, http.StatusGone, rr.Code)
	assert.Equal(t, string(domain.CodeEventInactive), decodeErr(t, rr).Code)
}

func TestHandleErr_StatusByKind(t *testing.T) {
	tests := []struct {
		err    error
		status int
		meta   map[string]string
	}{
		{err: domain.Transient("register", errors.New("conn refused")), status: http.StatusServiceUnavailable, meta: map[string]string{"retryable": "true"}},
		{err: domain.ConsistencyViolation("e", 11, 10), status: http.StatusInternalServerError},
		{err: domain.ErrRadiusWithoutCenter, status: http.StatusBadRequest},
		{err: errors.New("boom"), status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		handleErr(rr, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
		assert.Equal(t, tt.status, rr.Code, tt.err.Error())
		if tt.meta != nil {
			assert.Equal(t, tt.meta, decodeErr(t, rr).Meta)
		}
	}
}

func TestSearch(t *testing.T) {
	env := newEnv(t)
	env.seed(t, "jazz-syd", 10)
	env.seed(t, "rock-syd", 10, func(e *domain.Event) { e.Genres = []string{"Rock"} })
	env.seed(t, "jazz-mel", 10, func(e *domain.Event) { e.Latitude, e.Longitude = -37.81, 144.96 })
	env.seed(t, "past", 10, func(e *domain.Event) { e.DateTime = now.Add(-time.Hour).UnixMilli() })

	ids := func(rr *httptest.ResponseRecorder) []string {
		var out []string
		for _, e := range decodeData[response.Page[domain.Event]](t, rr).Items {
			out = append(out, e.ID)
		}
		return out
	}

	t.Run("no body is unconstrained but hides past", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/v1/events/search", "alice", nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.ElementsMatch(t, []string{"jazz-syd", "rock-syd", "jazz-mel"}, ids(rr))
	})

	t.Run("genre and radius", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/v1/events/search", "alice", map[string]any{
			"genres":    []string{"jazz"},
			"center":    map[string]float64{"latitude": -33.87, "longitude": 151.21},
			"radius_km": 50,
		})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, []string{"jazz-syd"}, ids(rr))
	})

	t.Run("radius without center is rejected", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/v1/events/search", "alice", map[string]any{"radius_km": 10})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, string(domain.CodeRadiusWithoutCenter), decodeErr(t, rr).Code)
	})

	t.Run("one-sided and out-of-range blocks are unconstrained", func(t *testing.T) {
		start := now.Add(time.Hour).UnixMilli()
		bodies := []map[string]any{
			{"date": map[string]int64{"start": start}},
			{"time_of_day": map[string]int{"start_minute": 60}},
			{"time_of_day": map[string]int{"start_minute": 1500, "end_minute": 60}},
			{"center": map[string]float64{"latitude": 91, "longitude": 0}, "radius_km": 1},
			{"available_seats": map[string]int{"min": -3}},
		}
		for _, body := range bodies {
			rr := env.do(t, http.MethodPost, "/api/v1/events/search", "alice", body)
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			assert.ElementsMatch(t, []string{"jazz-syd", "rock-syd", "jazz-mel"}, ids(rr), body)
		}
	})

	t.Run("inverted date range matches nothing", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/v1/events/search", "alice", map[string]any{
			"date": map[string]int64{"start": now.Add(72 * time.Hour).UnixMilli(), "end": now.UnixMilli()},
		})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Empty(t, ids(rr))
	})

	t.Run("date range applies when both bounds are set", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/v1/events/search", "alice", map[string]any{
			"date":   map[string]int64{"start": now.UnixMilli(), "end": now.Add(72 * time.Hour).UnixMilli()},
			"genres": []string{"Rock"},
		})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, []string{"rock-syd"}, ids(rr))
	})

	t.Run("malformed json", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/v1/events/search", "alice", "{")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestSearch_AvailableSeatsReflectsRegistration(t *testing.T) {
	env := newEnv(t)
	env.seed(t, "almost", 80, func(e *domain.Event) { e.Reserved = 0 })
	for i := 0; i < 79; i++ {
		_, err := env.store.RegisterIfCapacityAvailable(context.Background(), "almost", fmt.Sprintf("user-%d", i))
		require.NoError(t, err)
	}
	body := map[string]any{"available_seats": map[string]int{"min": 1}}

	rr := env.do(t, http.MethodPost, "/api/v1/events/search", "alice", body)
	require.Len(t, decodeData[response.Page[domain.Event]](t, rr).Items, 1)

	rr = env.do(t, http.MethodPost, "/api/v1/events/almost/registrations", "alice", nil)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/v1/events/search", "alice", body)
	assert.Empty(t, decodeData[response.Page[domain.Event]](t, rr).Items)
}

func TestFilterSnapshotAndDiscover(t *testing.T) {
	env := newEnv(t)
	env.seed(t, "jazz", 10)
	env.seed(t, "rock", 10, func(e *domain.Event) { e.Genres = []string{"Rock"} })

	rr := env.do(t, http.MethodGet, "/api/v1/me/filter", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeData[criteriaRequest](t, rr).Genres)

	rr = env.do(t, http.MethodPut, "/api/v1/me/filter", "alice", map[string]any{"genres": []string{"Rock", "Vaporwave"}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, []string{"Rock"}, decodeData[criteriaRequest](t, rr).Genres)

	rr = env.do(t, http.MethodGet, "/api/v1/me/filter", "alice", nil)
	assert.Equal(t, []string{"Rock"}, decodeData[criteriaRequest](t, rr).Genres)

	rr = env.do(t, http.MethodGet, "/api/v1/me/discover", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	items := decodeData[response.Page[domain.Event]](t, rr).Items
	require.Len(t, items, 1)
	assert.Equal(t, "rock", items[0].ID)
}

func TestMyEvents_SortedAndOrganizerListing(t *testing.T) {
	env := newEnv(t)
	env.seed(t, "later", 10, func(e *domain.Event) { e.DateTime = now.Add(72 * time.Hour).UnixMilli() })
	env.seed(t, "sooner", 10, func(e *domain.Event) { e.DateTime = now.Add(2 * time.Hour).UnixMilli() })
	env.seed(t, "mine-inactive", 10, func(e *domain.Event) { e.OwnerID = "alice"; e.Active = false })

	for _, id := range []string{"later", "sooner"} {
		rr := env.do(t, http.MethodPost, "/api/v1/events/"+id+"/registrations", "bob", nil)
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr := env.do(t, http.MethodGet, "/api/v1/me/events", "bob", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	items := decodeData[response.Page[domain.EventWithID]](t, rr).Items
	require.Len(t, items, 2)
	assert.Equal(t, "sooner", items[0].ID)
	assert.Equal(t, "later", items[1].ID)

	rr = env.do(t, http.MethodGet, "/api/v1/organizer/events", "alice", nil)
	assert.Len(t, decodeData[response.Page[domain.Event]](t, rr).Items, 1)

	rr = env.do(t, http.MethodGet, "/api/v1/organizer/events?active=true", "alice", nil)
	assert.Empty(t, decodeData[response.Page[domain.Event]](t, rr).Items)

	rr = env.do(t, http.MethodGet, "/api/v1/organizer/events?active=maybe", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRateLimit_UsesSharedLimiter(t *testing.T) {
	env := newEnv(t, func(d *RouterDeps) {
		d.RLEnabled = true
		d.RLLimit = 10
		d.RLWindow = time.Minute
		d.Limiter = fakeLimiter{allow: false}
	})

	rr := env.do(t, http.MethodGet, "/api/v1/me/events", "alice", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	rr = env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code, "health is not rate limited")
}

func TestRateLimit_InProcessFallback(t *testing.T) {
	env := newEnv(t, func(d *RouterDeps) {
		d.RLEnabled = true
		d.RLLimit = 2
		d.RLWindow = time.Minute
	})

	for i := 0; i < 2; i++ {
		rr := env.do(t, http.MethodGet, "/api/v1/me/events", "alice", nil)
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := env.do(t, http.MethodGet, "/api/v1/me/events", "alice", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestHealthz_ReportsDependencies(t *testing.T) {
	env := newEnv(t, func(d *RouterDeps) {
		d.Health = NewHealthHandler(
			HealthCheck{Name: "postgres", Ping: func(context.Context) error { return nil }},
			HealthCheck{Name: "redis", Ping: func(context.Context) error { return errors.New("down") }, Optional: true},
		)
	})

	rr := env.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeData[map[string]any](t, rr)
	assert.Equal(t, "degraded", body["status"])

	env = newEnv(t, func(d *RouterDeps) {
		d.Health = NewHealthHandler(HealthCheck{Name: "postgres", Ping: func(context.Context) error { return errors.New("down") }})
	})
	rr = env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newEnv(t)
	env.do(t, http.MethodGet, "/healthz", "", nil)

	rr := env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "jam_http_requests_total")
}
