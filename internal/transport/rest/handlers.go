package rest

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/baechuer/real-time-ressys/services/jam-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/service"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/transport/rest/response"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type Handler struct {
	registry  *service.Registry
	discovery *service.DiscoveryService
}

func NewHandler(registry *service.Registry, discovery *service.DiscoveryService) *Handler {
	return &Handler{registry: registry, discovery: discovery}
}

// decodeCriteria reads an optional criteria body. An empty body yields nil.
func decodeCriteria(r *http.Request) (*domain.FilterCriteria, error) {
	var req criteriaRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, domain.ValidationMeta(domain.CodeInvalidCriteria, "invalid body", nil)
	}
	return req.toCriteria()
}

func mustAuth(w http.ResponseWriter, r *http.Request) (AuthContext, bool) {
	auth, ok := GetAuth(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "unauthorized", nil)
	}
	return auth, ok
}

// Search: POST /events/search with an optional criteria body.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	c, err := decodeCriteria(r)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	events, err := h.discovery.ListDiscoverable(r.Context(), c)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Items(w, events)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.discovery.GetEvent(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, ev)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}
	reg, err := h.registry.RegisterIfCapacityAvailable(r.Context(), chi.URLParam(r, "eventID"), auth.UserID)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusCreated, reg)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}
	res, err := h.registry.CancelRegistration(r.Context(), chi.URLParam(r, "eventID"), auth.UserID)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, res)
}

func (h *Handler) RegistrationStatus(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}
	eventID := chi.URLParam(r, "eventID")
	state, err := h.registry.IsRegistered(r.Context(), eventID, auth.UserID)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, map[string]string{"event_id": eventID, "status": string(state)})
}

func (h *Handler) MyEvents(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}
	items, err := h.discovery.MyEvents(r.Context(), auth.UserID)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Items(w, items)
}

// Discover applies the caller's saved criteria.
func (h *Handler) Discover(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}
	events, err := h.discovery.DiscoverForUser(r.Context(), auth.UserID)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Items(w, events)
}

func (h *Handler) GetFilter(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}
	c, err := h.discovery.LoadCriteria(r.Context(), auth.UserID)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, criteriaResponse(c))
}

func (h *Handler) PutFilter(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}
	c, err := decodeCriteria(r)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	if c == nil {
		c = &domain.FilterCriteria{}
	}
	if err := h.discovery.SaveCriteria(r.Context(), auth.UserID, *c); err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, criteriaResponse(c.Normalized()))
}

// OrganizerEvents lists the caller's own events; ?active=true hides inactive ones.
func (h *Handler) OrganizerEvents(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}
	activeOnly := false
	if v := strings.TrimSpace(r.URL.Query().Get("active")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			fail(w, r, http.StatusBadRequest, "request.invalid", "invalid active", map[string]string{"active": "must be true or false"})
			return
		}
		activeOnly = b
	}
	events, err := h.discovery.ListByOwner(r.Context(), auth.UserID, activeOnly)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Items(w, events)
}
