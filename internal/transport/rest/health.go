package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/baechuer/real-time-ressys/services/jam-service/internal/metrics"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/transport/rest/response"
)

// HealthCheck pings one dependency. Optional checks degrade the status
// without failing it.
type HealthCheck struct {
	Name     string
	Ping     func(ctx context.Context) error
	Optional bool
}

type HealthHandler struct {
	checks []HealthCheck
}

func NewHealthHandler(checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for _, c := range h.checks {
		err := c.Ping(ctx)
		metrics.SetDependencyHealth(c.Name, err == nil)
		if err == nil {
			deps[c.Name] = "ok"
			continue
		}
		deps[c.Name] = "down"
		if c.Optional {
			if status == "ok" {
				status = "degraded"
			}
			continue
		}
		status, code = "down", http.StatusServiceUnavailable
	}

	response.Data(w, code, map[string]any{"status": status, "dependencies": deps})
}
