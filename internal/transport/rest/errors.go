package rest

import (
	"net/http"

	"github.com/baechuer/real-time-ressys/services/jam-service/internal/domain"
	appCtx "github.com/baechuer/real-time-ressys/services/jam-service/internal/pkg/context"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/pkg/logger"
	"github.com/baechuer/real-time-ressys/services/jam-service/internal/transport/rest/response"
)

func fail(w http.ResponseWriter, r *http.Request, status int, code, msg string, meta map[string]string) {
	response.Fail(w, status, response.ErrorPayload{
		Code:      code,
		Message:   msg,
		Meta:      meta,
		RequestID: appCtx.GetRequestID(r.Context()),
	})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindInactive:
		return http.StatusGone
	case domain.KindTransient:
		return http.StatusServiceUnavailable
	case domain.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func handleErr(w http.ResponseWriter, r *http.Request, err error) {
	de, ok := domain.AsError(err)
	if !ok {
		logger.WithCtx(r.Context()).Error().Err(err).Msg("unhandled error")
		fail(w, r, http.StatusInternalServerError, "internal_error", "internal error", nil)
		return
	}

	status := statusFor(de.Kind)
	meta := de.Meta
	switch de.Kind {
	case domain.KindTransient:
		meta = map[string]string{"retryable": "true"}
		logger.WithCtx(r.Context()).Warn().Err(err).Msg("dependency unavailable")
	case domain.KindConsistency:
		logger.WithCtx(r.Context()).Error().Err(err).Msg("consistency violation surfaced to caller")
	}
	fail(w, r, status, string(de.Code), de.Message, meta)
}
