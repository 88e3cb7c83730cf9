package httpapi

import (
	"encoding/json"
	"net/http"

	"weekly-planner/internal/shared"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func statusFor(kind shared.Kind) int {
	switch kind {
	case shared.KindValidation:
		return http.StatusBadRequest
	case shared.KindUnauthorized:
		return http.StatusUnauthorized
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindConflict:
		return http.StatusConflict
	case shared.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error", "code"}. Messages of store failures are
// fixed strings, so no driver text reaches the caller.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := shared.As(err)
	if !ok {
		e = shared.Store(err)
	}
	status := statusFor(e.Kind)

	log := logger(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "status", status, "code", e.Code, "error", err)
	} else {
		log.Debug("request rejected", "status", status, "code", e.Code)
	}

	writeJSON(w, status, errorResponse{Error: e.Message, Code: e.Code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
