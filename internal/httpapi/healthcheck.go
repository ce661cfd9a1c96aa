package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/minjin8128-hub/kiwi-last/internal/utils"
)

// CheckFunc reports whether the backing store is reachable.
type CheckFunc func() error

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	check CheckFunc
}

func NewHealthchecker(check CheckFunc) healthchecker {
	return &healthcheckerImpl{check: check}
}

func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.check != nil {
		if err := h.check(); err != nil {
			slog.Error("failed to check storage", "error", err)
			utils.WriteError(w, http.StatusInternalServerError, "failed to check storage")
			return
		}
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func registerHealthcheck(mux *http.ServeMux, check CheckFunc) {
	healthchecker := NewHealthchecker(check)
	mux.HandleFunc("GET /healthz", healthchecker.handleHealthz)
}
