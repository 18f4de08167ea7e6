package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"

	"github.com/texas38923/node-mongo-api/internal/utils"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	DB Pinger
}

// GET /healthz
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.DB == nil {
		utils.JSONError(w, "database not configured", http.StatusServiceUnavailable)
		return
	}
	if err := h.DB.Ping(ctx); err != nil {
		grip.Warning(message.WrapError(err, message.Fields{"message": "health check failed"}))
		utils.JSONError(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "OK")
}
