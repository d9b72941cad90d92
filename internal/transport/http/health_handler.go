package http

import (
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/render"

	"reportlab/internal/dataset"
	"reportlab/internal/session"
)

// HealthHandler serves liveness and version endpoints.
type HealthHandler struct {
	store     *session.Store
	cache     *dataset.Cache
	logger    *slog.Logger
	version   string
	startedAt time.Time
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(store *session.Store, cache *dataset.Cache, version string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:     store,
		cache:     cache,
		logger:    logger.With(slog.String("component", "health_handler")),
		version:   version,
		startedAt: time.Now(),
	}
}

// Health handles GET /api/health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"status":          "healthy",
		"timestamp":       time.Now().UTC(),
		"uptime_seconds":  int(time.Since(h.startedAt).Seconds()),
		"active_sessions": h.store.Len(),
		"cached_uploads":  h.cache.Len(),
	})
}

// Version handles GET /api/version.
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"version":    h.version,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	})
}
