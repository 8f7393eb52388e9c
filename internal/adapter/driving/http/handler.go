package httphandler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ericfisherdev/signproxy/internal/application"
	"github.com/ericfisherdev/signproxy/internal/domain/port/driven"
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	settings driven.SettingsStore
	history  *application.HistoryService
	stamper  *application.Stamper
	logger   *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	settings driven.SettingsStore,
	history *application.HistoryService,
	stamper *application.Stamper,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		settings: settings,
		history:  history,
		stamper:  stamper,
		logger:   logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware. Every route except health passes
// through requireSig first.
func NewServeMux(h *Handler, requireSig func(http.Handler) http.Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	signed := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, requireSig(fn))
	}

	mux.HandleFunc("GET /api/v1/health", h.Health)

	signed("GET /api/v1/settings", h.GetSettings)
	signed("PATCH /api/v1/settings", h.UpdateSettings)
	signed("DELETE /api/v1/settings", h.ClearSettings)

	signed("GET /api/v1/artifacts", h.ListArtifacts)
	signed("POST /api/v1/artifacts", h.SaveArtifact)
	signed("DELETE /api/v1/artifacts", h.ClearArtifacts)
	signed("GET /api/v1/artifacts/{id}", h.GetArtifact)
	signed("DELETE /api/v1/artifacts/{id}", h.DeleteArtifact)

	signed("POST /api/v1/sign", h.Sign)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health reports whether the settings store is reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if _, err := h.settings.Get(r.Context()); errors.Is(err, driven.ErrStorageUnavailable) {
		h.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Sign returns a fresh (timestamp, signature) pair for the stored API key.
func (h *Handler) Sign(w http.ResponseWriter, r *http.Request) {
	stamp, err := h.stamper.Stamp(r.Context())
	if errors.Is(err, application.ErrNoCredential) {
		writeError(w, http.StatusConflict, "no api key configured")
		return
	}
	if err != nil {
		h.writeStoreError(w, "failed to sign", err)
		return
	}

	writeJSON(w, http.StatusOK, StampResponse{Timestamp: stamp.Timestamp, Signature: stamp.Signature})
}

// writeStoreError maps port-level storage errors to status codes and logs
// anything that is not a plain not-found.
func (h *Handler) writeStoreError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, driven.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, driven.ErrQuotaExceeded):
		h.logger.Warn(msg, "error", err)
		writeError(w, http.StatusInsufficientStorage, "storage quota exceeded")
	case errors.Is(err, driven.ErrStorageUnavailable):
		h.logger.Error(msg, "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		h.logger.Error(msg, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
