package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/chg95211/msx-ethernet-audio/internal/capture"
	"github.com/chg95211/msx-ethernet-audio/internal/session"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Registry *session.Registry
	// PTT is nil unless a push-to-talk session is running.
	PTT    *capture.Switch
	logger *zap.Logger
}

// NewHandlers creates handlers over the process's sessions.
func NewHandlers(reg *session.Registry, ptt *capture.Switch, logger *zap.Logger) *Handlers {
	return &Handlers{Registry: reg, PTT: ptt, logger: logger}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Health handles GET /healthz.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /readyz. It fails while any session is not running.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.Registry.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// ListSessions handles GET /v1/sessions.
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": h.Registry.List()})
}

// GetSession handles GET /v1/sessions/{sessionId}.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.Registry.Get(chi.URLParam(r, "sessionId"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, s.Status())
}

// PushToTalk handles POST /v1/ptt/{action} where action is on, off or toggle.
func (h *Handlers) PushToTalk(w http.ResponseWriter, r *http.Request) {
	if h.PTT == nil {
		writeError(w, http.StatusConflict, "no push-to-talk session")
		return
	}
	var talking bool
	switch action := chi.URLParam(r, "action"); action {
	case "on", "off":
		h.PTT.Set(action == "on", capture.SourceHTTP)
		talking = action == "on"
	case "toggle":
		talking = h.PTT.Toggle(capture.SourceHTTP)
	default:
		writeError(w, http.StatusBadRequest, "action must be on, off or toggle")
		return
	}
	h.logger.Info("push-to-talk", zap.Bool("talking", talking), zap.String("source", capture.SourceHTTP))
	writeJSON(w, http.StatusOK, map[string]bool{"talking": talking})
}
