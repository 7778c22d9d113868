package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quanta/internal/common"
	"github.com/ternarybob/quanta/internal/interfaces"
)

// StatusHandler handles HTTP requests for application status
type StatusHandler struct {
	orchestrator interfaces.Orchestrator
	transport    interfaces.Transport // nil when no remote source is configured
	logger       arbor.ILogger
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(orch interfaces.Orchestrator, transport interfaces.Transport, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		orchestrator: orch,
		transport:    transport,
		logger:       logger,
	}
}

// GetStatusHandler handles GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	status := map[string]interface{}{
		"state":     h.orchestrator.State(),
		"timestamp": time.Now(),
	}
	if h.transport != nil {
		status["connection"] = h.transport.Status()
	}

	WriteJSON(w, http.StatusOK, status)
}

// GetVersionHandler handles GET /api/version
func (h *StatusHandler) GetVersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
	})
}
