package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quanta/internal/interfaces"
	"github.com/ternarybob/quanta/internal/models"
	"github.com/ternarybob/quanta/internal/orchestrator"
)

// JobHandler exposes the orchestrator's control and query surface over
// HTTP. Invalid-state refusals map to 409 Conflict rather than faults.
type JobHandler struct {
	orchestrator interfaces.Orchestrator
	logger       arbor.ILogger
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(orch interfaces.Orchestrator, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		orchestrator: orch,
		logger:       logger,
	}
}

// StartJobHandler handles POST /api/jobs/start
func (h *JobHandler) StartJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var payload models.JobPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	jobID, err := h.orchestrator.Start(payload)
	if err != nil {
		h.refuse(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "started",
		"job_id": jobID,
	})
}

// PauseJobHandler handles POST /api/jobs/pause
func (h *JobHandler) PauseJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if err := h.orchestrator.Pause(); err != nil {
		h.refuse(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

// ResumeJobHandler handles POST /api/jobs/resume
func (h *JobHandler) ResumeJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if err := h.orchestrator.Resume(); err != nil {
		h.refuse(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "resumed"})
}

// StopJobHandler handles POST /api/jobs/stop
func (h *JobHandler) StopJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if err := h.orchestrator.Stop(); err != nil {
		h.refuse(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// ListJobsHandler handles GET /api/jobs
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	jobs := h.orchestrator.ListJobs()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// LatestJobHandler handles GET /api/jobs/latest
func (h *JobHandler) LatestJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	job := h.orchestrator.GetLatestJob()
	if job == nil {
		WriteError(w, http.StatusNotFound, "no jobs submitted")
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// GetJobHandler handles GET /api/jobs/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, ok := h.orchestrator.GetJob(id)
	if !ok {
		WriteError(w, http.StatusNotFound, "job not found: "+id)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// refuse maps control errors to user-visible refusals instead of faults
func (h *JobHandler) refuse(w http.ResponseWriter, err error) {
	if orchestrator.IsInvalidState(err) {
		h.logger.Debug().Err(err).Msg("Control operation refused")
		WriteError(w, http.StatusConflict, err.Error())
		return
	}
	h.logger.Error().Err(err).Msg("Control operation failed")
	WriteError(w, http.StatusInternalServerError, err.Error())
}
