package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Job control
	mux.HandleFunc("/api/jobs/start", s.app.JobHandler.StartJobHandler)   // POST - submit a new job
	mux.HandleFunc("/api/jobs/pause", s.app.JobHandler.PauseJobHandler)   // POST - pause the active job
	mux.HandleFunc("/api/jobs/resume", s.app.JobHandler.ResumeJobHandler) // POST - resume a paused job
	mux.HandleFunc("/api/jobs/stop", s.app.JobHandler.StopJobHandler)     // POST - stop the active job

	// API routes - Job queries
	mux.HandleFunc("/api/jobs", s.app.JobHandler.ListJobsHandler)         // GET - list jobs
	mux.HandleFunc("/api/jobs/latest", s.app.JobHandler.LatestJobHandler) // GET - most recent job
	mux.HandleFunc("/api/jobs/", s.app.JobHandler.GetJobHandler)          // GET /{id}

	// API routes - System
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)
	mux.HandleFunc("/api/version", s.app.StatusHandler.GetVersionHandler)

	return mux
}
