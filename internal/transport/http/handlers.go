// Package http provides HTTP handlers and router configuration.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/abujamalhack/Snapchat-pro/internal/domain"
	"github.com/abujamalhack/Snapchat-pro/internal/service/admission"
	"github.com/abujamalhack/Snapchat-pro/internal/service/scheduler"
	"github.com/abujamalhack/Snapchat-pro/internal/service/scrape"
	"github.com/abujamalhack/Snapchat-pro/internal/transport/http/middleware"
)

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	sched   *scheduler.Scheduler
	limiter *admission.Limiter
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(sched *scheduler.Scheduler, limiter *admission.Limiter) *Handlers {
	return &Handlers{
		sched:   sched,
		limiter: limiter,
	}
}

// HealthHandler handles GET /api/health requests.
func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &domain.HealthResponse{
		Status:     "ok",
		Running:    h.sched.Running(),
		QueueDepth: h.sched.QueueDepth(),
		ActiveJobs: h.sched.ActiveCount(),
	})
}

// SubmitHandler handles POST /api/jobs requests.
func (h *Handlers) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "INVALID_BODY")
		return
	}

	if req.RequesterID <= 0 {
		writeError(w, http.StatusBadRequest, "requester_id is required", "MISSING_REQUESTER")
		return
	}

	if _, err := scrape.ParseTarget(req.Target); err != nil {
		if errors.Is(err, scrape.ErrUnrecognizedTarget) {
			writeError(w, http.StatusBadRequest, "send a username or Snapchat URL", "INVALID_TARGET")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid target", "INVALID_TARGET")
		return
	}

	kind := domain.MediaKind(req.Kind)
	switch kind {
	case "", domain.MediaKindAuto, domain.MediaKindVideo, domain.MediaKindImage:
	default:
		writeError(w, http.StatusBadRequest, "kind must be video, image or auto", "INVALID_KIND")
		return
	}

	if !h.limiter.Allow(req.RequesterID) {
		slog.Warn("Admission denied",
			"requester_id", req.RequesterID,
			"ip", middleware.GetClientIP(r),
		)
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please wait a minute", "ADMISSION_DENIED")
		return
	}

	jobID := h.sched.Submit(req.RequesterID, req.Target, kind)

	slog.Info("Job accepted",
		"job_id", jobID,
		"requester_id", req.RequesterID,
		"ip", middleware.GetClientIP(r),
	)

	writeJSON(w, http.StatusAccepted, &domain.SubmitResponse{JobID: jobID})
}

// StatusHandler handles GET /api/jobs/{job_id} requests.
func (h *Handlers) StatusHandler(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job_id is required", "MISSING_JOB_ID")
		return
	}

	job, ok := h.sched.Status(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
		return
	}

	writeJSON(w, http.StatusOK, &job)
}

// RequesterJobsHandler handles GET /api/requesters/{requester_id}/jobs.
func (h *Handlers) RequesterJobsHandler(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requesterParam(w, r)
	if !ok {
		return
	}

	jobs := h.sched.JobsForRequester(requesterID)
	if jobs == nil {
		jobs = []domain.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

// QuotaHandler handles GET /api/requesters/{requester_id}/quota.
func (h *Handlers) QuotaHandler(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requesterParam(w, r)
	if !ok {
		return
	}

	stats := h.limiter.UsageStats(requesterID)
	writeJSON(w, http.StatusOK, &domain.QuotaResponse{
		RequesterID:        requesterID,
		RequestsLastMinute: stats.RequestsLastMinute,
		Limit:              stats.Limit,
		NextResetSeconds:   stats.NextResetIn.Seconds(),
	})
}

func requesterParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "requester_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid requester_id", "INVALID_REQUESTER")
		return 0, false
	}
	return id, true
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, &domain.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
