package handlers

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/balance-projection/internal/api/middleware"
	"github.com/dvloznov/balance-projection/internal/jobs"
	"github.com/dvloznov/balance-projection/internal/projection"
)

// JobsHandler handles recalculation job and rebuild endpoints.
type JobsHandler struct {
	svc *projection.Service
	log zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(svc *projection.Service, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{svc: svc, log: log}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.JobFilter{
		BankAccountID: query.Get("bank_account_id"),
		Status:        jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.svc.ListJobs(r.Context(), filter)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// RebuildAccount handles POST /api/accounts/{id}/rebuild. The rebuild is
// queued unless ?sync=true asks for it to run within the request.
func (h *JobsHandler) RebuildAccount(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")

	if r.URL.Query().Get("sync") == "true" {
		job, err := h.svc.RebuildAccount(r.Context(), accountID)
		if err != nil {
			middleware.WriteServiceError(w, r, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, job)
		return
	}

	job, err := h.svc.EnqueueRebuild(r.Context(), accountID)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusAccepted, job)
}

// RebuildAll handles POST /api/rebuild
func (h *JobsHandler) RebuildAll(w http.ResponseWriter, r *http.Request) {
	results, err := h.svc.RebuildAll(r.Context())
	if err != nil && results == nil {
		middleware.WriteServiceError(w, r, err)
		return
	}

	resp := map[string]interface{}{
		"jobs":  results,
		"count": len(results),
	}
	if err != nil {
		h.log.Warn().Err(err).Msg("Rebuild finished with failures")
		resp["error"] = err.Error()
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}
