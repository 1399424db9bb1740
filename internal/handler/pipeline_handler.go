package handler

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"coach-service/internal/models"
	"coach-service/internal/provider"
	"coach-service/internal/service"
	"coach-service/internal/util"
)

// PipelineHandler handles HTTP requests for the admission/fallback pipeline
type PipelineHandler struct {
	admission *service.AdmissionService
	chain     *service.ChainService
	jobs      *service.JobService
	dispatch  *service.DispatchService
	logger    *zap.Logger
}

func NewPipelineHandler(
	admission *service.AdmissionService,
	chain *service.ChainService,
	jobs *service.JobService,
	dispatch *service.DispatchService,
	logger *zap.Logger,
) *PipelineHandler {
	return &PipelineHandler{
		admission: admission,
		chain:     chain,
		jobs:      jobs,
		dispatch:  dispatch,
		logger:    logger,
	}
}

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

func successResponse(data interface{}, message string) Response {
	return Response{
		Success: true,
		Data:    data,
		Message: message,
	}
}

func errorResponse(err error, message string) Response {
	return Response{
		Success: false,
		Error:   err.Error(),
		Message: message,
	}
}

// rateLimitedResponse is the 429 wire contract.
type rateLimitedResponse struct {
	Error     string `json:"error"`
	ResetTime int64  `json:"resetTime"` // epoch ms
}

// RegisterRoutes registers all pipeline routes
func (h *PipelineHandler) RegisterRoutes(router chi.Router) {
	router.Post("/validate", h.ValidateIdea)
	router.Post("/coach-nudge", h.CoachNudge)

	router.Route("/jobs", func(r chi.Router) {
		r.Post("/", h.CreateJob)
		r.Get("/{jobID}", h.GetJob)
	})

	router.Post("/webhooks/job-result", h.JobResultWebhook)

	router.Get("/ideas/recent", h.RecentIdeas)
}

// ValidateIdea runs the synchronous validation flow: admission check first,
// then the provider chain.
func (h *PipelineHandler) ValidateIdea(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	var req models.ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if err := validateIdeaRequest(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid idea")
		return
	}

	req.Title = util.SanitizeIdeaText(req.Title)
	req.Description = util.SanitizeIdeaText(req.Description)
	req.TargetMarket = util.SanitizeIdeaText(req.TargetMarket)

	decision := h.admission.Check(ctx, service.PolicyValidatePerDay, clientIP(r))
	setRateLimitHeaders(w, decision)
	if !decision.Allowed {
		h.respondWithJSON(w, http.StatusTooManyRequests, rateLimitedResponse{
			Error:     "daily validation limit reached",
			ResetTime: decision.ResetAt.UnixMilli(),
		})
		return
	}

	result, err := h.chain.Run(ctx, providerInput(&req))
	if err != nil {
		h.respondWithError(w, h.getStatusCode(err), err, "Validation failed")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(result.Analysis, "Idea analyzed"))
	h.logger.Info("Idea validated via HTTP",
		util.String("provider", result.Provider),
		util.Duration("duration", time.Since(startTime)))
}

type createJobRequest struct {
	Type    models.JobType  `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CreateJob creates a job record and notifies the workflow engine without
// waiting for it; the caller polls GET /jobs/{id} for the outcome.
func (h *PipelineHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	job, err := h.jobs.CreateJob(ctx, req.Type, req.Payload)
	if err != nil {
		h.respondWithError(w, h.getStatusCode(err), err, "Failed to create job")
		return
	}

	h.dispatch.Dispatch(models.DispatchEnvelope{
		RequestType: string(job.Type),
		Reason:      "job-created",
		Payload: map[string]interface{}{
			"job_id":  job.ID,
			"payload": req.Payload,
		},
	})

	h.respondWithJSON(w, http.StatusAccepted, successResponse(map[string]string{"jobId": job.ID}, "Job created"))
}

// GetJob returns current job state for polling clients.
func (h *PipelineHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		h.respondWithError(w, h.getStatusCode(err), err, "Failed to get job")
		return
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(job, "Job retrieved"))
}

type jobResultRequest struct {
	JobID  string          `json:"jobId"`
	Status models.JobStatus `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// JobResultWebhook is the inbound completion callback from the workflow
// engine. Duplicate deliveries answer 200 exactly like the first.
func (h *PipelineHandler) JobResultWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req jobResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if req.JobID == "" {
		h.respondWithError(w, http.StatusBadRequest, errors.New("jobId is required"), "Missing jobId")
		return
	}
	if !req.Status.IsValid() || req.Status == models.JobStatusPending {
		h.respondWithError(w, http.StatusBadRequest, errors.New("invalid status"), "Invalid status")
		return
	}

	var err error
	if req.Status == models.JobStatusProcessing {
		_, err = h.jobs.MarkProcessing(ctx, req.JobID)
	} else {
		_, err = h.jobs.CompleteJob(ctx, req.JobID, req.Status, req.Result, req.Error)
	}
	if err != nil {
		h.respondWithError(w, h.getStatusCode(err), err, "Failed to record job result")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(nil, "Result recorded"))
}

type nudgeRequest struct {
	UserID      string            `json:"userId,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Progress    int               `json:"progress,omitempty"`
	CurrentDay  int               `json:"currentDay,omitempty"`
	Preferences map[string]string `json:"preferences,omitempty"`
}

// CoachNudge fires a best-effort nudge request toward the workflow engine
// and acknowledges immediately.
func (h *PipelineHandler) CoachNudge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req nudgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	decision := h.admission.Check(ctx, service.PolicyNudge, clientIP(r))
	setRateLimitHeaders(w, decision)
	if !decision.Allowed {
		h.respondWithJSON(w, http.StatusTooManyRequests, rateLimitedResponse{
			Error:     "nudge limit reached",
			ResetTime: decision.ResetAt.UnixMilli(),
		})
		return
	}

	h.dispatch.Dispatch(models.DispatchEnvelope{
		UserID:      req.UserID,
		RequestType: "coach-nudge",
		Reason:      req.Reason,
		Progress:    req.Progress,
		CurrentDay:  req.CurrentDay,
		Preferences: req.Preferences,
	})

	h.respondWithJSON(w, http.StatusOK, successResponse(nil, "Nudge queued"))
}

// RecentIdeas is a diagnostics read over the derived idea records.
func (h *PipelineHandler) RecentIdeas(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	ideas, err := h.jobs.RecentIdeas(r.Context(), limit)
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, err, "Failed to read ideas")
		return
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(ideas, "Recent ideas retrieved"))
}

func validateIdeaRequest(req *models.ValidateRequest) error {
	if req.Title == "" {
		return errors.New("title is required")
	}
	if req.Description == "" {
		return errors.New("description is required")
	}
	if util.ContainsSuspicious(req.Title) || util.ContainsSuspicious(req.Description) {
		return errors.New("input contains disallowed content")
	}
	return nil
}

func providerInput(req *models.ValidateRequest) provider.Input {
	return provider.Input{
		Title:        req.Title,
		Description:  req.Description,
		TargetMarket: req.TargetMarket,
	}
}

func setRateLimitHeaders(w http.ResponseWriter, d models.RateLimitDecision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.UnixMilli(), 10))
}

// clientIP relies on chi middleware.RealIP having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// respondWithJSON sends a JSON response
func (h *PipelineHandler) respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", util.ErrorField(err))
	}
}

// respondWithError sends an error response
func (h *PipelineHandler) respondWithError(w http.ResponseWriter, statusCode int, err error, message string) {
	if statusCode >= http.StatusInternalServerError {
		// Never leak upstream detail on server errors.
		h.logger.Error(message, util.ErrorField(err))
		h.respondWithJSON(w, statusCode, errorResponse(errors.New("internal error"), message))
		return
	}
	h.respondWithJSON(w, statusCode, errorResponse(err, message))
}

// getStatusCode determines the appropriate HTTP status code for an error
func (h *PipelineHandler) getStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidJobInput), errors.Is(err, service.ErrInvalidJobStatus):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrAllProvidersFailed), errors.Is(err, service.ErrNoProviders):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
