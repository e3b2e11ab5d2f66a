package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/textforge/humanizer-back/internal/domain"
	"github.com/textforge/humanizer-back/internal/pipeline"
	"github.com/textforge/humanizer-back/internal/repository"
)

// CreateTransform handles POST /v1/transforms. Synchronous by default; with
// "async": true the job runs in the background and the handler returns 202
// with the job id. An Idempotency-Key header makes retried submissions reuse
// the original job.
func (api *API) CreateTransform(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var payload transformPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}
	if strings.TrimSpace(payload.Text) == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}
	if len(payload.Text) > maxTextBytes {
		writeError(w, r, http.StatusRequestEntityTooLarge, "invalid_request", "text exceeds the maximum size")
		return
	}

	req := domain.TransformRequest{
		Text:         payload.Text,
		Level:        payload.Level,
		Strategy:     domain.StrategyName(strings.TrimSpace(strings.ToLower(payload.Strategy))),
		Delimiters:   payload.Delimiters,
		LanguageHint: strings.TrimSpace(payload.LanguageHint),
		UserID:       strings.TrimSpace(payload.UserID),
		ProjectID:    strings.TrimSpace(payload.ProjectID),
		Resumable:    payload.Resumable,
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	payloadHash := hashPayload(payload)
	if idempotencyKey != "" {
		if entry, ok := api.idempotency.Get(idempotencyKey); ok {
			if entry.PayloadHash != payloadHash {
				writeError(w, r, http.StatusConflict, "idempotency_conflict", "idempotency key reused with a different payload")
				return
			}
			api.respondWithJob(w, r, entry.JobID)
			return
		}
	}

	if payload.Async {
		record, err := api.transforms.Submit(r.Context(), req)
		if err != nil {
			api.writeTransformError(w, r, err)
			return
		}
		if idempotencyKey != "" {
			api.idempotency.Put(idempotencyKey, payloadHash, record.ID)
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"job_id": record.ID,
			"status": record.Status,
		})
		return
	}

	result, err := api.transforms.Transform(r.Context(), req)
	if err != nil {
		api.writeTransformError(w, r, err)
		return
	}
	if idempotencyKey != "" {
		api.idempotency.Put(idempotencyKey, payloadHash, result.JobID)
	}
	writeJSON(w, http.StatusOK, result)
}

// TransformByID routes /v1/transforms/{id} and its subresources:
// GET {id}, GET {id}/progress, POST {id}/pause, {id}/resume, {id}/cancel.
func (api *API) TransformByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/transforms/")
	parts := strings.SplitN(strings.Trim(rest, "/"), "/", 2)
	jobID := strings.TrimSpace(parts[0])
	if jobID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "job_id is required")
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch action {
	case "":
		api.getTransform(w, r, jobID)
	case "progress":
		api.getProgress(w, r, jobID)
	case "pause":
		api.pauseTransform(w, r, jobID)
	case "resume":
		api.resumeTransform(w, r, jobID)
	case "cancel":
		api.cancelTransform(w, r, jobID)
	default:
		writeError(w, r, http.StatusNotFound, "not_found", "unknown resource")
	}
}

func (api *API) getTransform(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	api.respondWithJob(w, r, jobID)
}

func (api *API) respondWithJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := api.transforms.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "job not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load job")
		return
	}

	response := map[string]any{
		"job_id":     job.ID,
		"status":     job.Status,
		"strategy":   job.Strategy,
		"level":      job.Level,
		"updated_at": job.UpdatedAt,
	}
	if len(job.Result) > 0 {
		response["result"] = jsonRawOrFallback(job.Result)
	}
	if strings.TrimSpace(job.ErrorMessage) != "" {
		response["error"] = map[string]any{
			"code":    "processing_error",
			"message": job.ErrorMessage,
		}
	}
	writeJSON(w, http.StatusOK, response)
}

func (api *API) getProgress(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	update, err := api.transforms.Progress(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// job may have finished already; fall back to its record
			api.respondWithJob(w, r, jobID)
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load progress")
		return
	}
	writeJSON(w, http.StatusOK, update)
}

func (api *API) pauseTransform(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	if err := api.transforms.Pause(r.Context(), jobID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "no running job with that id")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to pause job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id": jobID,
		"status": domain.JobStatusPaused,
	})
}

func (api *API) resumeTransform(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	record, err := api.transforms.Resume(r.Context(), jobID)
	if err != nil {
		api.writeTransformError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id": record.ID,
		"status": record.Status,
	})
}

func (api *API) cancelTransform(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	if err := api.transforms.Cancel(r.Context(), jobID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "no active job with that id")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to cancel job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id": jobID,
		"status": domain.JobStatusCancelled,
	})
}

func (api *API) writeTransformError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pipeline.ErrValidation):
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "job not found")
	case errors.Is(err, pipeline.ErrPaused):
		writeError(w, r, http.StatusConflict, "job_paused", "job is paused")
	case errors.Is(err, pipeline.ErrCancelled):
		writeError(w, r, http.StatusConflict, "job_cancelled", "job was cancelled")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal_error", "transformation failed")
	}
}
