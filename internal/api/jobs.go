// Package api exposes the exploration service over HTTP and MCP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/ivrmap/internal/ledger"
	"github.com/kalambet/ivrmap/internal/orchestrator"
	"github.com/kalambet/ivrmap/internal/telephony"
)

const maxRequestBodySize = 1 << 20 // 1MB

// AppDeps holds what the HTTP surface needs. Token may be empty to disable
// authentication (local development).
type AppDeps struct {
	Orchestrator *orchestrator.Orchestrator
	Ledger       *ledger.Store
	Token        string
}

// NewAppHandler returns the service's HTTP handler: job lifecycle under
// /jobs, the leg ledger under /legs, and an unauthenticated /health probe.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Post("/jobs", handleSubmitJob(deps))
		r.Get("/jobs", handleListJobs(deps))
		r.Get("/jobs/{id}", handleGetJob(deps))
		r.Delete("/jobs/{id}", handleCancelJob(deps))
		r.Post("/jobs/{id}/completion", handleCallCompletion(deps))

		r.Get("/legs", handleListLegs(deps))
		r.Post("/legs", handleUpsertLeg(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleSubmitJob(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req orchestrator.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		id, err := deps.Orchestrator.Submit(req)
		if err != nil {
			var verr *orchestrator.ValidationError
			if errors.As(err, &verr) {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%s %s", verr.Field, verr.Reason)
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "failed to submit job: %v", err)
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{
			"jobId":  id,
			"status": string(orchestrator.StatusPending),
		})
	}
}

func handleListJobs(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		jobs, err := deps.Orchestrator.List(limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list jobs: %v", err)
			return
		}
		if jobs == nil {
			jobs = []orchestrator.Snapshot{}
		}

		writeJSON(w, http.StatusOK, jobs)
	}
}

func handleGetJob(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		snap, err := deps.Orchestrator.Status(id)
		if errors.Is(err, orchestrator.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get job: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, snap)
	}
}

func handleCancelJob(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := deps.Orchestrator.Cancel(id)
		switch {
		case errors.Is(err, orchestrator.ErrNotFound):
			httpError(w, http.StatusNotFound, "not_found", "job not found")
		case errors.Is(err, orchestrator.ErrTerminal):
			httpError(w, http.StatusConflict, "conflict", "job already in a terminal state")
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "failed to cancel job: %v", err)
		default:
			writeJSON(w, http.StatusOK, map[string]string{"status": string(orchestrator.StatusCancelled)})
		}
	}
}

// handleCallCompletion is the callback the call-execution service posts to
// when a call ends. It always acknowledges with 202: a signal for an unknown
// or already-settled job is a no-op, never an error the caller should retry.
func handleCallCompletion(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var session telephony.SessionData
		if err := json.NewDecoder(r.Body).Decode(&session); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		deps.Orchestrator.NotifyCallComplete(chi.URLParam(r, "id"), session)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
