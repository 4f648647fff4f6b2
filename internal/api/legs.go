package api

import (
	"encoding/json"
	"net/http"

	"github.com/kalambet/ivrmap/internal/ledger"
)

func handleListLegs(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := ledger.Status(r.URL.Query().Get("status"))
		path := r.URL.Query().Get("path")

		legs := ledger.Filter(deps.Ledger.Load(), status, path)
		writeJSON(w, http.StatusOK, legs)
	}
}

// handleUpsertLeg lets the call-execution service (or an operator) write a
// leg directly. Writes key on legNumber, so re-posting a leg replaces it.
func handleUpsertLeg(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var leg ledger.Leg
		if err := json.NewDecoder(r.Body).Decode(&leg); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		if leg.LegNumber <= 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "legNumber must be positive")
			return
		}
		if leg.Path == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "path is required")
			return
		}
		switch leg.Status {
		case ledger.StatusCompleted, ledger.StatusInProgress, ledger.StatusFailed:
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "status must be one of COMPLETED, IN_PROGRESS, FAILED")
			return
		}

		if err := deps.Ledger.Upsert(leg); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to store leg: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "stored"})
	}
}
