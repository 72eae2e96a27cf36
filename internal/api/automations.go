package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/automation-creator/internal/audit"
	"github.com/nerrad567/automation-creator/internal/automation"
)

// maxListLimit mirrors the repository's upper bound on list size.
const maxListLimit = 100

// handleListAutomations returns recently generated automations, newest first.
// Query: ?limit=N (1-100, default 20).
func (s *Server) handleListAutomations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			writeBadRequest(w, "limit must be an integer between 1 and 100")
			return
		}
		limit = n
	}

	records, err := s.automations.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list automations", "error", err)
		writeInternalError(w, "failed to list automations")
		return
	}
	if records == nil {
		records = []automation.Record{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"automations": records,
		"count":       len(records),
	})
}

// handleLatestAutomation returns the most recently generated automation.
func (s *Server) handleLatestAutomation(w http.ResponseWriter, r *http.Request) {
	rec, err := s.automations.Latest(r.Context())
	if err != nil {
		s.writeAutomationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleGetAutomation returns one generated automation by ID.
func (s *Server) handleGetAutomation(w http.ResponseWriter, r *http.Request) {
	rec, err := s.automations.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeAutomationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleDeleteAutomation removes a history record. The automation itself
// stays in the automations file.
func (s *Server) handleDeleteAutomation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.automations.Delete(r.Context(), id); err != nil {
		s.writeAutomationError(w, err)
		return
	}
	s.auditLog(r, audit.ActionAutomationDelete, audit.EntityAutomation, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeAutomationError(w http.ResponseWriter, err error) {
	if errors.Is(err, automation.ErrNotFound) {
		writeNotFound(w, "automation not found")
		return
	}
	s.logger.Error("automation history query failed", "error", err)
	writeInternalError(w, "internal server error")
}
