package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/automation"
)

// maxQueryParamLen limits query parameter length to prevent DoS via oversized URL params.
const maxQueryParamLen = 100

// handleListAutomations returns all automations, optionally filtered by category.
func (s *Server) handleListAutomations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if category := r.URL.Query().Get("category"); category != "" {
		if len(category) > maxQueryParamLen {
			writeBadRequest(w, "category exceeds maximum length")
			return
		}
		cat := automation.Category(category)
		valid := false
		for _, c := range automation.AllCategories() {
			if c == cat {
				valid = true
				break
			}
		}
		if !valid {
			writeBadRequest(w, "invalid category")
			return
		}
		automations, err := s.registry.ListByCategory(ctx, cat)
		if err != nil {
			writeInternalError(w, "failed to list automations")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"automations": automations, "count": len(automations)})
		return
	}

	automations, err := s.registry.List(ctx)
	if err != nil {
		writeInternalError(w, "failed to list automations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"automations": automations, "count": len(automations)})
}

// handleGetAutomation returns a single automation by ID.
func (s *Server) handleGetAutomation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid automation ID")
		return
	}

	a, err := s.registry.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, automation.ErrNotFound) {
			writeNotFound(w, "automation not found")
			return
		}
		writeInternalError(w, "failed to get automation")
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// handleCreateAutomation creates a new automation.
func (s *Server) handleCreateAutomation(w http.ResponseWriter, r *http.Request) {
	var a automation.AutomationSummary
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.registry.Create(r.Context(), &a); err != nil {
		if isValidationErr(err) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		if errors.Is(err, automation.ErrExists) {
			writeConflict(w, err.Error())
			return
		}
		writeInternalError(w, "failed to create automation")
		return
	}

	writeJSON(w, http.StatusCreated, a)
}

// handleUpdateAutomation replaces an automation.
func (s *Server) handleUpdateAutomation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid automation ID")
		return
	}

	var a automation.AutomationSummary
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	a.ID = id // Ensure ID cannot be changed

	if err := s.registry.Update(r.Context(), &a); err != nil {
		if isValidationErr(err) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		if errors.Is(err, automation.ErrNotFound) {
			writeNotFound(w, "automation not found")
			return
		}
		writeInternalError(w, "failed to update automation")
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// handleDeleteAutomation removes an automation by ID.
func (s *Server) handleDeleteAutomation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid automation ID")
		return
	}

	if err := s.registry.Delete(r.Context(), id); err != nil {
		if errors.Is(err, automation.ErrNotFound) {
			writeNotFound(w, "automation not found")
			return
		}
		writeInternalError(w, "failed to delete automation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// isValidationErr reports whether err is any of the automation validation errors.
func isValidationErr(err error) bool {
	return errors.Is(err, automation.ErrInvalid) ||
		errors.Is(err, automation.ErrMalformedID) ||
		errors.Is(err, automation.ErrInvalidTitle) ||
		errors.Is(err, automation.ErrInvalidStep) ||
		errors.Is(err, automation.ErrNoSteps)
}
