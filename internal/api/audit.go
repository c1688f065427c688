package api

import (
	"net/http"
	"strconv"
)

// maxAuditLimit caps the audit page size a client can request.
const maxAuditLimit = 500

// handleListAudit returns the dispatch audit trail, newest first.
//
// Query parameters:
//   - limit: maximum entries to return (default 100, max 500)
//   - automation_id: filter to dispatches of one automation
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeNotFound(w, "audit trail not enabled")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeBadRequest(w, "invalid limit")
			return
		}
		if parsed > maxAuditLimit {
			parsed = maxAuditLimit
		}
		limit = parsed
	}

	if automationID := r.URL.Query().Get("automation_id"); automationID != "" {
		if len(automationID) > maxQueryParamLen {
			writeBadRequest(w, "automation_id exceeds maximum length")
			return
		}
		entries, err := s.auditRepo.ListByAutomation(r.Context(), automationID, limit)
		if err != nil {
			writeInternalError(w, "failed to list audit entries")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
		return
	}

	entries, err := s.auditRepo.List(r.Context(), limit)
	if err != nil {
		writeInternalError(w, "failed to list audit entries")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}
