package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/automation"
	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/link"
)

// generateLinksRequest is the request body for POST /automations/{id}/links.
type generateLinksRequest struct {
	Kind  string `json:"kind"`
	Embed bool   `json:"embed"`
}

// handleGenerateLinks produces the sharable link artifacts for an automation:
// app link, universal link, web fallback link, and the QR/tag payload.
func (s *Server) handleGenerateLinks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid automation ID")
		return
	}

	var req generateLinksRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}
	kind := link.Kind(req.Kind)
	if req.Kind == "" {
		kind = link.KindAutomation
	}
	if !link.ValidKind(kind) {
		writeBadRequest(w, "invalid link kind")
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

	artifacts, err := s.generator.Generate(a, kind, req.Embed)
	if err != nil {
		if errors.Is(err, link.ErrPayloadTooLarge) {
			writeBadRequest(w, "embedded payload exceeds tag capacity; disable embedding or trim steps")
			return
		}
		writeInternalError(w, "failed to generate links")
		return
	}

	writeJSON(w, http.StatusOK, artifacts)
}
