package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/dispatch"
)

// dispatchRequest is the request body for POST /dispatch.
type dispatchRequest struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

// confirmRequest is the request body for POST /dispatch/confirm and /decline.
type confirmRequest struct {
	DispatchID string `json:"dispatch_id"`
}

// handleDispatch submits a raw link for classification and dispatch.
//
// The call is synchronous: by the time it returns, the dispatch has
// either run to a terminal state or parked at confirming. A second
// submission while one is active is queued and answered with 202.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.URL == "" {
		writeBadRequest(w, "url is required")
		return
	}
	source := req.Source
	if source == "" {
		source = "api"
	}

	d, err := s.dispatcher.Submit(r.Context(), req.URL, source)
	if err != nil {
		if errors.Is(err, dispatch.ErrQueued) {
			writeJSON(w, http.StatusAccepted, map[string]any{
				"queued":      true,
				"queue_depth": s.dispatcher.QueueDepth(),
			})
			return
		}
		writeInternalError(w, "failed to dispatch")
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// handleDispatchConfirm accepts the parked confirmation and runs the dispatch.
func (s *Server) handleDispatchConfirm(w http.ResponseWriter, r *http.Request) {
	id, ok := s.decodeConfirm(w, r)
	if !ok {
		return
	}

	d, err := s.dispatcher.Accept(r.Context(), id)
	if err != nil {
		s.writeConfirmError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleDispatchDecline declines the parked confirmation without running anything.
func (s *Server) handleDispatchDecline(w http.ResponseWriter, r *http.Request) {
	id, ok := s.decodeConfirm(w, r)
	if !ok {
		return
	}

	d, err := s.dispatcher.Decline(r.Context(), id)
	if err != nil {
		s.writeConfirmError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleDispatchActive returns the currently active dispatch, if any.
func (s *Server) handleDispatchActive(w http.ResponseWriter, _ *http.Request) {
	d := s.dispatcher.Active()
	if d == nil {
		writeNotFound(w, "no active dispatch")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// decodeConfirm extracts the dispatch ID from a confirm/decline body.
// An empty ID is allowed: it targets whatever dispatch is confirming.
func (s *Server) decodeConfirm(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req confirmRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return "", false
		}
	}
	return req.DispatchID, true
}

// writeConfirmError maps confirmation errors to HTTP responses.
func (s *Server) writeConfirmError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dispatch.ErrNoActiveDispatch):
		writeConflict(w, "no dispatch is awaiting confirmation")
	case errors.Is(err, dispatch.ErrWrongDispatch):
		writeConflict(w, "dispatch ID does not match the awaiting confirmation")
	default:
		writeInternalError(w, "failed to update dispatch")
	}
}
