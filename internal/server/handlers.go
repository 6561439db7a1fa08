package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"consensusboard/apimodels"
)

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCase(w, r)
	if !ok {
		return
	}

	result := s.board.Run(r.Context(), req)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		slog.Error("encoding response failed", "case_id", req.CaseID, "error", err)
	}
}

// handleRunStream delivers the run as server-sent events: one
// JSON-encoded message per event, with the full output on the single
// final event.
func (s *Server) handleRunStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCase(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for ev := range s.board.RunStream(r.Context(), req) {
		payload, err := json.Marshal(ev)
		if err != nil {
			slog.Error("encoding event failed", "case_id", req.CaseID, "error", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			slog.Warn("stream consumer went away", "case_id", req.CaseID, "error", err)
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// decodeCase parses and validates the inbound request. Malformed input
// is the one failure class surfaced as a hard client error, before any
// specialist is invoked.
func (s *Server) decodeCase(w http.ResponseWriter, r *http.Request) (apimodels.CaseRequest, bool) {
	var req apimodels.CaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return apimodels.CaseRequest{}, false
	}
	defer r.Body.Close()

	if err := req.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return apimodels.CaseRequest{}, false
	}

	slog.Debug("received case request", "case_id", req.CaseID)
	return req, true
}
