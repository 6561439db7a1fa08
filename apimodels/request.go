package apimodels

import (
	"fmt"
	"strings"
)

// CaseRequest is the inbound adjudication request. Image and audio
// artifacts are uploaded ahead of time under the case directory and are
// never carried in this payload.
type CaseRequest struct {
	CaseID           string `json:"case_id"`
	ClinicalNoteText string `json:"clinical_note_text"`

	// Optional parameters to control adjudication behavior
	Options CaseOptions `json:"options,omitempty"`
}

type CaseOptions struct {
	// Model overrides the configured model for chat-backed calls
	Model string `json:"model,omitempty"`

	// Adjudicator selects "deterministic" or "delegated"; empty uses
	// the server default.
	Adjudicator string `json:"adjudicator,omitempty"`
}

// Validate rejects malformed requests before any specialist is invoked.
func (r CaseRequest) Validate() error {
	id := strings.TrimSpace(r.CaseID)
	if id == "" {
		return fmt.Errorf("case_id is required")
	}
	// case_id keys an artifact directory, so it must not traverse paths
	if strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return fmt.Errorf("case_id %q contains path characters", r.CaseID)
	}
	switch r.Options.Adjudicator {
	case "", "deterministic", "delegated":
	default:
		return fmt.Errorf("unknown adjudicator %q", r.Options.Adjudicator)
	}
	return nil
}
