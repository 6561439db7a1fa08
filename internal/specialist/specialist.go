// Package specialist holds the clients for the three analysis
// collaborators: chest imaging, bio-acoustic lung-sound classification,
// and clinical-history extraction. Each client validates the
// collaborator's response into an explicit result type at the boundary;
// nothing downstream branches on loose maps.
package specialist

import (
	"context"
	"errors"

	"consensusboard/apimodels"
)

// ErrTransport marks failures of the wire itself: connection errors,
// timeouts, non-2xx statuses. The dispatcher retries these with backoff.
// Application-level defects (unparseable payloads) are never wrapped in
// it and fail fast to the degraded-report path.
var ErrTransport = errors.New("specialist transport failure")

// Input carries everything a specialist may need for one case run.
// Artifact paths are resolved by the dispatcher beforehand; an empty
// path means the artifact is absent and the specialist is not invoked.
type Input struct {
	CaseID       string
	ClinicalNote string
	ImagePath    string
	AudioPath    string

	// ModelOverride swaps the configured model for chat-backed calls.
	ModelOverride string
}

// Specialist produces one agent report for a case. Implementations
// return an error only when nothing usable came back; the dispatcher
// converts that into a zero-confidence failed report.
type Specialist interface {
	Name() string
	Model() string
	Report(ctx context.Context, in Input) (apimodels.AgentReport, error)
}

func transient(err error) error {
	return errors.Join(ErrTransport, err)
}

// reportShell pre-fills the fields every report shares.
func reportShell(name, model string) apimodels.AgentReport {
	return apimodels.AgentReport{
		AgentName: name,
		Model:     model,
	}
}

// flagsFrom folds raw quality-flag rows into the structured set.
func flagsFrom(rows []rawFlag) []apimodels.QualityFlag {
	var out []apimodels.QualityFlag
	for _, f := range rows {
		if f.Type == "" {
			continue
		}
		out = append(out, apimodels.QualityFlag{
			Type:     f.Type,
			Severity: f.Severity,
			Detail:   f.Detail,
		})
	}
	return out
}

type rawFlag struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}
