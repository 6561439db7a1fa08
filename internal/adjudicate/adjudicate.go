// Package adjudicate combines the three normalized specialist reports
// into one discrepancy verdict. Two interchangeable strategies honor the
// same contract: a deterministic rule engine that never touches the
// network, and a delegated mode that asks a reasoning collaborator and
// degrades to a conservative default when that collaborator misbehaves.
package adjudicate

import (
	"context"
	"fmt"
	"strings"

	"consensusboard/apimodels"
)

// Score-to-level threshold ladder, the single table used everywhere.
// "none" is reachable only from the deterministic engine at exactly 0.
const (
	highThreshold   = 0.70
	mediumThreshold = 0.40
)

// Verdict is the adjudication result. Reasoning is always non-empty,
// even on total-failure paths.
type Verdict struct {
	Score          float64
	Level          string
	Summary        string
	Reasoning      []string
	Contradictions []string
	Recommendation string
}

// Adjudicator combines the three reports. Implementations contain their
// own failures; Adjudicate never returns an error.
type Adjudicator interface {
	Adjudicate(ctx context.Context, imaging, acoustics, history apimodels.AgentReport) Verdict
}

// ScoreToLevel maps a score onto the fixed ladder.
func ScoreToLevel(score float64) string {
	switch {
	case score >= highThreshold:
		return apimodels.LevelHigh
	case score >= mediumThreshold:
		return apimodels.LevelMedium
	case score > 0:
		return apimodels.LevelLow
	default:
		return apimodels.LevelNone
	}
}

// usableValue returns the value of the report's claim with the given
// label, provided it carries positive confidence. Zero-confidence claims
// are the upstream's way of saying "disregard this" and never count.
func usableValue(r apimodels.AgentReport, label string) (string, bool) {
	for _, c := range r.Claims {
		if c.Label == label && c.Confidence > 0 {
			return c.Value, true
		}
	}
	return "", false
}

// worseningSignals counts independent deterioration signals across the
// acoustics and history modalities. Unknown modalities contribute
// nothing: missing evidence is not negative evidence.
func worseningSignals(acoustics, history apimodels.AgentReport) (int, []string) {
	n := 0
	var names []string
	if v, ok := usableValue(acoustics, "resp_abnormal"); ok && (v == "present_new" || v == "present_worse") {
		n++
		names = append(names, fmt.Sprintf("new or worsened respiratory sounds (%s)", v))
	}
	for _, label := range []string{"weight_loss", "active_symptom"} {
		if v, ok := usableValue(history, label); ok {
			n++
			names = append(names, fmt.Sprintf("clinical history signal: %s", v))
			break
		}
	}
	return n, names
}

// contradictionLines detects the central cross-modal conflict this
// system exists to surface: imaging claiming stability while the other
// modalities carry deterioration signals.
func contradictionLines(imaging, acoustics, history apimodels.AgentReport) []string {
	stability, ok := usableValue(imaging, "imaging_stability")
	if !ok || stability != "stable" {
		return nil
	}
	n, names := worseningSignals(acoustics, history)
	if n == 0 {
		return nil
	}
	return []string{fmt.Sprintf(
		"Imaging suggests stability while other modalities indicate deterioration signals (%s).",
		strings.Join(names, "; "))}
}

// modalityLine renders one specialist's contribution for the reasoning
// trace, naming degraded input explicitly instead of averaging it away.
func modalityLine(title string, r apimodels.AgentReport) string {
	if top, ok := r.TopClaim(); ok {
		return fmt.Sprintf("%s: %s (confidence %.2f)", title, top.Value, top.Confidence)
	}
	if len(r.Claims) > 0 {
		return fmt.Sprintf("%s: no usable signal (%s)", title, r.Claims[0].Value)
	}
	return fmt.Sprintf("%s: no usable signal (specialist returned nothing)", title)
}
