package adjudicate

import (
	"context"
	"fmt"

	"consensusboard/apimodels"
	"consensusboard/internal/normalize"
)

// Rule weights for the deterministic engine.
const (
	contradictionWeight = 0.35
	coWorseningWeight   = 0.20
	confidenceBonus     = 0.15
	qualityPenalty      = 0.20

	highConfidence = 0.80
)

// Deterministic is the rule-based adjudicator. It performs no I/O and is
// always available as the fallback mode.
type Deterministic struct{}

func (Deterministic) Adjudicate(_ context.Context, imaging, acoustics, history apimodels.AgentReport) Verdict {
	reports := []apimodels.AgentReport{imaging, acoustics, history}

	score := 0.0
	contradictions := contradictionLines(imaging, acoustics, history)
	if len(contradictions) > 0 {
		score += contradictionWeight
	}

	worsening, _ := worseningSignals(acoustics, history)
	if worsening >= 2 {
		score += coWorseningWeight
	}

	// Confidence bonus: at least two reports each carry a
	// high-confidence claim.
	highConf := 0
	for _, r := range reports {
		for _, c := range r.Claims {
			if c.Confidence >= highConfidence {
				highConf++
				break
			}
		}
	}
	if highConf >= 2 {
		score += confidenceBonus
	}

	severe := 0
	for _, r := range reports {
		for _, q := range r.QualityFlags {
			if q.Severity == apimodels.SeverityHigh {
				severe++
			}
		}
	}
	score -= qualityPenalty * float64(severe)

	score = normalize.Clamp(score)
	level := ScoreToLevel(score)

	reasoning := []string{
		modalityLine("Imaging", imaging),
		modalityLine("Acoustics", acoustics),
		modalityLine("History", history),
	}
	if severe > 0 {
		reasoning = append(reasoning, fmt.Sprintf("Applied quality penalty for %d high-severity data-quality flag(s).", severe))
	}
	reasoning = append(reasoning, fmt.Sprintf("Computed discrepancy score=%.2f => level=%s", score, level))

	return Verdict{
		Score:          score,
		Level:          level,
		Summary:        deterministicSummary(level, reports),
		Reasoning:      reasoning,
		Contradictions: contradictions,
		Recommendation: deterministicRecommendation(level),
	}
}

func deterministicSummary(level string, reports []apimodels.AgentReport) string {
	var s string
	switch level {
	case apimodels.LevelHigh, apimodels.LevelMedium:
		s = "Cross-modal non-concordance detected. Manual clinician review recommended."
	default:
		s = "No strong cross-modal discrepancy detected."
	}
	degraded := 0
	for _, r := range reports {
		if !r.Usable() {
			degraded++
		}
	}
	if degraded > 0 {
		s += fmt.Sprintf(" %d of 3 specialist inputs were unavailable and treated as unknown.", degraded)
	}
	return s
}

func deterministicRecommendation(level string) string {
	switch level {
	case apimodels.LevelHigh:
		return "Escalate for same-day clinician review of the conflicting findings."
	case apimodels.LevelMedium:
		return "Schedule clinician review to reconcile the conflicting findings."
	default:
		return ""
	}
}
