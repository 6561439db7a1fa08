package apimodels

// Agent names form a closed set; every run produces exactly one report
// per agent.
const (
	AgentImaging   = "imaging"
	AgentAcoustics = "acoustics"
	AgentHistory   = "history"
)

// AgentNames in canonical report order.
var AgentNames = []string{AgentImaging, AgentAcoustics, AgentHistory}

// Evidence reference types.
const (
	EvidenceMetric       = "metric"
	EvidenceNoteSpan     = "note_span"
	EvidenceAudioSegment = "audio_segment"
	EvidenceImageRef     = "image_ref"
	EvidenceText         = "text"
	EvidenceEmbedding    = "vector_embedding"
)

// EvidenceRef points at the data backing a claim, e.g. a note span or an
// audio segment.
type EvidenceRef struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Value any    `json:"value,omitempty"`
}

// Claim is one labeled, confidence-scored assertion from a specialist.
// Confidence is clamped to [0,1] at construction and never trusted from
// upstream. Claims are immutable after creation.
type Claim struct {
	Label      string        `json:"label"`
	Value      string        `json:"value"`
	Confidence float64       `json:"confidence"`
	Evidence   []EvidenceRef `json:"evidence,omitempty"`
}

// Quality flag severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// QualityFlag is a structured warning about input data quality (audio
// noise, truncated note), distinct from a clinical finding.
type QualityFlag struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Detail   string `json:"detail,omitempty"`
}

// AgentReport is one specialist's full output for a case run. A report
// with zero claims, or only zero-confidence claims, means the specialist
// produced no usable signal; downstream code must treat that as missing
// evidence, never as an assertion of normality.
type AgentReport struct {
	AgentName     string        `json:"agent_name"`
	Model         string        `json:"model"`
	Claims        []Claim       `json:"claims"`
	QualityFlags  []QualityFlag `json:"quality_flags,omitempty"`
	Uncertainties []string      `json:"uncertainties,omitempty"`
	RequestedData []string      `json:"requested_data,omitempty"`
}

// Usable reports whether the report carries at least one claim with
// positive confidence.
func (r AgentReport) Usable() bool {
	for _, c := range r.Claims {
		if c.Confidence > 0 {
			return true
		}
	}
	return false
}

// TopClaim returns the highest-confidence claim, or false when the
// report carries no usable signal.
func (r AgentReport) TopClaim() (Claim, bool) {
	var best Claim
	found := false
	for _, c := range r.Claims {
		if c.Confidence > 0 && (!found || c.Confidence > best.Confidence) {
			best = c
			found = true
		}
	}
	return best, found
}
