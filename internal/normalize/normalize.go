// Package normalize converts raw, possibly malformed specialist output
// into well-formed reports. It is pure: no network or disk I/O, and
// running it over its own output is a no-op.
package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"consensusboard/apimodels"
)

// Entries whose content is shorter than this after tag stripping are
// discarded as noise.
const minContentLen = 3

// The fixed category vocabulary the history specialist is constrained to.
var tagRe = regexp.MustCompile(`^\s*\[(ACTIVE|BASELINE|RISK|NEGATION)\]`)

// TagLabels maps a category tag to the claim label it produces.
var TagLabels = map[string]string{
	"ACTIVE":   "active_symptom",
	"BASELINE": "baseline",
	"RISK":     "risk_factor",
	"NEGATION": "negated",
}

// Clamp forces v into [0,1]. NaN clamps to 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// Confidence parses a confidence value of unknown upstream type and
// clamps it. Any parse failure defaults to 0, never to a positive
// value: a zero-confidence claim tells the adjudicator to disregard the
// signal.
func Confidence(raw any) float64 {
	switch v := raw.(type) {
	case nil:
		return 0
	case float64:
		return Clamp(v)
	case float32:
		return Clamp(float64(v))
	case int:
		return Clamp(float64(v))
	case int64:
		return Clamp(float64(v))
	case string:
		s := strings.TrimSuffix(strings.TrimSpace(v), "%")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		if strings.HasSuffix(strings.TrimSpace(v), "%") {
			f /= 100
		}
		return Clamp(f)
	default:
		return 0
	}
}

// CollapseTags strips accidentally repeated leading category tags down
// to a single occurrence: "[RISK][RISK] smoking" becomes
// "[RISK] smoking".
func CollapseTags(s string) string {
	var tags []string
	rest := s
	for {
		m := tagRe.FindStringSubmatch(rest)
		if m == nil {
			break
		}
		if len(tags) == 0 || tags[len(tags)-1] != m[1] {
			tags = append(tags, m[1])
		}
		rest = rest[len(m[0]):]
	}
	if len(tags) == 0 {
		return strings.TrimSpace(s)
	}
	var b strings.Builder
	for _, t := range tags {
		b.WriteString("[" + t + "]")
	}
	b.WriteString(" " + strings.TrimSpace(rest))
	return strings.TrimSpace(b.String())
}

// LeadingTag returns the first category tag on an entry and the entry
// content with every leading tag removed.
func LeadingTag(s string) (tag, content string) {
	rest := s
	for {
		m := tagRe.FindStringSubmatch(rest)
		if m == nil {
			break
		}
		if tag == "" {
			tag = m[1]
		}
		rest = rest[len(m[0]):]
	}
	return tag, strings.TrimSpace(rest)
}

// Finding builds a claim from one specialist assertion. Returns false
// when the entry is too short to carry meaning after tag stripping.
func Finding(label, value string, rawConf any, evidence ...apimodels.EvidenceRef) (apimodels.Claim, bool) {
	value = CollapseTags(value)
	_, content := LeadingTag(value)
	if len(content) < minContentLen {
		return apimodels.Claim{}, false
	}
	return apimodels.Claim{
		Label:      label,
		Value:      value,
		Confidence: Confidence(rawConf),
		Evidence:   evidence,
	}, true
}

// FailedReport synthesizes the report for a specialist that produced
// nothing usable: a single error-labeled claim at confidence 0 carrying
// the failure description. This outcome is distinct from "all findings
// normal" and stays distinguishable downstream.
func FailedReport(agentName, model, reason string) apimodels.AgentReport {
	return apimodels.AgentReport{
		AgentName: agentName,
		Model:     model,
		Claims: []apimodels.Claim{{
			Label:      "error",
			Value:      reason,
			Confidence: 0,
		}},
		Uncertainties: []string{fmt.Sprintf("%s specialist produced no usable signal", agentName)},
	}
}

// Report normalizes a full agent report in place of trusting upstream:
// confidences are clamped, repeated tags collapsed, noise entries
// dropped, and quality-flag severities folded into the known set.
// Idempotent.
func Report(r apimodels.AgentReport) apimodels.AgentReport {
	out := apimodels.AgentReport{
		AgentName:     r.AgentName,
		Model:         r.Model,
		Uncertainties: r.Uncertainties,
		RequestedData: r.RequestedData,
	}
	for _, c := range r.Claims {
		if c.Label == "error" {
			// failure markers pass through untouched apart from the clamp
			out.Claims = append(out.Claims, apimodels.Claim{
				Label:      c.Label,
				Value:      c.Value,
				Confidence: Clamp(c.Confidence),
				Evidence:   c.Evidence,
			})
			continue
		}
		nc, ok := Finding(c.Label, c.Value, c.Confidence, c.Evidence...)
		if !ok {
			continue
		}
		out.Claims = append(out.Claims, nc)
	}
	for _, q := range r.QualityFlags {
		out.QualityFlags = append(out.QualityFlags, apimodels.QualityFlag{
			Type:     q.Type,
			Severity: severity(q.Severity),
			Detail:   q.Detail,
		})
	}
	return out
}

func severity(s string) string {
	switch s {
	case apimodels.SeverityLow, apimodels.SeverityMedium, apimodels.SeverityHigh:
		return s
	default:
		return apimodels.SeverityLow
	}
}
