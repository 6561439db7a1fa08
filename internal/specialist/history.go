package specialist

import (
	"context"
	"fmt"
	"strings"

	"consensusboard/apimodels"
	"consensusboard/internal/jsonish"
	"consensusboard/internal/llm"
	"consensusboard/internal/normalize"
)

const historySystemPrompt = `You are a clinical-history extraction agent.
Extract the clinically relevant findings from the patient note below.

Rules:
- Return a JSON array of findings, nothing else.
- Prefix every finding with exactly one category tag:
  [ACTIVE]   a current or new symptom (e.g. "[ACTIVE] unintentional weight loss 4kg/2mo")
  [BASELINE] a stable chronic condition
  [RISK]     a risk factor (e.g. "[RISK] 30 pack-year smoking history")
  [NEGATION] an explicitly denied symptom (e.g. "[NEGATION] denies fever")
- Each entry may be a plain tagged string, or an object with
  "finding" and "confidence" (0.0-1.0) fields.
- Do not invent findings that are not in the note.`

// History extracts structured findings from the free-text clinical note
// through a chat collaborator constrained to the fixed tag vocabulary.
type History struct {
	provider llm.Provider
	model    string
}

func NewHistory(provider llm.Provider, model string) *History {
	return &History{provider: provider, model: model}
}

func (s *History) Name() string  { return apimodels.AgentHistory }
func (s *History) Model() string { return s.model }

func (s *History) Report(ctx context.Context, in Input) (apimodels.AgentReport, error) {
	resp, err := s.provider.Chat(ctx, historySystemPrompt, in.ClinicalNote, llm.WithModel(in.ModelOverride))
	if err != nil {
		return apimodels.AgentReport{}, transient(err)
	}

	claims := extractionClaims(resp.Content)
	if len(claims) == 0 {
		// No usable extraction is reported as exactly that. It must
		// never default to a confident "healthy" claim: absence of
		// extracted findings is missing evidence, not a clean bill.
		return apimodels.AgentReport{}, fmt.Errorf("history extraction produced no usable findings")
	}

	report := reportShell(s.Name(), s.Model())
	report.Claims = claims
	return report, nil
}

// extractionClaims normalizes the model's JSON-shaped reply, which may
// be an array of tagged strings, an array of objects, or an object
// wrapping such an array under "findings".
func extractionClaims(content string) []apimodels.Claim {
	items := jsonish.ParseArray(content)
	if items == nil {
		if obj := jsonish.Parse(content); obj != nil {
			if raw, ok := obj["findings"].([]any); ok {
				items = raw
			}
		}
	}

	var claims []apimodels.Claim
	for _, item := range items {
		var value string
		var conf any = 0.75 // tagged string entries carry no confidence of their own
		switch v := item.(type) {
		case string:
			value = v
		case map[string]any:
			value, _ = v["finding"].(string)
			if value == "" {
				value, _ = v["value"].(string)
			}
			if c, ok := v["confidence"]; ok {
				conf = c
			}
		default:
			continue
		}

		value = normalize.CollapseTags(value)
		tag, content := normalize.LeadingTag(value)
		label := historyLabel(tag, content)
		claim, ok := normalize.Finding(label, value, conf,
			apimodels.EvidenceRef{Type: apimodels.EvidenceNoteSpan, ID: "clinical_note"})
		if !ok {
			continue
		}
		claims = append(claims, claim)
	}
	return claims
}

// historyLabel maps a category tag to the claim label. Weight-loss
// findings get their own label: they are the deterioration signal the
// adjudicator's stability-vs-worsening rule keys on.
func historyLabel(tag, content string) string {
	if tag != "NEGATION" && strings.Contains(strings.ToLower(content), "weight loss") {
		return "weight_loss"
	}
	if label, ok := normalize.TagLabels[tag]; ok {
		return label
	}
	return "finding"
}
