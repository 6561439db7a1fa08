package adjudicate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"consensusboard/apimodels"
	"consensusboard/internal/jsonish"
	"consensusboard/internal/llm"
	"consensusboard/internal/normalize"
)

const moderatorSystemPrompt = `You are the senior medical moderator of a multi-agent consensus board.
You review reports from a radiologist (imaging), an acoustician (lung sounds),
and a historian (clinical note extraction) and judge whether the objective
signals and the patient history disagree.

Pay particular attention to 'stable' imaging combined with worsening symptoms
from the other modalities.

Output JSON only, with exactly these fields:
{
  "score": 0.0 to 1.0 (0 = perfect agreement, 1 = critical conflict),
  "reasoning": "step-by-step analysis of the conflicts",
  "recommendation": "one sentence of recommended next steps for the doctor"
}`

// Delegated asks a reasoning collaborator for the verdict and runs its
// free-text reply through the resilient parser. Any failure along the
// way degrades to the conservative manual-review default; clinical
// tooling never crashes and never asserts confidence it does not have.
type Delegated struct {
	provider llm.Provider
	model    string
}

func NewDelegated(provider llm.Provider, model string) *Delegated {
	return &Delegated{provider: provider, model: model}
}

func (d *Delegated) Adjudicate(ctx context.Context, imaging, acoustics, history apimodels.AgentReport) Verdict {
	prompt := moderatorPrompt(imaging, acoustics, history)

	resp, err := d.provider.Chat(ctx, moderatorSystemPrompt, prompt, llm.WithModel(d.model))
	if err != nil {
		slog.Warn("moderator unreachable, using safe default verdict", "error", err)
		return safeDefault("reasoning collaborator unreachable")
	}

	obj := jsonish.Parse(resp.Content)
	if obj == nil {
		slog.Warn("moderator output unusable, using safe default verdict")
		return safeDefault("reasoning collaborator returned no parseable verdict")
	}

	score, ok := moderatorScore(obj)
	if !ok {
		slog.Warn("moderator verdict carried no score, using safe default verdict")
		return safeDefault("reasoning collaborator verdict carried no score")
	}

	level := ScoreToLevel(score)
	reasoning := moderatorReasoning(obj)
	if len(reasoning) == 0 {
		reasoning = []string{fmt.Sprintf("Moderator assessed discrepancy score %.2f without detailed reasoning.", score)}
	}
	reasoning = append(reasoning, fmt.Sprintf("Moderator discrepancy score=%.2f => level=%s", score, level))

	recommendation, _ := obj["recommendation"].(string)
	summary, _ := obj["summary"].(string)
	if summary == "" {
		summary = delegatedSummary(level)
	}

	return Verdict{
		Score:   score,
		Level:   level,
		Summary: summary,
		// The cross-modal conflict check is cheap and local; running it
		// here keeps the contradictions list honest even when the
		// moderator forgets to name the conflict.
		Contradictions: contradictionLines(imaging, acoustics, history),
		Reasoning:      reasoning,
		Recommendation: recommendation,
	}
}

// moderatorPrompt summarizes each specialist's top claim and confidence.
// Degraded reports are named as unavailable rather than silently
// omitted.
func moderatorPrompt(imaging, acoustics, history apimodels.AgentReport) string {
	var b strings.Builder
	b.WriteString("Agent reports:\n")
	for _, r := range []apimodels.AgentReport{imaging, acoustics, history} {
		if top, ok := r.TopClaim(); ok {
			fmt.Fprintf(&b, "- %s: Claim '%s' (Conf: %.2f)\n", strings.ToUpper(r.AgentName), top.Value, top.Confidence)
		} else {
			fmt.Fprintf(&b, "- %s: no usable signal; treat as unknown, not as normal\n", strings.ToUpper(r.AgentName))
		}
	}
	b.WriteString("\nAnalyze for contradictions, specifically 'stable' imaging versus worsening signals elsewhere.")
	return b.String()
}

func moderatorScore(obj map[string]any) (float64, bool) {
	for _, key := range []string{"score", "discrepancy_score"} {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case float64:
			return normalize.Clamp(v), true
		case string:
			return normalize.Confidence(v), true
		}
	}
	return 0, false
}

func moderatorReasoning(obj map[string]any) []string {
	switch v := obj["reasoning"].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}

func delegatedSummary(level string) string {
	switch level {
	case apimodels.LevelHigh, apimodels.LevelMedium:
		return "Cross-modal non-concordance detected. Manual clinician review recommended."
	default:
		return "No strong cross-modal discrepancy detected."
	}
}

// safeDefault is the contained-failure verdict: conservative uncertainty
// rather than a crash or false confidence.
func safeDefault(cause string) Verdict {
	const score = 0.5
	return Verdict{
		Score:   score,
		Level:   ScoreToLevel(score),
		Summary: "Manual review required: the automated moderator could not produce a verdict.",
		Reasoning: []string{
			fmt.Sprintf("Automated adjudication degraded: %s.", cause),
			"Defaulting to a conservative mid-range discrepancy score pending manual review.",
		},
		Recommendation: "Manual clinician review required.",
	}
}
