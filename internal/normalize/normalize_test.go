package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consensusboard/apimodels"
)

func TestConfidenceClampsEverything(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want float64
	}{
		{"negative", -5.0, 0},
		{"above one", 1.7, 1},
		{"nan string", "NaN", 0},
		{"nil", nil, 0},
		{"garbage string", "very confident", 0},
		{"numeric string", "0.8", 0.8},
		{"percent string", "85%", 0.85},
		{"int", 1, 1},
		{"in range", 0.42, 0.42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Confidence(tt.raw)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestCollapseTags(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"[RISK][RISK] smoking history", "[RISK] smoking history"},
		{"[RISK] [RISK] smoking history", "[RISK] smoking history"},
		{"[ACTIVE] new cough", "[ACTIVE] new cough"},
		{"no tags here", "no tags here"},
		{"[NEGATION][NEGATION][NEGATION] denies fever", "[NEGATION] denies fever"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CollapseTags(tt.in))
	}
}

func TestFindingDiscardsNoise(t *testing.T) {
	_, ok := Finding("risk_factor", "[RISK] ab", 0.9)
	assert.False(t, ok, "entry shorter than the minimum after tag stripping should be dropped")

	claim, ok := Finding("risk_factor", "[RISK][RISK] smoking", 0.9)
	require.True(t, ok)
	assert.Equal(t, "[RISK] smoking", claim.Value)
	assert.Equal(t, 0.9, claim.Confidence)
}

func TestFailedReportIsZeroConfidence(t *testing.T) {
	r := FailedReport(apimodels.AgentImaging, "medsiglip", "imaging specialist offline or unreachable")

	require.Len(t, r.Claims, 1)
	assert.Equal(t, "error", r.Claims[0].Label)
	assert.Equal(t, 0.0, r.Claims[0].Confidence)
	assert.Equal(t, "imaging specialist offline or unreachable", r.Claims[0].Value)
	assert.False(t, r.Usable())
}

func TestReportClampsAndFilters(t *testing.T) {
	raw := apimodels.AgentReport{
		AgentName: apimodels.AgentHistory,
		Model:     "gemma-2-9b-it",
		Claims: []apimodels.Claim{
			{Label: "risk_factor", Value: "[RISK][RISK] smoking history", Confidence: 1.7},
			{Label: "finding", Value: "[ACTIVE] x", Confidence: 0.8}, // noise after tag strip
		},
		QualityFlags: []apimodels.QualityFlag{{Type: "noise", Severity: "catastrophic"}},
	}

	got := Report(raw)

	require.Len(t, got.Claims, 1)
	assert.Equal(t, "[RISK] smoking history", got.Claims[0].Value)
	assert.Equal(t, 1.0, got.Claims[0].Confidence)
	require.Len(t, got.QualityFlags, 1)
	assert.Equal(t, apimodels.SeverityLow, got.QualityFlags[0].Severity, "unknown severity folds to low")
}

func TestReportIsIdempotent(t *testing.T) {
	raw := apimodels.AgentReport{
		AgentName: apimodels.AgentAcoustics,
		Model:     "hear",
		Claims: []apimodels.Claim{
			{Label: "resp_abnormal", Value: "present_new", Confidence: 1.3},
			{Label: "error", Value: "partial segment dropped", Confidence: -1},
		},
		QualityFlags:  []apimodels.QualityFlag{{Type: "noise", Severity: apimodels.SeverityHigh, Detail: "traffic"}},
		Uncertainties: []string{"short clip"},
		RequestedData: []string{"repeat recording in quiet environment"},
	}

	once := Report(raw)
	twice := Report(once)
	assert.Equal(t, once, twice)
}

func TestReportNeverInventsClaims(t *testing.T) {
	// An empty extraction must stay empty: no defaulting to a healthy
	// claim.
	got := Report(apimodels.AgentReport{AgentName: apimodels.AgentHistory, Model: "gemma-2-9b-it"})
	assert.Empty(t, got.Claims)
	assert.False(t, got.Usable())
}
