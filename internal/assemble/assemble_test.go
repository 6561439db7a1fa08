package assemble

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consensusboard/apimodels"
	"consensusboard/internal/adjudicate"
	"consensusboard/internal/artifacts"
	"consensusboard/internal/config"
	"consensusboard/internal/dispatch"
	"consensusboard/internal/specialist"
)

type stubSpecialist struct {
	name   string
	model  string
	report apimodels.AgentReport
	err    error
}

func (s stubSpecialist) Name() string  { return s.name }
func (s stubSpecialist) Model() string { return s.model }

func (s stubSpecialist) Report(ctx context.Context, in specialist.Input) (apimodels.AgentReport, error) {
	if s.err != nil {
		return apimodels.AgentReport{}, s.err
	}
	return s.report, nil
}

func stubReport(agent, model, label, value string, conf float64, requested ...string) apimodels.AgentReport {
	return apimodels.AgentReport{
		AgentName:     agent,
		Model:         model,
		Claims:        []apimodels.Claim{{Label: label, Value: value, Confidence: conf}},
		RequestedData: requested,
	}
}

func testBoard(t *testing.T, caseID string, imaging, acoustics, history specialist.Specialist) *Board {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, caseID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "xray.jpg"), []byte("img"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "audio.wav"), []byte("wav"), 0o644))
	store := artifacts.NewStore(root)

	cfg := &config.Config{
		Imaging:   config.ImagingConfig{Timeout: time.Second},
		Acoustics: config.AcousticsConfig{Timeout: time.Second},
		Pipeline: config.PipelineConfig{
			HistoryTimeout: time.Second,
			CaseTimeout:    5 * time.Second,
			RetryAttempts:  1,
			RetryBackoff:   time.Millisecond,
		},
	}
	d := dispatch.New(store, imaging, acoustics, history, cfg)
	return NewBoard(store, d, adjudicate.Deterministic{}, nil, "deterministic")
}

func TestRunProducesFullOutput(t *testing.T) {
	board := testBoard(t, "case_010",
		stubSpecialist{name: apimodels.AgentImaging, model: "medsiglip",
			report: stubReport(apimodels.AgentImaging, "medsiglip", "imaging_stability", "stable", 0.9, "prior CT series for comparison")},
		stubSpecialist{name: apimodels.AgentAcoustics, model: "hear",
			report: stubReport(apimodels.AgentAcoustics, "hear", "resp_abnormal", "present_new", 0.85, "repeat recording in quiet environment")},
		stubSpecialist{name: apimodels.AgentHistory, model: "gemma-2-9b-it",
			report: stubReport(apimodels.AgentHistory, "gemma-2-9b-it", "weight_loss", "[ACTIVE] unintentional weight loss", 0.9)},
	)

	out := board.Run(context.Background(), apimodels.CaseRequest{CaseID: "case_010", ClinicalNoteText: "note"})

	assert.Equal(t, "case_010", out.CaseID)
	assert.GreaterOrEqual(t, out.DiscrepancyAlert.Score, 0.5)
	assert.Equal(t, apimodels.LevelHigh, out.DiscrepancyAlert.Level)
	assert.NotEmpty(t, out.KeyContradictions)
	assert.NotEmpty(t, out.ReasoningTrace)
	assert.NotEmpty(t, out.EvidenceTable)
	assert.NotEmpty(t, out.Limitations)
	require.Len(t, out.AgentReports, 3)
	assert.Equal(t, apimodels.AgentNames, []string{
		out.AgentReports[0].AgentName,
		out.AgentReports[1].AgentName,
		out.AgentReports[2].AgentName,
	})
	assert.Contains(t, out.RecommendedDataActions, "prior CT series for comparison")
	assert.Contains(t, out.RecommendedDataActions, "repeat recording in quiet environment")
}

func TestRunSurvivesEverySpecialistFailing(t *testing.T) {
	down := errors.Join(specialist.ErrTransport, errors.New("connection refused"))
	board := testBoard(t, "case_011",
		stubSpecialist{name: apimodels.AgentImaging, model: "medsiglip", err: down},
		stubSpecialist{name: apimodels.AgentAcoustics, model: "hear", err: down},
		stubSpecialist{name: apimodels.AgentHistory, model: "gemma-2-9b-it", err: down},
	)

	out := board.Run(context.Background(), apimodels.CaseRequest{CaseID: "case_011", ClinicalNoteText: "note"})

	require.Len(t, out.AgentReports, 3)
	for _, r := range out.AgentReports {
		assert.False(t, r.Usable())
	}
	assert.NotEmpty(t, out.ReasoningTrace)
	assert.NotEmpty(t, out.DiscrepancyAlert.Summary)
}

func TestRunStreamEmitsExactlyOneFinalLast(t *testing.T) {
	board := testBoard(t, "case_012",
		stubSpecialist{name: apimodels.AgentImaging, model: "medsiglip",
			report: stubReport(apimodels.AgentImaging, "medsiglip", "imaging_stability", "stable", 0.9)},
		stubSpecialist{name: apimodels.AgentAcoustics, model: "hear",
			report: stubReport(apimodels.AgentAcoustics, "hear", "resp_abnormal", "present_new", 0.85)},
		stubSpecialist{name: apimodels.AgentHistory, model: "gemma-2-9b-it",
			report: stubReport(apimodels.AgentHistory, "gemma-2-9b-it", "weight_loss", "[ACTIVE] weight loss", 0.9)},
	)

	var events []apimodels.Event
	for ev := range board.RunStream(context.Background(), apimodels.CaseRequest{CaseID: "case_012", ClinicalNoteText: "note"}) {
		events = append(events, ev)
	}

	require.NotEmpty(t, events)

	finals := 0
	for _, ev := range events {
		if ev.Type == apimodels.EventFinal {
			finals++
		}
		assert.NotEmpty(t, ev.RunID)
		assert.Equal(t, events[0].RunID, ev.RunID)
	}
	assert.Equal(t, 1, finals)

	last := events[len(events)-1]
	assert.Equal(t, apimodels.EventFinal, last.Type)
	require.NotNil(t, last.Output)
	assert.Equal(t, "case_012", last.Output.CaseID)

	// every non-final event is advisory: dropping them loses nothing
	for _, ev := range events[:len(events)-1] {
		assert.Nil(t, ev.Output)
	}
}

func TestAssembleGuaranteesOneEntryPerSpecialist(t *testing.T) {
	verdict := adjudicate.Verdict{
		Score:     0,
		Level:     apimodels.LevelNone,
		Summary:   "No strong cross-modal discrepancy detected.",
		Reasoning: []string{"nothing to reconcile"},
	}

	// acoustics is missing entirely and one report has an unknown name
	reports := []apimodels.AgentReport{
		stubReport(apimodels.AgentImaging, "medsiglip", "imaging_stability", "stable", 0.9),
		{AgentName: "telemetry", Model: "unknown"},
	}

	out := Assemble("case_013", verdict, reports)

	require.Len(t, out.AgentReports, 3)
	assert.Equal(t, apimodels.AgentAcoustics, out.AgentReports[1].AgentName)
	require.NotEmpty(t, out.AgentReports[1].Claims)
	assert.Equal(t, "error", out.AgentReports[1].Claims[0].Label)
	assert.Equal(t, 0.0, out.AgentReports[1].Claims[0].Confidence)
}

func TestDataActionsAreDeduplicated(t *testing.T) {
	reports := []apimodels.AgentReport{
		stubReport(apimodels.AgentImaging, "medsiglip", "imaging_stability", "stable", 0.9, "prior CT series", "prior CT series"),
		stubReport(apimodels.AgentAcoustics, "hear", "resp_abnormal", "absent", 0.6, "prior CT series", "repeat recording"),
		stubReport(apimodels.AgentHistory, "gemma-2-9b-it", "baseline", "[BASELINE] asthma", 0.7),
	}

	got := dataActions(reports, "Schedule clinician review to reconcile the conflicting findings.")

	assert.ElementsMatch(t, []string{
		"prior CT series",
		"repeat recording",
		"Schedule clinician review to reconcile the conflicting findings.",
	}, got)
}

func TestAssembleBackfillsEmptyReasoning(t *testing.T) {
	out := Assemble("case_014", adjudicate.Verdict{Level: apimodels.LevelNone}, nil)
	assert.NotEmpty(t, out.ReasoningTrace)
}
