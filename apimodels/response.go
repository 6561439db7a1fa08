package apimodels

// Discrepancy levels derived from the score by a fixed threshold ladder.
// "none" is produced only by the deterministic adjudicator at exactly 0.
const (
	LevelNone   = "none"
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

// DiscrepancyAlert is the adjudication verdict. Computed once per case
// run, never mutated.
type DiscrepancyAlert struct {
	Level   string  `json:"level"`
	Score   float64 `json:"score"`
	Summary string  `json:"summary"`
}

// EvidenceRow flattens one claim for display in the UI evidence table.
type EvidenceRow struct {
	Agent      string        `json:"agent"`
	Label      string        `json:"label"`
	Value      string        `json:"value"`
	Confidence float64       `json:"confidence"`
	Evidence   []EvidenceRef `json:"evidence,omitempty"`
}

// ConsensusOutput is the full response for one case run. The core
// persists it nowhere; storage, if any, is the caller's concern.
type ConsensusOutput struct {
	CaseID                 string           `json:"case_id"`
	DiscrepancyAlert       DiscrepancyAlert `json:"discrepancy_alert"`
	KeyContradictions      []string         `json:"key_contradictions"`
	EvidenceTable          []EvidenceRow    `json:"evidence_table,omitempty"`
	RecommendedDataActions []string         `json:"recommended_data_actions"`
	ReasoningTrace         []string         `json:"reasoning_trace"`
	Limitations            []string         `json:"limitations,omitempty"`
	AgentReports           []AgentReport    `json:"agent_reports"`
}
