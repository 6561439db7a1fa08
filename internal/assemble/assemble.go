// Package assemble runs the full case pipeline and packages the result
// into the response contract, either synchronously or as a stream of
// tagged progress events with the final payload last.
package assemble

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"consensusboard/apimodels"
	"consensusboard/internal/adjudicate"
	"consensusboard/internal/artifacts"
	"consensusboard/internal/dispatch"
	"consensusboard/internal/normalize"
	"consensusboard/internal/specialist"
)

var limitations = []string{
	"Prototype decision support: outputs are advisory and require clinician review.",
	"Specialist analyses are delegated to hosted inference services and may be degraded or unavailable.",
}

// Board wires the dispatcher and the two adjudication modes into one
// runnable pipeline.
type Board struct {
	store         *artifacts.Store
	dispatcher    *dispatch.Dispatcher
	deterministic adjudicate.Adjudicator
	delegated     adjudicate.Adjudicator
	defaultMode   string
}

func NewBoard(store *artifacts.Store, d *dispatch.Dispatcher, deterministic, delegated adjudicate.Adjudicator, defaultMode string) *Board {
	return &Board{
		store:         store,
		dispatcher:    d,
		deterministic: deterministic,
		delegated:     delegated,
		defaultMode:   defaultMode,
	}
}

// Run executes the case synchronously and returns the full output.
func (b *Board) Run(ctx context.Context, req apimodels.CaseRequest) apimodels.ConsensusOutput {
	return b.run(ctx, req, nil)
}

// RunStream executes the case and emits tagged events on the returned
// channel. Exactly one "final" event is sent, always last; every earlier
// event is advisory. The channel closes after the final event, or early
// if ctx is cancelled and the consumer is gone.
func (b *Board) RunStream(ctx context.Context, req apimodels.CaseRequest) <-chan apimodels.Event {
	out := make(chan apimodels.Event, 16)
	runID := uuid.NewString()

	send := func(ev apimodels.Event) {
		ev.RunID = runID
		select {
		case out <- ev:
		case <-ctx.Done():
		}
	}

	go func() {
		defer close(out)
		send(apimodels.Event{
			Type:    apimodels.EventStatus,
			Message: fmt.Sprintf("analysis started for case %s", req.CaseID),
		})
		output := b.run(ctx, req, send)
		send(apimodels.Event{
			Type:   apimodels.EventFinal,
			Output: &output,
		})
	}()

	return out
}

func (b *Board) run(ctx context.Context, req apimodels.CaseRequest, notify dispatch.Observer) apimodels.ConsensusOutput {
	// Concurrent re-runs of the same case id are serialized so both
	// never read the artifact directory mid-change.
	unlock := b.store.Lock(req.CaseID)
	defer unlock()

	slog.Info("case run started", "case_id", req.CaseID)

	reports := b.dispatcher.Dispatch(ctx, specialist.Input{
		CaseID:        req.CaseID,
		ClinicalNote:  req.ClinicalNoteText,
		ModelOverride: req.Options.Model,
	}, notify)

	if notify != nil {
		notify(apimodels.Event{
			Type:    apimodels.EventThought,
			Message: "cross-checking imaging stability against acoustic and history signals",
		})
	}

	verdict := b.adjudicator(req.Options.Adjudicator).Adjudicate(ctx, reports.Imaging, reports.Acoustics, reports.History)

	slog.Info("case run complete", "case_id", req.CaseID, "score", verdict.Score, "level", verdict.Level)
	return Assemble(req.CaseID, verdict, reports.All())
}

// adjudicator picks the mode for this run: the request override wins,
// then the configured default; delegated silently degrades to the rule
// engine when no reasoning collaborator is wired.
func (b *Board) adjudicator(requested string) adjudicate.Adjudicator {
	mode := requested
	if mode == "" {
		mode = b.defaultMode
	}
	if mode == "delegated" && b.delegated != nil {
		return b.delegated
	}
	return b.deterministic
}

// Assemble packages a verdict and the specialist reports into the
// response contract. Exactly one well-formed entry per specialist is
// guaranteed: anything unrecognizable is replaced by a degraded report,
// never omitted.
func Assemble(caseID string, verdict adjudicate.Verdict, reports []apimodels.AgentReport) apimodels.ConsensusOutput {
	ordered := orderedReports(reports)

	reasoning := verdict.Reasoning
	if len(reasoning) == 0 {
		reasoning = []string{"No adjudication reasoning was produced; treat this run as inconclusive."}
	}

	return apimodels.ConsensusOutput{
		CaseID: caseID,
		DiscrepancyAlert: apimodels.DiscrepancyAlert{
			Level:   verdict.Level,
			Score:   verdict.Score,
			Summary: verdict.Summary,
		},
		KeyContradictions:      verdict.Contradictions,
		EvidenceTable:          evidenceTable(ordered),
		RecommendedDataActions: dataActions(ordered, verdict.Recommendation),
		ReasoningTrace:         reasoning,
		Limitations:            limitations,
		AgentReports:           ordered,
	}
}

// orderedReports returns one report per specialist in canonical order,
// synthesizing a degraded entry for any specialist whose output did not
// arrive in a recognizable shape.
func orderedReports(reports []apimodels.AgentReport) []apimodels.AgentReport {
	byName := make(map[string]apimodels.AgentReport, len(reports))
	for _, r := range reports {
		if _, dup := byName[r.AgentName]; !dup {
			byName[r.AgentName] = r
		}
	}
	out := make([]apimodels.AgentReport, 0, len(apimodels.AgentNames))
	for _, name := range apimodels.AgentNames {
		r, ok := byName[name]
		if !ok {
			r = normalize.FailedReport(name, "unknown", "specialist output was missing or unrecognizable")
		}
		out = append(out, r)
	}
	return out
}

// dataActions is the deduplicated union of every specialist's requested
// follow-up data plus the adjudicator's own recommendation.
func dataActions(reports []apimodels.AgentReport, recommendation string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, r := range reports {
		for _, a := range r.RequestedData {
			add(a)
		}
	}
	add(recommendation)
	sort.Strings(out)
	return out
}

func evidenceTable(reports []apimodels.AgentReport) []apimodels.EvidenceRow {
	var rows []apimodels.EvidenceRow
	for _, r := range reports {
		for _, c := range r.Claims {
			if c.Label == "error" {
				continue
			}
			rows = append(rows, apimodels.EvidenceRow{
				Agent:      r.AgentName,
				Label:      c.Label,
				Value:      c.Value,
				Confidence: c.Confidence,
				Evidence:   c.Evidence,
			})
		}
	}
	return rows
}
