// Package dispatch fans the case out to the three specialists
// concurrently and fans their reports back in. One specialist failing,
// timing out, or missing its input artifact never blocks or fails the
// other two; every failure is contained as a degraded, well-formed
// report.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"consensusboard/apimodels"
	"consensusboard/internal/artifacts"
	"consensusboard/internal/config"
	"consensusboard/internal/normalize"
	"consensusboard/internal/specialist"
)

// Observer receives advisory progress events during a dispatch. May be
// nil.
type Observer func(ev apimodels.Event)

// Reports is the fan-in result: exactly one report per specialist, in
// canonical order, degraded or not.
type Reports struct {
	Imaging   apimodels.AgentReport
	Acoustics apimodels.AgentReport
	History   apimodels.AgentReport
}

// All returns the reports in canonical order.
func (r Reports) All() []apimodels.AgentReport {
	return []apimodels.AgentReport{r.Imaging, r.Acoustics, r.History}
}

type Dispatcher struct {
	store     *artifacts.Store
	imaging   specialist.Specialist
	acoustics specialist.Specialist
	history   specialist.Specialist

	imagingTimeout   time.Duration
	acousticsTimeout time.Duration
	historyTimeout   time.Duration
	caseTimeout      time.Duration

	retryAttempts int
	retryBackoff  time.Duration
}

func New(store *artifacts.Store, imaging, acoustics, history specialist.Specialist, cfg *config.Config) *Dispatcher {
	return &Dispatcher{
		store:            store,
		imaging:          imaging,
		acoustics:        acoustics,
		history:          history,
		imagingTimeout:   cfg.Imaging.Timeout,
		acousticsTimeout: cfg.Acoustics.Timeout,
		historyTimeout:   cfg.Pipeline.HistoryTimeout,
		caseTimeout:      cfg.Pipeline.CaseTimeout,
		retryAttempts:    cfg.Pipeline.RetryAttempts,
		retryBackoff:     cfg.Pipeline.RetryBackoff,
	}
}

// Dispatch runs all three specialist calls concurrently and waits for
// every one to complete or fail independently. The whole fan-out is
// bounded by the case deadline on top of the per-call timeouts.
func (d *Dispatcher) Dispatch(ctx context.Context, in specialist.Input, notify Observer) Reports {
	ctx, cancel := context.WithTimeout(ctx, d.caseTimeout)
	defer cancel()

	imagePath, imageOK := d.store.ImagePath(in.CaseID)
	audioPath, audioOK := d.store.AudioPath(in.CaseID)
	in.ImagePath = imagePath
	in.AudioPath = audioPath

	var reports Reports

	// errgroup is used for its fan-out/fan-in shape; tasks never return
	// errors, so one specialist cannot cancel the others' context.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if !imageOK {
			reports.Imaging = d.skipped(d.imaging, "file missing: no X-ray image uploaded for this case", notify)
			return nil
		}
		reports.Imaging = d.call(gctx, d.imaging, in, d.imagingTimeout, notify)
		return nil
	})
	g.Go(func() error {
		if !audioOK {
			reports.Acoustics = d.skipped(d.acoustics, "file missing: no audio recording uploaded for this case", notify)
			return nil
		}
		reports.Acoustics = d.call(gctx, d.acoustics, in, d.acousticsTimeout, notify)
		return nil
	})
	g.Go(func() error {
		if in.ClinicalNote == "" {
			reports.History = d.skipped(d.history, "file missing: no clinical note provided for this case", notify)
			return nil
		}
		reports.History = d.call(gctx, d.history, in, d.historyTimeout, notify)
		return nil
	})

	_ = g.Wait()
	return reports
}

// skipped synthesizes a failed report locally; no network call is made
// when the required input is absent.
func (d *Dispatcher) skipped(sp specialist.Specialist, reason string, notify Observer) apimodels.AgentReport {
	slog.Info("specialist skipped", "agent", sp.Name(), "reason", reason)
	emit(notify, apimodels.Event{
		Type:    apimodels.EventAgentComplete,
		Agent:   sp.Name(),
		Message: reason,
	})
	return normalize.FailedReport(sp.Name(), sp.Model(), reason)
}

// call invokes one specialist with its own timeout and bounded retry,
// converting any final failure into a degraded report instead of
// propagating it.
func (d *Dispatcher) call(ctx context.Context, sp specialist.Specialist, in specialist.Input, timeout time.Duration, notify Observer) apimodels.AgentReport {
	emit(notify, apimodels.Event{
		Type:    apimodels.EventAgentStart,
		Agent:   sp.Name(),
		Message: fmt.Sprintf("%s analysis started", sp.Name()),
	})

	report, err := d.callWithRetry(ctx, sp, in, timeout)
	if err != nil {
		slog.Warn("specialist failed", "agent", sp.Name(), "error", err)
		emit(notify, apimodels.Event{
			Type:    apimodels.EventAgentComplete,
			Agent:   sp.Name(),
			Message: fmt.Sprintf("%s specialist unavailable", sp.Name()),
		})
		return normalize.FailedReport(sp.Name(), sp.Model(), failureText(sp.Name(), err))
	}

	report = normalize.Report(report)
	emit(notify, apimodels.Event{
		Type:    apimodels.EventAgentComplete,
		Agent:   sp.Name(),
		Message: fmt.Sprintf("%s analysis complete", sp.Name()),
	})
	return report
}

func (d *Dispatcher) callWithRetry(ctx context.Context, sp specialist.Specialist, in specialist.Input, timeout time.Duration) (apimodels.AgentReport, error) {
	attempts := d.retryAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		report, err := sp.Report(callCtx, in)
		cancel()
		if err == nil {
			return report, nil
		}
		lastErr = err

		// Only the wire is worth retrying. A payload the service did
		// send but we could not use will not improve on a second ask.
		if !errors.Is(err, specialist.ErrTransport) {
			break
		}
		slog.Warn("specialist transport failure", "agent", sp.Name(), "attempt", i+1, "error", err)
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return apimodels.AgentReport{}, ctx.Err()
			case <-time.After(d.retryBackoff * time.Duration(i+1)):
			}
		}
	}
	return apimodels.AgentReport{}, lastErr
}

// failureText renders a legible claim value for a failed specialist.
// Raw transport errors stay in the logs; the clinician-facing value
// names the condition in plain words.
func failureText(agent string, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("%s specialist timed out before responding", agent)
	case errors.Is(err, specialist.ErrTransport):
		return fmt.Sprintf("%s specialist offline or unreachable", agent)
	default:
		return fmt.Sprintf("%s specialist returned no usable output", agent)
	}
}

func emit(notify Observer, ev apimodels.Event) {
	if notify != nil {
		notify(ev)
	}
}
