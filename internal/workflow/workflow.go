// Package workflow provides a small checkpointed-execution substrate for
// runs that outlive a single Lambda invocation.
//
// A run is a sequence of named steps. Each step executes at most once per
// run: its result is recorded in a Journal, and when the run is re-executed
// (after a crash, a redelivered trigger, or a deliberate suspension) already
// recorded steps are replayed from the journal instead of re-running their
// side effects. Waits are journaled the same way, so a resumed run does not
// sleep twice for the same wait.
//
// When an invocation deadline is too close to complete a pending wait, Sleep
// returns ErrSuspended. The caller is expected to stop, persist nothing
// further, and arrange a fresh invocation that resumes the run under the
// same run ID.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrSuspended signals that the run cannot finish within the current
// invocation and must be resumed by a later one.
var ErrSuspended = errors.New("run suspended before deadline")

// DefaultSuspendMargin is how much slack must remain after a wait completes.
// Waits that would leave less than this before the invocation deadline
// suspend instead of sleeping.
const DefaultSuspendMargin = 90 * time.Second

// Runner binds a run ID to a journal and a clock. Steps executed through
// the same Runner (or any Runner with the same run ID and journal) share
// checkpoints.
type Runner struct {
	runID   string
	journal Journal
	clock   Clock
	margin  time.Duration
}

// NewRunner creates a Runner for the given run.
func NewRunner(runID string, journal Journal, clock Clock) *Runner {
	return &Runner{
		runID:   runID,
		journal: journal,
		clock:   clock,
		margin:  DefaultSuspendMargin,
	}
}

// SuspendMargin overrides the deadline slack required before a wait.
func (r *Runner) SuspendMargin(d time.Duration) *Runner {
	r.margin = d
	return r
}

// RunID returns the run this Runner executes.
func (r *Runner) RunID() string { return r.runID }

// Clock returns the clock the run is driven by.
func (r *Runner) Clock() Clock { return r.clock }

// Step executes fn at most once per run under the given name. If the step
// already completed, its recorded result is decoded and returned without
// calling fn. Step names must be unique within a run; callers namespace
// them by batch position.
//
// Errors are not journaled: a failed or interrupted step executes again on
// the next invocation, so step functions must tolerate being retried.
func Step[T any](ctx context.Context, r *Runner, name string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	entry, err := r.journal.Lookup(ctx, r.runID, name)
	if err != nil {
		return zero, fmt.Errorf("step %s: journal lookup: %w", name, err)
	}
	if entry != nil {
		var v T
		if err := json.Unmarshal(entry.Result, &v); err != nil {
			return zero, fmt.Errorf("step %s: decode recorded result: %w", name, err)
		}
		log.Debug().Str("runId", r.runID).Str("step", name).Msg("Step replayed from journal")
		return v, nil
	}

	v, err := fn(ctx)
	if err != nil {
		return zero, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return zero, fmt.Errorf("step %s: encode result: %w", name, err)
	}
	if err := r.journal.Record(ctx, r.runID, name, raw); err != nil {
		return zero, fmt.Errorf("step %s: journal record: %w", name, err)
	}
	return v, nil
}

// Sleep waits for d under the given name. A wait that already completed in
// this run is skipped. If the invocation deadline would be crossed (less
// than the suspend margin left after the wait), Sleep returns ErrSuspended
// without sleeping.
func (r *Runner) Sleep(ctx context.Context, name string, d time.Duration) error {
	entry, err := r.journal.Lookup(ctx, r.runID, name)
	if err != nil {
		return fmt.Errorf("wait %s: journal lookup: %w", name, err)
	}
	if entry != nil {
		log.Debug().Str("runId", r.runID).Str("step", name).Msg("Wait already completed, skipping")
		return nil
	}

	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < d+r.margin {
			log.Info().
				Str("runId", r.runID).
				Str("step", name).
				Dur("wait", d).
				Dur("remaining", remaining).
				Msg("Deadline too close for wait, suspending run")
			return ErrSuspended
		}
	}

	if err := r.clock.Sleep(ctx, d); err != nil {
		return fmt.Errorf("wait %s: %w", name, err)
	}
	if err := r.journal.Record(ctx, r.runID, name, nil); err != nil {
		return fmt.Errorf("wait %s: journal record: %w", name, err)
	}
	return nil
}
