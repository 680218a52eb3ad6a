package archive

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/workflow"
)

// Outcome is the result of one batch item.
type Outcome struct {
	Source string
	Err    error
}

// BatchResult summarizes a batch run. Outcomes are in worklist order.
type BatchResult struct {
	Outcomes  []Outcome
	Succeeded int
	Failed    int
	Suspended bool
}

// Batch fans the export controller out over a worklist with a concurrency
// cap. Item failures are isolated: a fatal error for one log group is
// recorded in its outcome and the rest of the batch still runs.
type Batch struct {
	ctrl        *Controller
	concurrency int
}

// NewBatch creates a Batch executing under the given run. Concurrency
// values below 1 run sequentially.
func NewBatch(tasks ExportTasks, run *workflow.Runner, concurrency int) *Batch {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Batch{
		ctrl:        NewController(tasks, run),
		concurrency: concurrency,
	}
}

// Run exports every log group in logGroups for the window. Items are
// dispatched in worklist order; with a cap of 1 they run strictly
// sequentially. When an item suspends, dispatch stops and the remaining
// items are marked suspended so a continuation invocation picks them up.
func (b *Batch) Run(ctx context.Context, w Window, bucket string, logGroups []string) BatchResult {
	outcomes := make([]Outcome, len(logGroups))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		suspended bool
	)
	sem := make(chan struct{}, b.concurrency)

	for i, group := range logGroups {
		sem <- struct{}{}

		mu.Lock()
		stop := suspended
		mu.Unlock()
		if stop {
			<-sem
			outcomes[i] = Outcome{Source: group, Err: workflow.ErrSuspended}
			continue
		}

		wg.Add(1)
		go func(i int, group string) {
			defer wg.Done()
			defer func() { <-sem }()

			err := b.ctrl.Export(ctx, fmt.Sprintf("export#%d", i), group, w, bucket)
			if errors.Is(err, workflow.ErrSuspended) {
				mu.Lock()
				suspended = true
				mu.Unlock()
			}
			outcomes[i] = Outcome{Source: group, Err: err}
		}(i, group)
	}
	wg.Wait()

	result := BatchResult{Outcomes: outcomes, Suspended: suspended}
	for _, o := range outcomes {
		switch {
		case o.Err == nil:
			result.Succeeded++
		case errors.Is(o.Err, workflow.ErrSuspended):
			// Resumed by the next invocation; not a failure.
		default:
			result.Failed++
			log.Error().Err(o.Err).Str("logGroup", o.Source).Msg("Export failed")
		}
	}
	return result
}
