package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/workflow"
)

// Poll intervals for the export task state machine. RUNNING exports back
// off longer between status checks than transitional states.
const (
	shortWait = 3 * time.Second
	longWait  = 10 * time.Second
)

// maxCreateAttempts bounds the FAILED retry loop: initial attempt plus one
// retry.
const maxCreateAttempts = 2

// TaskStatus is an export task status code as reported by the logs service.
type TaskStatus string

const (
	StatusCancelled     TaskStatus = "CANCELLED"
	StatusCompleted     TaskStatus = "COMPLETED"
	StatusFailed        TaskStatus = "FAILED"
	StatusPending       TaskStatus = "PENDING"
	StatusPendingCancel TaskStatus = "PENDING_CANCEL"
	StatusRunning       TaskStatus = "RUNNING"
)

// ExportRequest describes one export task to create.
type ExportRequest struct {
	LogGroup    string
	Destination string
	Prefix      string
	FromMillis  int64
	ToMillis    int64
	TaskName    string
}

// ExportTasks is the logs-service surface the controller needs.
type ExportTasks interface {
	// Create starts an export task and returns its ID. An empty ID with a
	// nil error means the service accepted the call but returned no task.
	Create(ctx context.Context, req ExportRequest) (string, error)
	// Status reports the current status of an export task.
	Status(ctx context.Context, taskID string) (TaskStatus, error)
}

// Controller drives a single log group through the export task state
// machine: create the task, poll until it leaves the active states, and
// retry the whole create-and-poll sequence once if the service reports
// FAILED.
type Controller struct {
	tasks ExportTasks
	run   *workflow.Runner
}

// NewController creates a Controller executing under the given run.
func NewController(tasks ExportTasks, run *workflow.Runner) *Controller {
	return &Controller{tasks: tasks, run: run}
}

// Export archives one log group for the window into bucket. scope prefixes
// the journal step names and must be unique per batch item, so duplicate
// log group names in one batch keep separate checkpoints.
func (c *Controller) Export(ctx context.Context, scope, logGroup string, w Window, bucket string) error {
	prefix := w.Prefix(Sanitize(logGroup))
	logger := log.With().Str("logGroup", logGroup).Str("destinationPrefix", prefix).Logger()

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		taskID, err := workflow.Step(ctx, c.run, fmt.Sprintf("%s/create#%d", scope, attempt), func(ctx context.Context) (string, error) {
			return c.tasks.Create(ctx, ExportRequest{
				LogGroup:    logGroup,
				Destination: bucket,
				Prefix:      prefix,
				FromMillis:  w.FromMillis(),
				ToMillis:    w.ToMillis(),
				TaskName:    taskName(logGroup, w),
			})
		})
		if err != nil {
			return fmt.Errorf("create export task for %s: %w", logGroup, err)
		}
		if taskID == "" {
			return &ExportCreationError{LogGroup: logGroup}
		}
		logger.Info().Str("taskId", taskID).Int("attempt", attempt).Msg("Export task created")

		failed, err := c.watch(ctx, scope, attempt, taskID, logger)
		if err != nil {
			return err
		}
		if !failed {
			return nil
		}
		if attempt+1 >= maxCreateAttempts {
			return &ExportFailureError{LogGroup: logGroup, TaskID: taskID}
		}

		logger.Warn().Str("taskId", taskID).Msg("Export task failed, retrying once")
		if err := c.run.Sleep(ctx, fmt.Sprintf("%s/retry-wait#%d", scope, attempt), shortWait); err != nil {
			return err
		}
	}
	return nil
}

// watch polls the task until it reaches a terminal state. It reports
// failed=true when the task ended FAILED; CANCELLED and PENDING_CANCEL
// count as finished, matching the treat-as-complete handling of operator
// cancellations.
func (c *Controller) watch(ctx context.Context, scope string, attempt int, taskID string, logger zerolog.Logger) (failed bool, err error) {
	for poll := 0; ; poll++ {
		status, err := workflow.Step(ctx, c.run, fmt.Sprintf("%s/status#%d.%d", scope, attempt, poll), func(ctx context.Context) (TaskStatus, error) {
			return c.tasks.Status(ctx, taskID)
		})
		if err != nil {
			return false, fmt.Errorf("describe export task %s: %w", taskID, err)
		}

		switch status {
		case StatusCompleted, StatusCancelled, StatusPendingCancel:
			logger.Info().Str("taskId", taskID).Str("status", string(status)).Int("polls", poll+1).Msg("Export task finished")
			return false, nil
		case StatusFailed:
			return true, nil
		case StatusRunning:
			if err := c.run.Sleep(ctx, fmt.Sprintf("%s/wait#%d.%d", scope, attempt, poll), longWait); err != nil {
				return false, err
			}
		default:
			// PENDING and anything unrecognized: short wait, poll again.
			logger.Debug().Str("taskId", taskID).Str("status", string(status)).Msg("Export task still pending")
			if err := c.run.Sleep(ctx, fmt.Sprintf("%s/wait#%d.%d", scope, attempt, poll), shortWait); err != nil {
				return false, err
			}
		}
	}
}

// taskName labels the export task in the logs console. The random suffix
// keeps retry attempts distinguishable from each other.
func taskName(logGroup string, w Window) string {
	return fmt.Sprintf("archive-%s-%s-%s", Sanitize(logGroup), w.From.Format("20060102"), uuid.NewString()[:8])
}
