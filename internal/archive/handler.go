// Package archive implements the daily log group export run: resolve the
// worklist from the trigger, compute the previous-day window, and drive
// each log group through the export task state machine into the
// destination bucket.
//
// All collaborators (discovery, export tasks, journal, clock) are injected
// as interfaces, so the run logic is exercised in tests without any AWS
// dependency. Every external call and wait is journaled through
// internal/workflow, which makes runs resumable across invocations.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/metrics"
	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/workflow"
)

// Config carries the handler's external configuration, resolved once at
// cold start and injected. The core never reads the environment itself.
type Config struct {
	// DestinationBucket receives the exported log data. Required.
	DestinationBucket string
	// Concurrency caps simultaneous exports. Defaults to 1: the logs
	// service allows a single active export task per account, so higher
	// values mostly add contention.
	Concurrency int
}

// Result is the invocation output payload.
type Result struct {
	ExportedCount int `json:"ExportedCount"`
}

// RunReport is the full record of a run, fed to the manifest writer and
// the run summary notifier.
type RunReport struct {
	RunID       string         `json:"runId"`
	Date        string         `json:"date"`
	FromMillis  int64          `json:"fromMillis"`
	ToMillis    int64          `json:"toMillis"`
	Bucket      string         `json:"bucket"`
	Sources     []SourceReport `json:"sources"`
	Exported    int            `json:"exported"`
	Failed      int            `json:"failed"`
	Suspended   bool           `json:"suspended"`
	CompletedAt time.Time      `json:"completedAt"`
}

// SourceReport is one worklist item's outcome within a RunReport.
type SourceReport struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Source report status values.
const (
	SourceExported  = "exported"
	SourceFailed    = "failed"
	SourceSuspended = "suspended"
)

// ManifestWriter persists a run's report. Write failures are logged, never
// fatal to the run.
type ManifestWriter interface {
	WriteRunManifest(ctx context.Context, report RunReport) error
}

// Notifier publishes a run's summary. Failures are logged, never fatal.
type Notifier interface {
	RunCompleted(ctx context.Context, report RunReport) error
}

// Continuer schedules a fresh invocation that resumes a suspended run with
// the given payload.
type Continuer interface {
	Continue(ctx context.Context, payload []byte) error
}

// Handler composes a complete archive run from injected collaborators.
type Handler struct {
	cfg        Config
	discoverer SourceDiscoverer
	tasks      ExportTasks
	journal    workflow.Journal
	clock      workflow.Clock

	manifest  ManifestWriter
	notifier  Notifier
	continuer Continuer
}

// NewHandler creates a Handler. Optional collaborators are attached with
// the With* methods.
func NewHandler(cfg Config, discoverer SourceDiscoverer, tasks ExportTasks, journal workflow.Journal, clock workflow.Clock) *Handler {
	return &Handler{
		cfg:        cfg,
		discoverer: discoverer,
		tasks:      tasks,
		journal:    journal,
		clock:      clock,
	}
}

// WithManifest enables the per-run manifest object.
func (h *Handler) WithManifest(m ManifestWriter) *Handler {
	h.manifest = m
	return h
}

// WithNotifier enables the run summary event.
func (h *Handler) WithNotifier(n Notifier) *Handler {
	h.notifier = n
	return h
}

// WithContinuer enables suspended runs to re-invoke themselves.
func (h *Handler) WithContinuer(c Continuer) *Handler {
	h.continuer = c
	return h
}

// Handle executes one archive run for the trigger. Configuration and input
// validation precede every external call. Per-source failures are isolated
// into the run report; the invocation itself fails only for configuration,
// input, or suspension without a continuation path.
func (h *Handler) Handle(ctx context.Context, trigger TriggerInput) (Result, error) {
	started := time.Now()

	if h.cfg.DestinationBucket == "" {
		return Result{}, &ConfigurationError{Setting: "destination bucket"}
	}

	window := PreviousDay(h.clock.Now())

	runID := trigger.RunID
	resumed := runID != ""
	if runID == "" {
		runID = deriveRunID(window, trigger)
	}
	logger := log.With().Str("runId", runID).Str("date", window.DateKey()).Logger()
	logger.Info().
		Bool("resumed", resumed).
		Str("bucket", h.cfg.DestinationBucket).
		Msg("Archive run started")

	run := workflow.NewRunner(runID, h.journal, h.clock)

	names, err := NewResolver(h.discoverer, run).Resolve(ctx, trigger)
	if err != nil {
		return Result{}, err
	}
	logger.Info().Int("sources", len(names)).Msg("Worklist resolved")

	batch := NewBatch(h.tasks, run, h.cfg.Concurrency)
	res := batch.Run(ctx, window, h.cfg.DestinationBucket, names)

	report := buildReport(runID, window, h.cfg.DestinationBucket, res)
	h.record(ctx, report, time.Since(started))

	if res.Suspended {
		return h.continueRun(ctx, trigger, runID, res, logger)
	}

	logger.Info().
		Int("exported", res.Succeeded).
		Int("failed", res.Failed).
		Dur("elapsed", time.Since(started)).
		Msg("Archive run complete")
	return Result{ExportedCount: res.Succeeded}, nil
}

// continueRun hands a suspended run to the next invocation. Without a
// continuer the invocation fails, which lets the platform's async retry
// resume the run under the same derived run ID.
func (h *Handler) continueRun(ctx context.Context, trigger TriggerInput, runID string, res BatchResult, logger zerolog.Logger) (Result, error) {
	if h.continuer == nil {
		logger.Warn().Msg("Run suspended with no continuation configured")
		return Result{}, fmt.Errorf("run %s: %w", runID, workflow.ErrSuspended)
	}

	payload, err := trigger.Wire(runID)
	if err != nil {
		return Result{}, err
	}
	if err := h.continuer.Continue(ctx, payload); err != nil {
		logger.Error().Err(err).Msg("Continuation invoke failed")
		return Result{}, fmt.Errorf("continue run %s: %w", runID, err)
	}

	logger.Info().Int("exportedSoFar", res.Succeeded).Msg("Run suspended, continuation scheduled")
	return Result{ExportedCount: res.Succeeded}, nil
}

// record emits the run's report to every configured sink plus EMF metrics.
// Sink errors never fail the run.
func (h *Handler) record(ctx context.Context, report RunReport, elapsed time.Duration) {
	if h.manifest != nil {
		if err := h.manifest.WriteRunManifest(ctx, report); err != nil {
			log.Error().Err(err).Str("runId", report.RunID).Msg("Run manifest write failed")
		}
	}
	if h.notifier != nil {
		if err := h.notifier.RunCompleted(ctx, report); err != nil {
			log.Error().Err(err).Str("runId", report.RunID).Msg("Run summary event failed")
		}
	}

	rec := metrics.New("DailyLogsArchiver").
		Dimension("Operation", "archive").
		Metric("SourcesResolved", float64(len(report.Sources)), metrics.UnitCount).
		Metric("ExportedCount", float64(report.Exported), metrics.UnitCount).
		Metric("FailedCount", float64(report.Failed), metrics.UnitCount).
		Metric("RunDurationMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Property("runId", report.RunID).
		Property("date", report.Date)
	if report.Suspended {
		rec.Count("SuspendedRuns")
	}
	rec.Flush()
}

func buildReport(runID string, w Window, bucket string, res BatchResult) RunReport {
	report := RunReport{
		RunID:       runID,
		Date:        w.DateKey(),
		FromMillis:  w.FromMillis(),
		ToMillis:    w.ToMillis(),
		Bucket:      bucket,
		Exported:    res.Succeeded,
		Failed:      res.Failed,
		Suspended:   res.Suspended,
		CompletedAt: time.Now().UTC(),
	}
	for _, o := range res.Outcomes {
		s := SourceReport{Name: o.Source, Status: SourceExported}
		switch {
		case errors.Is(o.Err, workflow.ErrSuspended):
			s.Status = SourceSuspended
		case o.Err != nil:
			s.Status = SourceFailed
			s.Error = o.Err.Error()
		}
		report.Sources = append(report.Sources, s)
	}
	return report
}

// deriveRunID produces a stable run ID for a fresh trigger, so an
// at-least-once redelivery of the same payload on the same day resumes the
// journal instead of duplicating exports.
func deriveRunID(w Window, t TriggerInput) string {
	canonical, err := t.Wire("")
	if err != nil {
		canonical = []byte(t.LogGroup + t.TagKey)
	}
	sum := sha256.Sum256(canonical)
	return fmt.Sprintf("arch-%s-%s", w.From.Format("20060102"), hex.EncodeToString(sum[:5]))
}
