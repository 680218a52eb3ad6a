// Package notify publishes archive run summary events to EventBridge.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"

	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/archive"
)

const (
	eventSource            = "daily-logs-archiver"
	runCompletedDetailType = "ArchiveRunCompleted"
)

// runCompletedDetail is the event payload. It carries counts only; the
// per-source outcome list lives in the run manifest, which keeps the
// detail well under the entry size limit for large worklists.
type runCompletedDetail struct {
	RunID     string `json:"runId"`
	Date      string `json:"date"`
	Bucket    string `json:"bucket"`
	Sources   int    `json:"sources"`
	Exported  int    `json:"exported"`
	Failed    int    `json:"failed"`
	Suspended bool   `json:"suspended"`
}

// Emitter publishes run summaries. An empty bus name targets the account's
// default event bus.
type Emitter struct {
	client  *eventbridge.Client
	busName string
}

// Compile-time interface check.
var _ archive.Notifier = (*Emitter)(nil)

// NewEmitter creates an Emitter.
func NewEmitter(client *eventbridge.Client, busName string) *Emitter {
	return &Emitter{client: client, busName: busName}
}

// RunCompleted emits one ArchiveRunCompleted event for the report.
func (e *Emitter) RunCompleted(ctx context.Context, report archive.RunReport) error {
	detail, err := json.Marshal(runCompletedDetail{
		RunID:     report.RunID,
		Date:      report.Date,
		Bucket:    report.Bucket,
		Sources:   len(report.Sources),
		Exported:  report.Exported,
		Failed:    report.Failed,
		Suspended: report.Suspended,
	})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", runCompletedDetailType, err)
	}

	entry := eventbridgetypes.PutEventsRequestEntry{
		Source:     aws.String(eventSource),
		DetailType: aws.String(runCompletedDetailType),
		Detail:     aws.String(string(detail)),
	}
	if e.busName != "" {
		entry.EventBusName = aws.String(e.busName)
	}

	result, err := e.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{entry},
	})
	if err != nil {
		log.Error().Err(err).Str("runId", report.RunID).Msg("EventBridge PutEvents failed")
		return fmt.Errorf("PutEvents: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, ent := range result.Entries {
			if ent.ErrorCode != nil || ent.ErrorMessage != nil {
				log.Error().
					Int("index", i).
					Str("errorCode", aws.ToString(ent.ErrorCode)).
					Str("errorMessage", aws.ToString(ent.ErrorMessage)).
					Str("runId", report.RunID).
					Msg("EventBridge PutEvents entry failed")
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", i, aws.ToString(ent.ErrorCode), aws.ToString(ent.ErrorMessage))
			}
		}
	}

	log.Debug().Str("runId", report.RunID).Bool("suspended", report.Suspended).Msg("Run summary emitted to EventBridge")
	return nil
}
