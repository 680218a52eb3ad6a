// Package cwlogs adapts the CloudWatch Logs export task API to the archive
// run's ExportTasks surface.
package cwlogs

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/rs/zerolog/log"

	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/archive"
)

// Exporter drives export tasks through the CloudWatch Logs API.
// The client should be initialized from the shared AWS config.
type Exporter struct {
	client *cloudwatchlogs.Client
}

// Compile-time interface check.
var _ archive.ExportTasks = (*Exporter)(nil)

// NewExporter creates an Exporter.
func NewExporter(client *cloudwatchlogs.Client) *Exporter {
	return &Exporter{client: client}
}

// Create starts an export task. The service can accept the call and still
// return no task ID; that surfaces as ("", nil) and the caller treats it as
// a fatal creation failure.
func (e *Exporter) Create(ctx context.Context, req archive.ExportRequest) (string, error) {
	out, err := e.client.CreateExportTask(ctx, &cloudwatchlogs.CreateExportTaskInput{
		LogGroupName:      aws.String(req.LogGroup),
		Destination:       aws.String(req.Destination),
		DestinationPrefix: aws.String(req.Prefix),
		From:              aws.Int64(req.FromMillis),
		To:                aws.Int64(req.ToMillis),
		TaskName:          aws.String(req.TaskName),
	})
	if err != nil {
		return "", fmt.Errorf("CreateExportTask %s: %w", req.LogGroup, err)
	}
	return aws.ToString(out.TaskId), nil
}

// Status reports an export task's current status code. A task the service
// no longer knows about is an error, not a status; the poll loop only
// tolerates unknown codes, not missing tasks.
func (e *Exporter) Status(ctx context.Context, taskID string) (archive.TaskStatus, error) {
	out, err := e.client.DescribeExportTasks(ctx, &cloudwatchlogs.DescribeExportTasksInput{
		TaskId: aws.String(taskID),
	})
	if err != nil {
		return "", fmt.Errorf("DescribeExportTasks %s: %w", taskID, err)
	}
	if len(out.ExportTasks) == 0 || out.ExportTasks[0].Status == nil {
		return "", fmt.Errorf("export task %s not found", taskID)
	}

	status := archive.TaskStatus(out.ExportTasks[0].Status.Code)
	log.Debug().Str("taskId", taskID).Str("status", string(status)).Msg("Export task status")
	return status, nil
}
