// Package manifest writes one JSON report object to S3 per archive run.
package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/archive"
)

// Writer persists run reports under {prefix}/{yyyy}/{mm}/{dd}/{runID}.json
// in the destination bucket, next to the exported log data.
type Writer struct {
	client *s3.Client
	bucket string
	prefix string
}

// Compile-time interface check.
var _ archive.ManifestWriter = (*Writer)(nil)

// NewWriter creates a Writer. An empty prefix puts manifests at the bucket
// root's date path.
func NewWriter(client *s3.Client, bucket, prefix string) *Writer {
	return &Writer{client: client, bucket: bucket, prefix: prefix}
}

// WriteRunManifest uploads the report as a JSON object.
func (w *Writer) WriteRunManifest(ctx context.Context, report archive.RunReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal run manifest %s: %w", report.RunID, err)
	}

	key := objectKey(w.prefix, report.Date, report.RunID)
	contentType := "application/json"
	_, err = w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &w.bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("upload run manifest %s: %w", key, err)
	}

	log.Info().
		Str("runId", report.RunID).
		Str("key", key).
		Int("sources", len(report.Sources)).
		Msg("Run manifest uploaded to S3")
	return nil
}

// objectKey builds the manifest key. date is the run's window date in
// YYYY-MM-DD form and becomes the yyyy/mm/dd path segment.
func objectKey(prefix, date, runID string) string {
	datePath := strings.ReplaceAll(date, "-", "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s.json", datePath, runID)
	}
	return fmt.Sprintf("%s/%s/%s.json", strings.TrimSuffix(prefix, "/"), datePath, runID)
}
