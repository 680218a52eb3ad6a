// Package cli holds presentation helpers for the archiverctl command.
package cli

import (
	"fmt"
	"strings"

	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/archive"
)

// FormatWindow renders an archive window as a UTC range.
func FormatWindow(w archive.Window) string {
	return fmt.Sprintf("%s .. %s UTC",
		w.From.Format("2006-01-02 15:04:05"),
		w.To.Format("2006-01-02 15:04:05.000"))
}

// FormatSourceLine renders one worklist row with its destination prefix.
func FormatSourceLine(name string, w archive.Window) string {
	return fmt.Sprintf("  %-50s -> %s", name, w.Prefix(archive.Sanitize(name)))
}

// FormatRunSummary renders the end-of-run report for the terminal.
func FormatRunSummary(report archive.RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s (%s) -> s3://%s\n", report.RunID, report.Date, report.Bucket)
	for _, s := range report.Sources {
		line := fmt.Sprintf("  [%s] %s", s.Status, s.Name)
		if s.Error != "" {
			line += ": " + s.Error
		}
		b.WriteString(line + "\n")
	}
	fmt.Fprintf(&b, "exported %d, failed %d", report.Exported, report.Failed)
	if report.Suspended {
		b.WriteString(", suspended")
	}
	return b.String()
}
