package archive

import (
	"fmt"
	"time"
)

// Window is the UTC day covered by one archival run.
type Window struct {
	From time.Time
	To   time.Time
}

// PreviousDay returns the window for the UTC day before now: 00:00:00.000
// through 23:59:59.999 inclusive. The window is recomputed from the clock
// on every invocation, never persisted.
func PreviousDay(now time.Time) Window {
	y, m, d := now.UTC().AddDate(0, 0, -1).Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return Window{
		From: from,
		To:   from.Add(24*time.Hour - time.Millisecond),
	}
}

// FromMillis returns the window start as Unix epoch milliseconds.
func (w Window) FromMillis() int64 { return w.From.UnixMilli() }

// ToMillis returns the window end as Unix epoch milliseconds.
func (w Window) ToMillis() int64 { return w.To.UnixMilli() }

// DateKey returns the window's day as yyyy-mm-dd.
func (w Window) DateKey() string { return w.From.Format("2006-01-02") }

// Prefix returns the destination path for a sanitized source name:
// {name}/{yyyy}/{mm}/{dd}/.
func (w Window) Prefix(sanitizedName string) string {
	return fmt.Sprintf("%s/%s/", sanitizedName, w.From.Format("2006/01/02"))
}
