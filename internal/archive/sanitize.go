package archive

import "strings"

// Sanitize converts a log group name into a path-safe object key segment.
// Path separators become hyphens, one leading hyphen is dropped, and dots
// become double hyphens. The order of the three rewrites is significant:
// "/svc/app.name" becomes "svc-app--name".
func Sanitize(name string) string {
	s := strings.ReplaceAll(name, "/", "-")
	s = strings.TrimPrefix(s, "-")
	return strings.ReplaceAll(s, ".", "--")
}

// SourceName extracts a log group name from a fully qualified resource
// identifier by taking the seventh colon-delimited field. Identifiers with
// fewer fields are returned verbatim.
func SourceName(id string) string {
	parts := strings.Split(id, ":")
	if len(parts) > 6 {
		return parts[6]
	}
	return id
}
