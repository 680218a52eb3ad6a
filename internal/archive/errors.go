package archive

import "fmt"

// The error types below are distinct so the Lambda failure payload carries
// the kind as errorType. Callers classify with errors.As.

// ConfigurationError indicates required environment configuration is
// missing. Nothing external is called before this is raised.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", e.Setting)
}

// InputError indicates the trigger payload is malformed or incomplete.
// Nothing external is called before this is raised.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return "invalid trigger: " + e.Reason
}

// ExportCreationError indicates the logs service accepted an export task
// creation call but returned no task ID. Not retried.
type ExportCreationError struct {
	LogGroup string
}

func (e *ExportCreationError) Error() string {
	return fmt.Sprintf("export task creation for %s returned no task ID", e.LogGroup)
}

// ExportFailureError indicates an export task reported FAILED on the
// initial attempt and again on the retry.
type ExportFailureError struct {
	LogGroup string
	TaskID   string
}

func (e *ExportFailureError) Error() string {
	return fmt.Sprintf("export task %s for %s failed after retry", e.TaskID, e.LogGroup)
}
