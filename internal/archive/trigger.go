package archive

import (
	"encoding/json"
	"fmt"
)

// TriggerKind discriminates the two trigger payload variants.
type TriggerKind int

const (
	// TriggerTagSelector selects log groups by resource tag.
	TriggerTagSelector TriggerKind = iota
	// TriggerSingleSource names one log group directly.
	TriggerSingleSource
)

// TriggerInput is the decoded invocation payload.
type TriggerInput struct {
	Kind TriggerKind

	// Tag selector, valid when Kind == TriggerTagSelector.
	TagKey    string
	TagValues []string

	// Log group name, valid when Kind == TriggerSingleSource.
	LogGroup string

	// RunID resumes a previously suspended run. Empty for fresh triggers.
	RunID string
}

// wireTrigger is the JSON payload shape. The scheduled trigger sends
// tagKey/tagValues; the single-source form sends TargetLogGroupName;
// continuation invocations add runId.
type wireTrigger struct {
	TagKey             string   `json:"tagKey,omitempty"`
	TagValues          []string `json:"tagValues,omitempty"`
	TargetLogGroupName string   `json:"TargetLogGroupName,omitempty"`
	RunID              string   `json:"runId,omitempty"`
}

// ParseTrigger decodes an invocation payload. A payload carrying any
// selector field is classified as a tag selector; everything else is the
// single-source form. Field validation happens at resolve time, before any
// external call.
func ParseTrigger(raw []byte) (TriggerInput, error) {
	var w wireTrigger
	if err := json.Unmarshal(raw, &w); err != nil {
		return TriggerInput{}, &InputError{Reason: fmt.Sprintf("malformed payload: %v", err)}
	}

	t := TriggerInput{RunID: w.RunID}
	if w.TagKey != "" || len(w.TagValues) > 0 {
		t.Kind = TriggerTagSelector
		t.TagKey = w.TagKey
		t.TagValues = w.TagValues
		return t, nil
	}
	t.Kind = TriggerSingleSource
	t.LogGroup = w.TargetLogGroupName
	return t, nil
}

// Wire encodes the trigger back into payload form with the given run ID,
// for continuation invocations.
func (t TriggerInput) Wire(runID string) ([]byte, error) {
	w := wireTrigger{RunID: runID}
	switch t.Kind {
	case TriggerTagSelector:
		w.TagKey = t.TagKey
		w.TagValues = t.TagValues
	case TriggerSingleSource:
		w.TargetLogGroupName = t.LogGroup
	}
	payload, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode trigger: %w", err)
	}
	return payload, nil
}
