// Package metrics emits AWS CloudWatch Embedded Metric Format (EMF)
// documents. An EMF document is a single JSON line on stdout; CloudWatch
// Logs extracts the embedded metrics with no API calls and no added
// latency.
//
// See: https://docs.aws.amazon.com/AmazonCloudWatch/latest/monitoring/CloudWatch_Embedded_Metric_Format_Specification.html
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"
)

// Standard CloudWatch metric units.
const (
	UnitMilliseconds = "Milliseconds"
	UnitCount        = "Count"
	UnitBytes        = "Bytes"
	UnitNone         = "None"
)

// out is swapped by tests. Production EMF must reach stdout: the Lambda
// runtime forwards stdout to CloudWatch Logs, where extraction happens.
var out io.Writer = os.Stdout

// metricDef is one metric's name and unit in the _aws directive.
type metricDef struct {
	Name string `json:"Name"`
	Unit string `json:"Unit"`
}

// Recorder accumulates one EMF document: dimensions, metric values, and
// free-form properties. Metric definitions keep insertion order and
// dimension keys are sorted, so output is deterministic. Not safe for
// concurrent use; create one Recorder per run.
type Recorder struct {
	namespace  string
	dimensions map[string]string
	defs       []metricDef
	values     map[string]float64
	properties map[string]any
}

// New creates a Recorder for the given CloudWatch namespace. When running
// in Lambda, the FunctionName dimension is added automatically.
func New(namespace string) *Recorder {
	r := &Recorder{
		namespace:  namespace,
		dimensions: make(map[string]string),
		values:     make(map[string]float64),
		properties: make(map[string]any),
	}
	if fn := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); fn != "" {
		r.dimensions["FunctionName"] = fn
	}
	return r
}

// Dimension adds a dimension key-value pair. Dimensions are indexed by
// CloudWatch and appear as filterable attributes on every metric in the
// document.
func (r *Recorder) Dimension(key, value string) *Recorder {
	r.dimensions[key] = value
	return r
}

// Metric records a named metric value with a CloudWatch unit. Recording
// the same name again overwrites the value but keeps one definition.
func (r *Recorder) Metric(name string, value float64, unit string) *Recorder {
	if _, seen := r.values[name]; !seen {
		r.defs = append(r.defs, metricDef{Name: name, Unit: unit})
	}
	r.values[name] = value
	return r
}

// Count records a count metric with value 1.
func (r *Recorder) Count(name string) *Recorder {
	return r.Metric(name, 1, UnitCount)
}

// Property adds a non-metric field. Properties are searchable in
// CloudWatch Logs Insights but create no metrics.
func (r *Recorder) Property(key string, value any) *Recorder {
	r.properties[key] = value
	return r
}

// Flush serializes the document as one JSON line. A Recorder with no
// metrics emits nothing. The Recorder should not be reused after Flush.
func (r *Recorder) Flush() {
	if len(r.defs) == 0 {
		return
	}

	dimKeys := make([]string, 0, len(r.dimensions))
	for k := range r.dimensions {
		dimKeys = append(dimKeys, k)
	}
	sort.Strings(dimKeys)

	doc := make(map[string]any, len(r.dimensions)+len(r.values)+len(r.properties)+1)
	doc["_aws"] = map[string]any{
		"Timestamp": time.Now().UnixMilli(),
		"CloudWatchMetrics": []map[string]any{{
			"Namespace":  r.namespace,
			"Dimensions": [][]string{dimKeys},
			"Metrics":    r.defs,
		}},
	}
	for k, v := range r.dimensions {
		doc[k] = v
	}
	for k, v := range r.values {
		doc[k] = v
	}
	for k, v := range r.properties {
		doc[k] = v
	}

	data, err := json.Marshal(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "metrics: marshal EMF document: %v\n", err)
		return
	}
	fmt.Fprintln(out, string(data))
}
