package archive

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/workflow"
)

// TagPage is one page of tag-filtered discovery results.
type TagPage struct {
	ARNs      []string
	NextToken string
}

// SourceDiscoverer returns one page of log group ARNs carrying the given
// tag. An empty pageToken requests the first page.
type SourceDiscoverer interface {
	LogGroupsByTag(ctx context.Context, key string, values []string, pageToken string) (TagPage, error)
}

// Resolver turns a trigger into the ordered worklist of log group names.
type Resolver struct {
	discoverer SourceDiscoverer
	run        *workflow.Runner
}

// NewResolver creates a Resolver executing under the given run.
func NewResolver(discoverer SourceDiscoverer, run *workflow.Runner) *Resolver {
	return &Resolver{discoverer: discoverer, run: run}
}

// Resolve returns log group names in discovery order. Selector validation
// happens before the first external call. Duplicate names in the result
// are kept and exported independently.
func (r *Resolver) Resolve(ctx context.Context, t TriggerInput) ([]string, error) {
	switch t.Kind {
	case TriggerTagSelector:
		if t.TagKey == "" {
			return nil, &InputError{Reason: "tag key is required"}
		}
		if len(t.TagValues) == 0 {
			return nil, &InputError{Reason: "at least one tag value is required"}
		}
		return r.resolveByTag(ctx, t.TagKey, t.TagValues)
	case TriggerSingleSource:
		if t.LogGroup == "" {
			return nil, &InputError{Reason: "TargetLogGroupName is required"}
		}
		return []string{t.LogGroup}, nil
	default:
		return nil, &InputError{Reason: fmt.Sprintf("unknown trigger kind %d", t.Kind)}
	}
}

// resolveByTag pages through the tagging API until no continuation token
// remains. Each page fetch is a journaled step, so a resumed run replays
// already fetched pages instead of re-querying.
func (r *Resolver) resolveByTag(ctx context.Context, key string, values []string) ([]string, error) {
	var names []string

	token := ""
	for page := 0; ; page++ {
		pageToken := token
		result, err := workflow.Step(ctx, r.run, fmt.Sprintf("discover#%d", page), func(ctx context.Context) (TagPage, error) {
			return r.discoverer.LogGroupsByTag(ctx, key, values, pageToken)
		})
		if err != nil {
			return nil, fmt.Errorf("discover log groups (page %d): %w", page, err)
		}

		for _, arn := range result.ARNs {
			names = append(names, SourceName(arn))
		}
		log.Debug().Int("page", page).Int("arns", len(result.ARNs)).Msg("Discovery page fetched")

		if result.NextToken == "" {
			break
		}
		token = result.NextToken
	}

	log.Info().Str("tagKey", key).Strs("tagValues", values).Int("logGroups", len(names)).Msg("Tag discovery complete")
	return names, nil
}
