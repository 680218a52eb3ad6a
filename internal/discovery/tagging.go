// Package discovery resolves log groups by resource tag through the
// Resource Groups Tagging API.
package discovery

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	taggingtypes "github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi/types"

	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/archive"
)

// logGroupResourceType restricts GetResources to CloudWatch log groups.
const logGroupResourceType = "logs:log-group"

// Tagging implements tag-filtered log group discovery.
// The client should be initialized from the shared AWS config.
type Tagging struct {
	client *resourcegroupstaggingapi.Client
}

// Compile-time interface check.
var _ archive.SourceDiscoverer = (*Tagging)(nil)

// NewTagging creates a Tagging discoverer.
func NewTagging(client *resourcegroupstaggingapi.Client) *Tagging {
	return &Tagging{client: client}
}

// LogGroupsByTag returns one page of log group ARNs carrying the tag. An
// empty pageToken requests the first page; the returned NextToken is empty
// on the last page.
func (t *Tagging) LogGroupsByTag(ctx context.Context, key string, values []string, pageToken string) (archive.TagPage, error) {
	input := &resourcegroupstaggingapi.GetResourcesInput{
		ResourceTypeFilters: []string{logGroupResourceType},
		TagFilters: []taggingtypes.TagFilter{
			{Key: aws.String(key), Values: values},
		},
	}
	if pageToken != "" {
		input.PaginationToken = aws.String(pageToken)
	}

	out, err := t.client.GetResources(ctx, input)
	if err != nil {
		return archive.TagPage{}, fmt.Errorf("GetResources tag %s: %w", key, err)
	}

	page := archive.TagPage{NextToken: aws.ToString(out.PaginationToken)}
	for _, mapping := range out.ResourceTagMappingList {
		if arn := aws.ToString(mapping.ResourceARN); arn != "" {
			page.ARNs = append(page.ARNs, arn)
		}
	}
	return page, nil
}
