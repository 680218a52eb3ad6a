// Package store persists run checkpoints in DynamoDB.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"

	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/workflow"
)

// DynamoDB key constants for the single-table design: one item per
// completed step, keyed by run.
const (
	pkPrefix = "RUN#"
	skPrefix = "STEP#"
)

// checkpointTTL keeps finished run journals queryable for a debugging
// window, then lets DynamoDB expire them.
const checkpointTTL = 14 * 24 * time.Hour

// checkpointItem is the persisted shape of one step record. PK, SK, and
// expiresAt are attached at write time.
type checkpointItem struct {
	Result     string `dynamodbav:"result,omitempty"`
	RecordedAt int64  `dynamodbav:"recordedAt"`
}

// CheckpointStore implements workflow.Journal on a DynamoDB table, so run
// checkpoints survive across Lambda invocations.
type CheckpointStore struct {
	client    *dynamodb.Client
	tableName string
}

// Compile-time interface check.
var _ workflow.Journal = (*CheckpointStore)(nil)

// NewCheckpointStore creates a CheckpointStore for the given table.
// The client should be initialized from the shared AWS config.
func NewCheckpointStore(client *dynamodb.Client, tableName string) *CheckpointStore {
	return &CheckpointStore{
		client:    client,
		tableName: tableName,
	}
}

// runPK returns the partition key for a run.
func runPK(runID string) string {
	return pkPrefix + runID
}

// stepSK returns the sort key for a step.
func stepSK(step string) string {
	return skPrefix + step
}

// expiresAt returns the Unix epoch timestamp for record expiration.
func expiresAt() int64 {
	return time.Now().Add(checkpointTTL).Unix()
}

// Lookup reads a step record. The read is strongly consistent: a resumed
// invocation must see every checkpoint the previous invocation wrote, or
// it would repeat completed steps.
func (s *CheckpointStore) Lookup(ctx context.Context, runID, step string) (*workflow.Entry, error) {
	pk, sk := runPK(runID), stepSK(step)

	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, sk, err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var item checkpointItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal PK=%s SK=%s: %w", pk, sk, err)
	}

	entry := &workflow.Entry{RecordedAt: time.Unix(item.RecordedAt, 0).UTC()}
	if item.Result != "" {
		entry.Result = json.RawMessage(item.Result)
	}
	return entry, nil
}

// Record writes a step record with the journal TTL.
func (s *CheckpointStore) Record(ctx context.Context, runID, step string, result json.RawMessage) error {
	pk, sk := runPK(runID), stepSK(step)

	item, err := attributevalue.MarshalMap(checkpointItem{
		Result:     string(result),
		RecordedAt: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}
	item["expiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt(), 10)}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, sk, err)
	}

	log.Debug().Str("runId", runID).Str("step", step).Msg("Checkpoint persisted to DynamoDB")
	return nil
}
