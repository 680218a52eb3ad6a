// Package lambdaboot provides shared Lambda cold-start bootstrap logic.
//
// Both entry points need some subset of: AWS config, destination bucket
// resolution, checkpoint journal, and startup logging. This package
// extracts the common init patterns so each init() is a short composition
// of helpers.
package lambdaboot

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/logging"
	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/store"
	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/workflow"
)

// AWSClients holds the core AWS SDK clients used across entry points.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// InitAWS loads the default AWS config and returns it along with common clients.
func InitAWS() AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// defaultBucketParam is the SSM parameter consulted when
// DESTINATION_BUCKET_NAME is not set.
const defaultBucketParam = "/daily-logs-archiver/prod/destination-bucket"

// DestinationBucketParam reports the SSM parameter path used for the
// destination bucket fallback, for startup logging.
func DestinationBucketParam() string {
	return logging.EnvOrDefault("SSM_DESTINATION_BUCKET_PARAM", defaultBucketParam)
}

// ResolveDestinationBucket reads the destination bucket name from
// DESTINATION_BUCKET_NAME, falling back to SSM Parameter Store. An empty
// result is not fatal here: the handler rejects the invocation with a
// configuration error, which keeps misconfiguration visible per-invocation
// instead of crash-looping the function.
func ResolveDestinationBucket(ssmClient *ssm.Client) string {
	if bucket := os.Getenv("DESTINATION_BUCKET_NAME"); bucket != "" {
		return bucket
	}

	paramName := DestinationBucketParam()
	ssmStart := time.Now()
	result, err := ssmClient.GetParameter(context.Background(), &ssm.GetParameterInput{
		Name: &paramName,
	})
	if err != nil {
		log.Warn().Err(err).Str("param", paramName).Msg("Destination bucket not found in SSM")
		return ""
	}
	log.Debug().Str("param", paramName).Dur("elapsed", time.Since(ssmStart)).Msg("Destination bucket loaded from SSM")
	return aws.ToString(result.Parameter.Value)
}

// InitJournal creates the checkpoint journal. With CHECKPOINT_TABLE_NAME
// set, checkpoints go to DynamoDB and runs survive across invocations;
// without it, runs fall back to an in-memory journal and restart from
// scratch when interrupted.
func InitJournal(cfg aws.Config) workflow.Journal {
	tableName := os.Getenv("CHECKPOINT_TABLE_NAME")
	if tableName == "" {
		log.Warn().Msg("CHECKPOINT_TABLE_NAME not set, run checkpoints are in-memory only")
		return workflow.NewMemoryJournal()
	}
	ddbClient := dynamodb.NewFromConfig(cfg)
	return store.NewCheckpointStore(ddbClient, tableName)
}

// CheckpointTable reports the configured checkpoint table name, for startup
// logging. Empty when checkpoints are in-memory.
func CheckpointTable() string {
	return os.Getenv("CHECKPOINT_TABLE_NAME")
}

// Concurrency reads ARCHIVE_CONCURRENCY. Unset, unparsable, or non-positive
// values fall back to 1, the safe default while the logs service allows one
// active export task per account.
func Concurrency() int {
	raw := os.Getenv("ARCHIVE_CONCURRENCY")
	if raw == "" {
		return 1
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		log.Warn().Str("value", raw).Msg("Invalid ARCHIVE_CONCURRENCY, using 1")
		return 1
	}
	return n
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
