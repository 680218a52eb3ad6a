// Package main provides the Lambda entry point for the daily log group
// archiver.
//
// The function is invoked once a day by an EventBridge schedule and exports
// the previous UTC day of every tagged log group to the destination S3
// bucket. It can also be invoked directly for a single log group.
//
// Event format for a tag-selected batch run:
//
//	{"tagKey": "...", "tagValues": ["...", ...]}
//
// and for a single log group:
//
//	{"TargetLogGroupName": "/aws/lambda/app"}
//
// Continuation invocations carry an additional "runId" field. They are
// self-issued when a run suspends near the invocation deadline and resume
// the run from its checkpoints.
package main

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/archive"
	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/cwlogs"
	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/discovery"
	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/lambdaboot"
	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/logging"
	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/manifest"
	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/notify"
	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/workflow"
)

var coldStart = true

// archiveHandler is assembled once at cold start.
var archiveHandler *archive.Handler

func init() {
	initStart := time.Now()
	logging.Init()

	clients := lambdaboot.InitAWS()
	bucket := lambdaboot.ResolveDestinationBucket(clients.SSM)
	journal := lambdaboot.InitJournal(clients.Config)
	concurrency := lambdaboot.Concurrency()

	h := archive.NewHandler(
		archive.Config{DestinationBucket: bucket, Concurrency: concurrency},
		discovery.NewTagging(resourcegroupstaggingapi.NewFromConfig(clients.Config)),
		cwlogs.NewExporter(cloudwatchlogs.NewFromConfig(clients.Config)),
		journal,
		workflow.SystemClock(),
	)

	manifestPrefix := logging.EnvOrDefault("MANIFEST_PREFIX", "manifests")
	if bucket != "" {
		h = h.WithManifest(manifest.NewWriter(s3.NewFromConfig(clients.Config), bucket, manifestPrefix))
	}

	eventBus := os.Getenv("EVENT_BUS_NAME")
	if eventBus != "" {
		h = h.WithNotifier(notify.NewEmitter(eventbridge.NewFromConfig(clients.Config), eventBus))
	}

	functionName := os.Getenv("AWS_LAMBDA_FUNCTION_NAME")
	if functionName != "" {
		h = h.WithContinuer(newSelfInvoker(clients.Config, functionName))
	}

	archiveHandler = h

	startup := lambdaboot.StartupLog("archiver-lambda", initStart).
		CommitHash(commitHash).
		BuildTime(buildTime).
		S3Bucket("destination", bucket).
		Feature("checkpoints", lambdaboot.CheckpointTable() != "").
		Feature("manifest", bucket != "").
		Feature("runSummaryEvents", eventBus != "").
		Config("concurrency", strconv.Itoa(concurrency)).
		Config("manifestPrefix", manifestPrefix)
	if os.Getenv("DESTINATION_BUCKET_NAME") == "" {
		startup = startup.SSMParam("destinationBucket", lambdaboot.DestinationBucketParam())
	}
	if table := lambdaboot.CheckpointTable(); table != "" {
		startup = startup.DynamoTable("checkpoints", table)
	}
	if eventBus != "" {
		startup = startup.EventBus("runSummary", eventBus)
	}
	if functionName != "" {
		startup = startup.LambdaFunc("continuation", functionName)
	}
	startup.Log()
}

func main() {
	lambda.Start(handler)
}

func handler(ctx context.Context, raw json.RawMessage) (archive.Result, error) {
	if coldStart {
		coldStart = false
		log.Info().Str("function", "archiver-lambda").Msg("Cold start — first invocation")
	}

	trigger, err := archive.ParseTrigger(raw)
	if err != nil {
		log.Error().Err(err).Str("payload", string(raw)).Msg("Trigger rejected")
		return archive.Result{}, err
	}

	return archiveHandler.Handle(ctx, trigger)
}
