// Package main provides archiverctl, an operational CLI for the daily log
// group archiver.
//
// It drives the same run logic as the Lambda entry point from a developer
// machine: full archive runs, tag discovery, and window inspection.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/archive"
	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/cli"
	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/cwlogs"
	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/discovery"
	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/lambdaboot"
	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/logging"
	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/manifest"
	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/notify"
	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/store"
	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/workflow"
)

// CLI flags
var (
	configFlag         string
	bucketFlag         string
	tagKeyFlag         string
	tagValuesFlag      []string
	logGroupFlag       string
	concurrencyFlag    int
	checkpointFlag     string
	eventBusFlag       string
	manifestPrefixFlag string
	dryRunFlag         bool
	atFlag             string
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "archiverctl",
	Short: "Operate the daily CloudWatch log group archiver",
	Long: `archiverctl runs the daily log group export from a developer machine,
using the same run logic as the Lambda entry point.

Archive runs export the previous UTC day of each selected log group to the
destination S3 bucket. Log groups are selected either by resource tag or by
naming a single log group.

Examples:
  archiverctl run --tag-key DailyLogsArchive --tag-values true --bucket my-archive
  archiverctl run --log-group /aws/lambda/app --bucket my-archive
  archiverctl run --tag-key team --tag-values core,infra --dry-run
  archiverctl discover --tag-key DailyLogsArchive --tag-values true
  archiverctl window --at 2024-07-02T09:00:00Z`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute an archive run",
	Run:   runRun,
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List log groups selected by tag",
	Run:   runDiscover,
}

var windowCmd = &cobra.Command{
	Use:   "window",
	Short: "Print the archive window",
	Run:   runWindow,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "archiver.yaml", "Config file path")

	runCmd.Flags().StringVarP(&bucketFlag, "bucket", "b", "", "Destination S3 bucket")
	runCmd.Flags().StringVar(&tagKeyFlag, "tag-key", "", "Tag key selecting log groups")
	runCmd.Flags().StringSliceVar(&tagValuesFlag, "tag-values", nil, "Tag values selecting log groups (comma-separated)")
	runCmd.Flags().StringVar(&logGroupFlag, "log-group", "", "Single log group to archive")
	runCmd.Flags().IntVar(&concurrencyFlag, "concurrency", 0, "Concurrent exports (default 1)")
	runCmd.Flags().StringVar(&checkpointFlag, "checkpoint-table", "", "DynamoDB table for run checkpoints")
	runCmd.Flags().StringVar(&eventBusFlag, "event-bus", "", "EventBridge bus for run summary events")
	runCmd.Flags().StringVar(&manifestPrefixFlag, "manifest-prefix", "", "Run manifest key prefix (default: manifests)")
	runCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Resolve the worklist without creating export tasks")

	discoverCmd.Flags().StringVar(&tagKeyFlag, "tag-key", "", "Tag key selecting log groups")
	discoverCmd.Flags().StringSliceVar(&tagValuesFlag, "tag-values", nil, "Tag values selecting log groups (comma-separated)")

	windowCmd.Flags().StringVar(&atFlag, "at", "", "Compute the window as of this RFC3339 instant instead of now")

	rootCmd.AddCommand(runCmd, discoverCmd, windowCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runRun executes a full archive run (or a dry run) from this machine.
func runRun(cmd *cobra.Command, args []string) {
	logging.InitConsole()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	trigger, err := cfg.trigger()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid selection")
	}

	ctx := context.Background()
	clients := lambdaboot.InitAWS()
	window := archive.PreviousDay(time.Now())

	if dryRunFlag {
		names := resolveWorklist(ctx, clients, trigger)
		fmt.Printf("Window %s\n", cli.FormatWindow(window))
		for _, name := range names {
			fmt.Println(cli.FormatSourceLine(name, window))
		}
		fmt.Printf("%d log group(s) would be exported\n", len(names))
		return
	}

	if cfg.Bucket == "" {
		log.Fatal().Msg("Destination bucket is required (--bucket, DESTINATION_BUCKET_NAME, or destination_bucket in the config file)")
	}

	var journal workflow.Journal = workflow.NewMemoryJournal()
	if cfg.CheckpointTable != "" {
		journal = store.NewCheckpointStore(dynamodb.NewFromConfig(clients.Config), cfg.CheckpointTable)
	}

	h := archive.NewHandler(
		archive.Config{DestinationBucket: cfg.Bucket, Concurrency: cfg.Concurrency},
		discovery.NewTagging(resourcegroupstaggingapi.NewFromConfig(clients.Config)),
		cwlogs.NewExporter(cloudwatchlogs.NewFromConfig(clients.Config)),
		journal,
		workflow.SystemClock(),
	).WithManifest(&consoleReporter{
		next: manifest.NewWriter(s3.NewFromConfig(clients.Config), cfg.Bucket, cfg.ManifestPrefix),
	})
	if cfg.EventBus != "" {
		h = h.WithNotifier(notify.NewEmitter(eventbridge.NewFromConfig(clients.Config), cfg.EventBus))
	}

	res, err := h.Handle(ctx, trigger)
	if err != nil {
		log.Fatal().Err(err).Msg("Archive run failed")
	}
	fmt.Printf("Exported %d log group(s)\n", res.ExportedCount)
}

// runDiscover lists the log groups the tag selector resolves to.
func runDiscover(cmd *cobra.Command, args []string) {
	logging.InitConsole()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.TagKey == "" && len(cfg.TagValues) == 0 {
		log.Fatal().Msg("A tag selection is required: --tag-key and --tag-values")
	}

	trigger := archive.TriggerInput{
		Kind:      archive.TriggerTagSelector,
		TagKey:    cfg.TagKey,
		TagValues: cfg.TagValues,
	}
	names := resolveWorklist(context.Background(), lambdaboot.InitAWS(), trigger)
	for _, name := range names {
		fmt.Println(name)
	}
}

// runWindow prints the archive window, by default for a run starting now.
func runWindow(cmd *cobra.Command, args []string) {
	logging.InitConsole()

	now := time.Now()
	if atFlag != "" {
		parsed, err := time.Parse(time.RFC3339, atFlag)
		if err != nil {
			log.Fatal().Err(err).Str("at", atFlag).Msg("Invalid --at instant, expected RFC3339")
		}
		now = parsed
	}

	w := archive.PreviousDay(now)
	fmt.Printf("Date:   %s\n", w.DateKey())
	fmt.Printf("Window: %s\n", cli.FormatWindow(w))
	fmt.Printf("Millis: %d .. %d\n", w.FromMillis(), w.ToMillis())
}

// resolveWorklist runs the same discovery the handler would, against a
// throwaway journal.
func resolveWorklist(ctx context.Context, clients lambdaboot.AWSClients, trigger archive.TriggerInput) []string {
	run := workflow.NewRunner("archiverctl", workflow.NewMemoryJournal(), workflow.SystemClock())
	resolver := archive.NewResolver(discovery.NewTagging(resourcegroupstaggingapi.NewFromConfig(clients.Config)), run)

	names, err := resolver.Resolve(ctx, trigger)
	if err != nil {
		log.Fatal().Err(err).Msg("Worklist resolution failed")
	}
	return names
}

// consoleReporter prints the run report to the terminal, then forwards it
// to the S3 manifest writer.
type consoleReporter struct {
	next archive.ManifestWriter
}

func (c *consoleReporter) WriteRunManifest(ctx context.Context, report archive.RunReport) error {
	fmt.Println(cli.FormatRunSummary(report))
	if c.next == nil {
		return nil
	}
	return c.next.WriteRunManifest(ctx, report)
}
