package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/archive"
)

// runConfig holds the CLI configuration for archive runs.
// Priority: CLI flags > environment variables > YAML file > defaults.
type runConfig struct {
	Bucket          string
	TagKey          string
	TagValues       []string
	LogGroup        string
	Concurrency     int
	CheckpointTable string
	EventBus        string
	ManifestPrefix  string
}

// loadConfig assembles the configuration from all sources.
func loadConfig() (*runConfig, error) {
	cfg := &runConfig{}

	if configFlag != "" {
		if err := loadFromYAML(cfg, configFlag); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	// Override with CLI flags (highest priority).
	if bucketFlag != "" {
		cfg.Bucket = bucketFlag
	}
	if tagKeyFlag != "" {
		cfg.TagKey = tagKeyFlag
	}
	if len(tagValuesFlag) > 0 {
		cfg.TagValues = tagValuesFlag
	}
	if logGroupFlag != "" {
		cfg.LogGroup = logGroupFlag
	}
	if concurrencyFlag > 0 {
		cfg.Concurrency = concurrencyFlag
	}
	if checkpointFlag != "" {
		cfg.CheckpointTable = checkpointFlag
	}
	if eventBusFlag != "" {
		cfg.EventBus = eventBusFlag
	}
	if manifestPrefixFlag != "" {
		cfg.ManifestPrefix = manifestPrefixFlag
	}

	// Defaults.
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 1
	}
	if cfg.ManifestPrefix == "" {
		cfg.ManifestPrefix = "manifests"
	}

	return cfg, nil
}

// loadFromYAML loads configuration from a YAML file.
func loadFromYAML(cfg *runConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var yamlCfg struct {
		DestinationBucket string   `yaml:"destination_bucket"`
		TagKey            string   `yaml:"tag_key"`
		TagValues         []string `yaml:"tag_values"`
		LogGroup          string   `yaml:"log_group"`
		Concurrency       int      `yaml:"concurrency"`
		CheckpointTable   string   `yaml:"checkpoint_table"`
		EventBus          string   `yaml:"event_bus"`
		ManifestPrefix    string   `yaml:"manifest_prefix"`
	}
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return err
	}

	if yamlCfg.DestinationBucket != "" {
		cfg.Bucket = yamlCfg.DestinationBucket
	}
	if yamlCfg.TagKey != "" {
		cfg.TagKey = yamlCfg.TagKey
	}
	if len(yamlCfg.TagValues) > 0 {
		cfg.TagValues = yamlCfg.TagValues
	}
	if yamlCfg.LogGroup != "" {
		cfg.LogGroup = yamlCfg.LogGroup
	}
	if yamlCfg.Concurrency > 0 {
		cfg.Concurrency = yamlCfg.Concurrency
	}
	if yamlCfg.CheckpointTable != "" {
		cfg.CheckpointTable = yamlCfg.CheckpointTable
	}
	if yamlCfg.EventBus != "" {
		cfg.EventBus = yamlCfg.EventBus
	}
	if yamlCfg.ManifestPrefix != "" {
		cfg.ManifestPrefix = yamlCfg.ManifestPrefix
	}

	return nil
}

// loadFromEnv loads configuration from environment variables. Variable
// names match the Lambda entry point's, so a copied environment behaves
// the same way in both.
func loadFromEnv(cfg *runConfig) {
	if val := os.Getenv("DESTINATION_BUCKET_NAME"); val != "" {
		cfg.Bucket = val
	}
	if val := os.Getenv("ARCHIVE_TAG_KEY"); val != "" {
		cfg.TagKey = val
	}
	if val := os.Getenv("ARCHIVE_TAG_VALUES"); val != "" {
		cfg.TagValues = strings.Split(val, ",")
	}
	if val := os.Getenv("ARCHIVE_CONCURRENCY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Concurrency = n
		}
	}
	if val := os.Getenv("CHECKPOINT_TABLE_NAME"); val != "" {
		cfg.CheckpointTable = val
	}
	if val := os.Getenv("EVENT_BUS_NAME"); val != "" {
		cfg.EventBus = val
	}
	if val := os.Getenv("MANIFEST_PREFIX"); val != "" {
		cfg.ManifestPrefix = val
	}
}

// trigger builds the run trigger from the configured selection. The tag
// selector and the single log group are mutually exclusive.
func (c *runConfig) trigger() (archive.TriggerInput, error) {
	hasTag := c.TagKey != "" || len(c.TagValues) > 0
	if hasTag && c.LogGroup != "" {
		return archive.TriggerInput{}, fmt.Errorf("--tag-key/--tag-values and --log-group are mutually exclusive")
	}
	if hasTag {
		return archive.TriggerInput{
			Kind:      archive.TriggerTagSelector,
			TagKey:    c.TagKey,
			TagValues: c.TagValues,
		}, nil
	}
	if c.LogGroup != "" {
		return archive.TriggerInput{
			Kind:     archive.TriggerSingleSource,
			LogGroup: c.LogGroup,
		}, nil
	}
	return archive.TriggerInput{}, fmt.Errorf("a selection is required: --tag-key/--tag-values or --log-group")
}
