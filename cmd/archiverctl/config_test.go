package main

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/archive"
)

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archiver.yaml")
	content := `destination_bucket: yaml-bucket
tag_key: DailyLogsArchive
tag_values: ["true", staging]
concurrency: 2
checkpoint_table: archive-checkpoints
manifest_prefix: audit/runs
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg := &runConfig{}
	if err := loadFromYAML(cfg, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bucket != "yaml-bucket" {
		t.Errorf("expected bucket yaml-bucket, got %s", cfg.Bucket)
	}
	if cfg.TagKey != "DailyLogsArchive" {
		t.Errorf("expected tag key DailyLogsArchive, got %s", cfg.TagKey)
	}
	if !reflect.DeepEqual(cfg.TagValues, []string{"true", "staging"}) {
		t.Errorf("unexpected tag values: %v", cfg.TagValues)
	}
	if cfg.Concurrency != 2 {
		t.Errorf("expected concurrency 2, got %d", cfg.Concurrency)
	}
	if cfg.CheckpointTable != "archive-checkpoints" {
		t.Errorf("unexpected checkpoint table: %s", cfg.CheckpointTable)
	}
	if cfg.ManifestPrefix != "audit/runs" {
		t.Errorf("unexpected manifest prefix: %s", cfg.ManifestPrefix)
	}
}

func TestLoadFromYAML_MissingFile(t *testing.T) {
	cfg := &runConfig{}
	err := loadFromYAML(cfg, filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestLoadFromEnv_OverridesYAMLValues(t *testing.T) {
	t.Setenv("DESTINATION_BUCKET_NAME", "env-bucket")
	t.Setenv("ARCHIVE_TAG_VALUES", "true,staging")
	t.Setenv("ARCHIVE_CONCURRENCY", "3")

	cfg := &runConfig{Bucket: "yaml-bucket", Concurrency: 1}
	loadFromEnv(cfg)

	if cfg.Bucket != "env-bucket" {
		t.Errorf("expected env bucket to win, got %s", cfg.Bucket)
	}
	if !reflect.DeepEqual(cfg.TagValues, []string{"true", "staging"}) {
		t.Errorf("unexpected tag values: %v", cfg.TagValues)
	}
	if cfg.Concurrency != 3 {
		t.Errorf("expected concurrency 3, got %d", cfg.Concurrency)
	}
}

func TestTrigger_Selection(t *testing.T) {
	tests := []struct {
		name     string
		cfg      runConfig
		wantKind archive.TriggerKind
		wantErr  bool
	}{
		{
			name:     "tag selector",
			cfg:      runConfig{TagKey: "archive", TagValues: []string{"daily"}},
			wantKind: archive.TriggerTagSelector,
		},
		{
			name:     "single log group",
			cfg:      runConfig{LogGroup: "/aws/lambda/app"},
			wantKind: archive.TriggerSingleSource,
		},
		{
			name:    "both set",
			cfg:     runConfig{TagKey: "archive", LogGroup: "/aws/lambda/app"},
			wantErr: true,
		},
		{
			name:    "neither set",
			cfg:     runConfig{},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger, err := tt.cfg.trigger()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if trigger.Kind != tt.wantKind {
				t.Errorf("expected kind %d, got %d", tt.wantKind, trigger.Kind)
			}
		})
	}
}
