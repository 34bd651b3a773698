package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultHasSaneValues(t *testing.T) {
	cfg := Default()
	if len(cfg.Symbols) != 1 || cfg.Symbols[0].Symbol != "BTCUSDT" {
		t.Fatalf("unexpected default symbols: %+v", cfg.Symbols)
	}
	if cfg.Replay.Speed != 1 || cfg.Replay.Clock != ClockLogical {
		t.Fatalf("unexpected default replay config: %+v", cfg.Replay)
	}
	if cfg.Checkpoint.IntervalEvents != 5000 || cfg.Checkpoint.IntervalWallMs != 30000 {
		t.Fatalf("unexpected default checkpoint config: %+v", cfg.Checkpoint)
	}
	if !cfg.Matching.TreatLimitAsMaker || cfg.Matching.UseAggressorForLiquidity {
		t.Fatalf("unexpected default matching config: %+v", cfg.Matching)
	}
	if cfg.Archive.Enabled || cfg.Boundary.Enabled {
		t.Fatalf("expected archive and boundary disabled by default")
	}
}

func TestLoadWithNoFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Symbols) != 1 || cfg.Symbols[0].Symbol != "BTCUSDT" {
		t.Fatalf("expected defaults when no file given, got %+v", cfg.Symbols)
	}
}

func TestLoadReadsYAMLFileOverridingDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tradeforge.yaml")
	yaml := "replay:\n  speed: 5\n  clock: wall\ncheckpoint:\n  intervalEvents: 100\nboundary:\n  enabled: true\n  addr: \":9090\"\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Replay.Speed != 5 || cfg.Replay.Clock != ClockWall {
		t.Fatalf("expected file to override replay config, got %+v", cfg.Replay)
	}
	if cfg.Checkpoint.IntervalEvents != 100 {
		t.Fatalf("expected file to override checkpoint interval, got %d", cfg.Checkpoint.IntervalEvents)
	}
	if !cfg.Boundary.Enabled || cfg.Boundary.Addr != ":9090" {
		t.Fatalf("expected file to override boundary config, got %+v", cfg.Boundary)
	}
	if cfg.Fee.MakerBps != 0 {
		t.Fatalf("expected unspecified fields to keep their defaults, got %+v", cfg.Fee)
	}
}

func TestLoadEnvVarOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tradeforge.yaml")
	if err := os.WriteFile(path, []byte("replay:\n  speed: 5\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	t.Setenv("TRADEFORGE_REPLAY_SPEED", "10")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Replay.Speed != 10 {
		t.Fatalf("expected env var to win over file, got %v", cfg.Replay.Speed)
	}
}

func TestMergePreferredTranslatesToTimelineSource(t *testing.T) {
	cfg := Default()
	if cfg.Merge.Preferred() != "DEPTH" {
		t.Fatalf("expected depth preferred by default, got %v", cfg.Merge.Preferred())
	}
	cfg.Merge.PreferDepthOnEqualTs = false
	if cfg.Merge.Preferred() != "TRADES" {
		t.Fatalf("expected trades when preference flipped, got %v", cfg.Merge.Preferred())
	}
}
