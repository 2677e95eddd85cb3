package cli

import (
	"testing"
)

func TestLoadConfigEmpty(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig(\"\") error = %v", err)
	}
	if cfg.Pipeline.TrunkMode != "" || cfg.Cache.URL != "" {
		t.Errorf("empty path should yield zero config, got %+v", cfg)
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, "heatgrid.toml", `
[pipeline]
trunk_mode = "street-plus-spurs"
attach_mode = "clustered"
weighted_plant = true
max_iterations = 8
spur_buffer_m = 150.0

[cache]
url = "redis://localhost:6379/0"
project = "north-side"
`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Pipeline.TrunkMode != "street-plus-spurs" {
		t.Errorf("trunk_mode = %q", cfg.Pipeline.TrunkMode)
	}
	if cfg.Pipeline.AttachMode != "clustered" || !cfg.Pipeline.WeightedPlant {
		t.Errorf("pipeline section not decoded: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.MaxIterations != 8 || cfg.Pipeline.SpurBuffer != 150.0 {
		t.Errorf("numeric options not decoded: %+v", cfg.Pipeline)
	}
	if cfg.Cache.URL != "redis://localhost:6379/0" || cfg.Cache.Project != "north-side" {
		t.Errorf("cache section not decoded: %+v", cfg.Cache)
	}

	// The decoded options must still validate.
	opts := cfg.Pipeline
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Errorf("decoded options rejected: %v", err)
	}
}

func TestLoadConfigBadMode(t *testing.T) {
	path := writeFile(t, "heatgrid.toml", `
[pipeline]
trunk_mode = "steiner"
`)
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	opts := cfg.Pipeline
	if err := opts.ValidateAndSetDefaults(); err == nil {
		t.Fatal("unknown trunk mode should fail validation")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := loadConfig("/nonexistent/heatgrid.toml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
