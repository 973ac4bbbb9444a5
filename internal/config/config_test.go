package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	def := DefaultConfig()
	if cfg.Tiers.WarmWindow != def.Tiers.WarmWindow {
		t.Errorf("WarmWindow = %d, want default %d", cfg.Tiers.WarmWindow, def.Tiers.WarmWindow)
	}
	if cfg.Database.Path != def.Database.Path {
		t.Errorf("Database.Path = %q, want default %q", cfg.Database.Path, def.Database.Path)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mnemo.yaml")
	content := []byte("tiers:\n  warm_window: 64\nsearch:\n  top_k: 25\n")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Tiers.WarmWindow != 64 {
		t.Errorf("WarmWindow = %d, want 64", cfg.Tiers.WarmWindow)
	}
	if cfg.Search.TopK != 25 {
		t.Errorf("TopK = %d, want 25", cfg.Search.TopK)
	}
	// Untouched sections keep their defaults.
	if cfg.Embedding.Model != "embeddinggemma" {
		t.Errorf("Embedding.Model = %q, want default", cfg.Embedding.Model)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("tiers: [not a map"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load accepted malformed YAML")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MNEMO_DB_PATH", "/tmp/override.db")
	t.Setenv("MNEMO_WARM_WINDOW", "999")
	t.Setenv("MNEMO_DEBUG", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.Tiers.WarmWindow != 999 {
		t.Errorf("WarmWindow = %d, want 999", cfg.Tiers.WarmWindow)
	}
	if !cfg.Logging.Debug {
		t.Error("Logging.Debug not overridden")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "Defaults Are Valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "Negative Hot Capacity",
			mutate:  func(c *Config) { c.Tiers.HotCapacityBytes = -1 },
			wantErr: true,
		},
		{
			name:    "Zero Warm Window",
			mutate:  func(c *Config) { c.Tiers.WarmWindow = 0 },
			wantErr: true,
		},
		{
			name:    "Inverted Thresholds",
			mutate:  func(c *Config) { c.Allocation.PromotionThreshold = 0.1 },
			wantErr: true,
		},
		{
			name:    "Boost Out Of Range",
			mutate:  func(c *Config) { c.Search.ContextBoost = 1.5 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "mnemo.yaml")

	cfg := DefaultConfig()
	cfg.Tiers.WarmWindow = 77
	cfg.Search.ContextBoost = 0.6
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Tiers.WarmWindow != 77 {
		t.Errorf("WarmWindow = %d, want 77", loaded.Tiers.WarmWindow)
	}
	if loaded.Search.ContextBoost != 0.6 {
		t.Errorf("ContextBoost = %v, want 0.6", loaded.Search.ContextBoost)
	}
}
