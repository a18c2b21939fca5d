package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	path := filepath.Join(t.TempDir(), "none.toml")

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Error("expected exists=false")
	}
	if resolved != path {
		t.Errorf("resolved = %q, want %q", resolved, path)
	}
	if cfg.Clustering.Algorithm != "agglomerative" || cfg.Naming.Mode != "auto" || cfg.Axes.DirMode != "costume" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Naming.MaxNamed != 20 || cfg.Naming.SampleImages != 8 {
		t.Errorf("naming defaults = %+v", cfg.Naming)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[clustering]
algorithm = "K-Means"
seed = 42

[naming]
mode = "Manual"

[axes]
scene = true
dir_mode = "scene"

[paths]
ledger = "~/ledger.db"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Error("expected exists=true")
	}
	if cfg.Clustering.Algorithm != "k-means" || cfg.Clustering.Seed != 42 {
		t.Errorf("clustering = %+v", cfg.Clustering)
	}
	if cfg.Naming.Mode != "manual" || !cfg.Axes.Scene || cfg.Axes.DirMode != "scene" {
		t.Errorf("naming/axes = %+v %+v", cfg.Naming, cfg.Axes)
	}
	home, _ := os.UserHomeDir()
	if cfg.Paths.Ledger != filepath.Join(home, "ledger.db") {
		t.Errorf("ledger path not expanded: %q", cfg.Paths.Ledger)
	}
	if cfg.Clustering.Restarts != 8 {
		t.Errorf("unset fields should keep defaults, restarts = %d", cfg.Clustering.Restarts)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"algorithm", "[clustering]\nalgorithm = \"dbscan\"\n", "clustering.algorithm"},
		{"mode", "[naming]\nmode = \"oracle\"\n", "naming.mode"},
		{"dir mode", "[axes]\ndir_mode = \"pose\"\n", "axes.dir_mode"},
		{"model without key", "[naming]\nmode = \"model\"\n", "llm.api_key"},
		{"log format", "[logging]\nformat = \"xml\"\n", "logging.format"},
		{"freshness", "[freshness]\ndays = -1\n", "freshness.days"},
		{"unknown key", "[naming]\nstyle = \"x\"\n", "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			os.WriteFile(path, []byte(tt.content), 0o644)
			_, _, _, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestEnvAPIKeyOverride(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	path := filepath.Join(t.TempDir(), "config.toml")
	os.WriteFile(path, []byte("[naming]\nmode = \"model\"\n[llm]\napi_key = \"sk-file\"\n"), 0o644)

	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.APIKey != "sk-env" {
		t.Errorf("api key = %q, want env value", cfg.LLM.APIKey)
	}
}

func TestSampleConfigMatchesDefaults(t *testing.T) {
	var cfg Config
	if err := toml.Unmarshal([]byte(sampleConfig), &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	def := Default()
	if cfg.Clustering != def.Clustering || cfg.Naming != def.Naming || cfg.Axes != def.Axes ||
		cfg.LLM != def.LLM || cfg.Logging != def.Logging || cfg.Freshness != def.Freshness ||
		cfg.Merge != def.Merge {
		t.Errorf("sample config drifted from defaults:\nsample  %+v\ndefault %+v", cfg, def)
	}
}

func TestSampleConfigExplainsPlaceholders(t *testing.T) {
	for _, want := range []string{"label_placeholders = false", `"costume_0"`, "auto mode"} {
		if !strings.Contains(sampleConfig, want) {
			t.Errorf("sample config should mention %s", want)
		}
	}
}

func TestCreateSample(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatal(err)
	}
	if _, _, exists, err := Load(path); err != nil || !exists {
		t.Errorf("sample config should load: exists=%v err=%v", exists, err)
	}
}
