package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Clustering selects and tunes the clustering algorithm.
type Clustering struct {
	Algorithm     string  `toml:"algorithm"`
	Seed          int64   `toml:"seed"`
	Restarts      int     `toml:"restarts"`
	MaxIterations int     `toml:"max_iterations"`
	OPTICSMaxEps  float64 `toml:"optics_max_eps"`
}

// Naming configures how clusters get their names.
type Naming struct {
	Mode         string `toml:"mode"`
	MaxNamed     int    `toml:"max_named"`
	SampleImages int    `toml:"sample_images"`
	// SheetDir receives contact sheets for review. Empty means a temp dir.
	SheetDir string `toml:"sheet_dir"`
}

// Axes selects which optional axes are clustered and which one drives the
// on-disk layout. The costume axis always runs.
type Axes struct {
	Appearance bool   `toml:"appearance"`
	Scene      bool   `toml:"scene"`
	DirMode    string `toml:"dir_mode"`
}

// Merge configures annotation rewriting.
type Merge struct {
	// LabelPlaceholders writes positional names such as "costume_0" into
	// annotations in auto mode too.
	LabelPlaceholders bool `toml:"label_placeholders"`
}

// Materialize configures dataset repackaging.
type Materialize struct {
	Copy bool `toml:"copy"`
	Move bool `toml:"move"`
}

// LLM contains the vision naming service connection.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
}

// Safety locates the content rating model and ONNX Runtime.
type Safety struct {
	ModelsDir       string `toml:"models_dir"`
	ONNXRuntimePath string `toml:"onnxruntime_path"`
}

// Paths contains optional file locations.
type Paths struct {
	Vocabulary string `toml:"vocabulary"`
	// Ledger is the result database. Empty means <parent>/.tagcluster/ledger.db.
	Ledger string `toml:"ledger"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Freshness protects recently edited annotations.
type Freshness struct {
	// Days skips rewriting annotations modified within this many days. 0 disables.
	Days int `toml:"days"`
}

// Config encapsulates all configuration values for tagcluster.
type Config struct {
	Clustering  Clustering  `toml:"clustering"`
	Naming      Naming      `toml:"naming"`
	Axes        Axes        `toml:"axes"`
	Merge       Merge       `toml:"merge"`
	Materialize Materialize `toml:"materialize"`
	LLM         LLM         `toml:"llm"`
	Safety      Safety      `toml:"safety"`
	Paths       Paths       `toml:"paths"`
	Logging     Logging     `toml:"logging"`
	Freshness   Freshness   `toml:"freshness"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/tagcluster/config.toml")
}

// Load locates, parses, and validates a configuration file. A missing file
// yields the defaults. The returned config has all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tagcluster.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
