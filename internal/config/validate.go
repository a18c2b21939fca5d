package config

import (
	"errors"
	"fmt"

	"github.com/bagtoad/tagcluster/internal/cluster"
	"github.com/bagtoad/tagcluster/internal/naming"
	"github.com/bagtoad/tagcluster/internal/tags"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateClustering(); err != nil {
		return err
	}
	if err := c.validateNaming(); err != nil {
		return err
	}
	if err := c.validateAxes(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Freshness.Days < 0 {
		return errors.New("freshness.days must be 0 or positive")
	}
	return nil
}

func (c *Config) validateClustering() error {
	if _, err := cluster.ParseAlgorithm(c.Clustering.Algorithm); err != nil {
		return fmt.Errorf("clustering.algorithm: %w", err)
	}
	if c.Clustering.Restarts < 0 || c.Clustering.MaxIterations < 0 {
		return errors.New("clustering.restarts and clustering.max_iterations must be 0 or positive")
	}
	if c.Clustering.OPTICSMaxEps < 0 || c.Clustering.OPTICSMaxEps > 2 {
		return errors.New("clustering.optics_max_eps must be between 0 and 2")
	}
	return nil
}

func (c *Config) validateNaming() error {
	if _, err := naming.ParseMode(c.Naming.Mode); err != nil {
		return fmt.Errorf("naming.mode: %w", err)
	}
	if c.Naming.MaxNamed < 0 || c.Naming.SampleImages < 0 {
		return errors.New("naming.max_named and naming.sample_images must be 0 or positive")
	}
	return nil
}

func (c *Config) validateAxes() error {
	if _, err := tags.ParseAxis(c.Axes.DirMode); err != nil {
		return fmt.Errorf("axes.dir_mode: %w", err)
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.TimeoutSeconds < 0 || c.LLM.RetryAttempts < 0 {
		return errors.New("llm.timeout_seconds and llm.retry_attempts must be 0 or positive")
	}
	mode, _ := naming.ParseMode(c.Naming.Mode)
	if mode == naming.ModeModel && c.LLM.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/tagcluster/config.toml"
		}
		return fmt.Errorf("llm.api_key is required for model naming. Set OPENAI_API_KEY or edit %s (create with 'tagcluster init-config')", defaultPath)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (want auto, console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
