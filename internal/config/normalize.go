package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeChoices()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.Vocabulary, err = expandPath(c.Paths.Vocabulary); err != nil {
		return fmt.Errorf("paths.vocabulary: %w", err)
	}
	if c.Paths.Ledger, err = expandPath(c.Paths.Ledger); err != nil {
		return fmt.Errorf("paths.ledger: %w", err)
	}
	if c.Naming.SheetDir, err = expandPath(c.Naming.SheetDir); err != nil {
		return fmt.Errorf("naming.sheet_dir: %w", err)
	}
	if c.Safety.ModelsDir, err = expandPath(c.Safety.ModelsDir); err != nil {
		return fmt.Errorf("safety.models_dir: %w", err)
	}
	if c.Safety.ONNXRuntimePath, err = expandPath(c.Safety.ONNXRuntimePath); err != nil {
		return fmt.Errorf("safety.onnxruntime_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok && strings.TrimSpace(value) != "" {
		c.LLM.APIKey = strings.TrimSpace(value)
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
}

func (c *Config) normalizeChoices() {
	c.Clustering.Algorithm = strings.ToLower(strings.TrimSpace(c.Clustering.Algorithm))
	c.Naming.Mode = strings.ToLower(strings.TrimSpace(c.Naming.Mode))
	c.Axes.DirMode = strings.ToLower(strings.TrimSpace(c.Axes.DirMode))
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
