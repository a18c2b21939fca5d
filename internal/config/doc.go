// Package config loads tagcluster settings from a TOML file.
//
// Values are resolved in three layers: built-in defaults, the config file
// (explicit --config path, ~/.config/tagcluster/config.toml, or
// ./tagcluster.toml), then the OPENAI_API_KEY environment variable. Command
// line flags are applied by the caller after Load returns.
package config
