package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConsoleConfig configures the live-data console: which columns are
// redacted from results, how mutating tools are confirmed, and the
// per-statement database timeout.
type ConsoleConfig struct {
	// RedactedColumns are replaced by the literal [REDACTED] in every
	// returned record.
	RedactedColumns []string `yaml:"redacted_columns"`

	// ConfirmationMode is auto_approve, auto_deny, or callback.
	ConfirmationMode string `yaml:"confirmation_mode"`

	// StatementTimeoutMS bounds every console query at the database layer.
	StatementTimeoutMS int `yaml:"statement_timeout_ms"`

	// MaxSQLRows caps the free-SQL tool's row limit.
	MaxSQLRows int `yaml:"max_sql_rows"`
}

// DefaultConsoleConfig returns the conservative defaults used when no
// console config file is configured.
func DefaultConsoleConfig() ConsoleConfig {
	return ConsoleConfig{
		RedactedColumns:    []string{"encrypted_password", "password_digest", "api_key", "token"},
		ConfirmationMode:   "auto_deny",
		StatementTimeoutMS: 5000,
		MaxSQLRows:         10000,
	}
}

// LoadConsoleConfig reads the console YAML file at path; an empty path
// yields the defaults.
func LoadConsoleConfig(path string) (ConsoleConfig, error) {
	cfg := DefaultConsoleConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read console config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse console config %s: %w", path, err)
	}
	if cfg.StatementTimeoutMS <= 0 {
		cfg.StatementTimeoutMS = 5000
	}
	if cfg.MaxSQLRows <= 0 || cfg.MaxSQLRows > 10000 {
		cfg.MaxSQLRows = 10000
	}
	return cfg, nil
}
