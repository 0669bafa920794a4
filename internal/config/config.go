package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from a YAML string like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// Connection describes a named database connection.
type Connection struct {
	ID           string `yaml:"id"`
	Kind         string `yaml:"kind"`
	DSN          string `yaml:"dsn"`
	UseLegacySQL bool   `yaml:"use_legacy_sql"`
}

// Check describes a single data quality check. SQL may be given inline
// or via a file path; identifier, description, and SQL may reference
// named parameters as {{.name}}.
type Check struct {
	ID                  string            `yaml:"id"`
	Description         string            `yaml:"description"`
	SQL                 string            `yaml:"sql"`
	SQLFile             string            `yaml:"sql_file"`
	Connection          string            `yaml:"connection"`
	ThresholdConnection string            `yaml:"threshold_connection"`
	MinThreshold        *float64          `yaml:"min_threshold"`
	MinThresholdSQL     string            `yaml:"min_threshold_sql"`
	MaxThreshold        *float64          `yaml:"max_threshold"`
	MaxThresholdSQL     string            `yaml:"max_threshold_sql"`
	Params              map[string]string `yaml:"params"`
	Sink                string            `yaml:"sink"`
	Timeout             Duration          `yaml:"timeout"`
}

// EmailConfig holds SMTP settings for the email sink.
type EmailConfig struct {
	SMTPHost string   `yaml:"smtp_host"`
	SMTPPort int      `yaml:"smtp_port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// StorageConfig holds results database settings.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// Config is the root application configuration.
type Config struct {
	Connections []Connection  `yaml:"connections"`
	Checks      []Check       `yaml:"checks"`
	Email       EmailConfig   `yaml:"email"`
	Server      ServerConfig  `yaml:"server"`
	Storage     StorageConfig `yaml:"storage"`
}

var validSinks = map[string]bool{
	"":      true,
	"store": true,
	"email": true,
}

// Load reads, parses, and validates the config file at path. SQL file
// references are resolved relative to the config file's directory and
// loaded eagerly, so a returned Config is self-contained.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Apply defaults.
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "dataprobe.db"
	}

	connIDs := make(map[string]bool, len(cfg.Connections))
	for i, conn := range cfg.Connections {
		if conn.ID == "" {
			return nil, fmt.Errorf("connection[%d]: id is required", i)
		}
		if connIDs[conn.ID] {
			return nil, fmt.Errorf("duplicate connection id %q", conn.ID)
		}
		connIDs[conn.ID] = true
		if conn.Kind == "" {
			return nil, fmt.Errorf("connection %q: kind is required", conn.ID)
		}
		if conn.DSN == "" {
			return nil, fmt.Errorf("connection %q: dsn is required", conn.ID)
		}
	}

	if len(cfg.Checks) == 0 {
		return nil, fmt.Errorf("at least one check must be configured")
	}

	checkIDs := make(map[string]bool, len(cfg.Checks))
	for i := range cfg.Checks {
		c := &cfg.Checks[i]
		if c.ID == "" {
			return nil, fmt.Errorf("check[%d]: id is required", i)
		}
		if checkIDs[c.ID] {
			return nil, fmt.Errorf("duplicate check id %q", c.ID)
		}
		checkIDs[c.ID] = true

		switch {
		case c.SQL == "" && c.SQLFile == "":
			return nil, fmt.Errorf("check %q: sql or sql_file is required", c.ID)
		case c.SQL != "" && c.SQLFile != "":
			return nil, fmt.Errorf("check %q: sql and sql_file are mutually exclusive", c.ID)
		case c.SQLFile != "":
			sqlPath := c.SQLFile
			if !filepath.IsAbs(sqlPath) {
				sqlPath = filepath.Join(filepath.Dir(path), sqlPath)
			}
			text, err := os.ReadFile(sqlPath)
			if err != nil {
				return nil, fmt.Errorf("check %q: reading sql_file: %w", c.ID, err)
			}
			c.SQL = string(text)
		}

		if c.Connection == "" {
			return nil, fmt.Errorf("check %q: connection is required", c.ID)
		}
		if !connIDs[c.Connection] {
			return nil, fmt.Errorf("check %q: unknown connection %q", c.ID, c.Connection)
		}
		if c.ThresholdConnection != "" && !connIDs[c.ThresholdConnection] {
			return nil, fmt.Errorf("check %q: unknown threshold_connection %q", c.ID, c.ThresholdConnection)
		}

		if c.MinThreshold != nil && c.MinThresholdSQL != "" {
			return nil, fmt.Errorf("check %q: min_threshold and min_threshold_sql are mutually exclusive", c.ID)
		}
		if c.MaxThreshold != nil && c.MaxThresholdSQL != "" {
			return nil, fmt.Errorf("check %q: max_threshold and max_threshold_sql are mutually exclusive", c.ID)
		}
		if c.MinThreshold == nil && c.MinThresholdSQL == "" {
			return nil, fmt.Errorf("check %q: min_threshold or min_threshold_sql is required", c.ID)
		}
		if c.MaxThreshold == nil && c.MaxThresholdSQL == "" {
			return nil, fmt.Errorf("check %q: max_threshold or max_threshold_sql is required", c.ID)
		}

		if !validSinks[c.Sink] {
			return nil, fmt.Errorf("check %q: invalid sink %q (must be store or email)", c.ID, c.Sink)
		}
		if c.Sink == "email" && cfg.Email.SMTPHost == "" {
			return nil, fmt.Errorf("check %q: email sink requires email settings", c.ID)
		}

		if c.Timeout.Duration == 0 {
			c.Timeout = Duration{30 * time.Second}
		}
	}

	return &cfg, nil
}
