package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hazz-dev/dataprobe/internal/config"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "*.yml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	f.Close()
	return f.Name()
}

const validConfig = `
connections:
  - id: "warehouse"
    kind: "sqlite"
    dsn: "warehouse.db"
  - id: "analytics"
    kind: "bigquery"
    dsn: "bigquery://project/dataset"
    use_legacy_sql: true
checks:
  - id: "row_count_{{.table}}"
    description: "row count of {{.table}} stays in range"
    sql: "SELECT COUNT(*) FROM {{.table}}"
    connection: "warehouse"
    min_threshold: 10
    max_threshold: 1000
    params:
      table: "users"
    timeout: "10s"
  - id: "avg_cost"
    sql: "SELECT AVG(cost) FROM price"
    connection: "warehouse"
    threshold_connection: "analytics"
    min_threshold_sql: "SELECT MIN(cost) FROM reference"
    max_threshold_sql: "SELECT MAX(cost) FROM reference"
    sink: "store"
storage:
  path: "results.db"
server:
  address: ":9090"
`

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := config.Load(writeTemp(t, validConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Connections) != 2 {
		t.Fatalf("expected 2 connections, got %d", len(cfg.Connections))
	}
	if !cfg.Connections[1].UseLegacySQL {
		t.Error("expected use_legacy_sql=true for analytics connection")
	}

	if len(cfg.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(cfg.Checks))
	}
	first := cfg.Checks[0]
	if first.MinThreshold == nil || *first.MinThreshold != 10 {
		t.Errorf("expected literal min threshold 10, got %v", first.MinThreshold)
	}
	if first.Params["table"] != "users" {
		t.Errorf("expected params to carry table=users, got %v", first.Params)
	}
	if first.Timeout.Duration != 10*time.Second {
		t.Errorf("expected 10s timeout, got %v", first.Timeout.Duration)
	}

	second := cfg.Checks[1]
	if second.ThresholdConnection != "analytics" {
		t.Errorf("expected threshold connection 'analytics', got %q", second.ThresholdConnection)
	}
	if second.Sink != "store" {
		t.Errorf("expected store sink, got %q", second.Sink)
	}
	if second.Timeout.Duration != 30*time.Second {
		t.Errorf("expected default 30s timeout, got %v", second.Timeout.Duration)
	}

	if cfg.Storage.Path != "results.db" {
		t.Errorf("expected storage path 'results.db', got %q", cfg.Storage.Path)
	}
	if cfg.Server.Address != ":9090" {
		t.Errorf("expected address ':9090', got %q", cfg.Server.Address)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeTemp(t, `
connections:
  - id: "warehouse"
    kind: "sqlite"
    dsn: "warehouse.db"
checks:
  - id: "row_count"
    sql: "SELECT COUNT(*) FROM users"
    connection: "warehouse"
    min_threshold: 1
    max_threshold: 100
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Errorf("expected default address ':8080', got %q", cfg.Server.Address)
	}
	if cfg.Storage.Path != "dataprobe.db" {
		t.Errorf("expected default storage path, got %q", cfg.Storage.Path)
	}
}

func TestLoad_SQLFile(t *testing.T) {
	dir := t.TempDir()
	sqlPath := filepath.Join(dir, "row_count.sql")
	if err := os.WriteFile(sqlPath, []byte("SELECT COUNT(*) FROM users\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dir, "config.yml")
	content := `
connections:
  - id: "warehouse"
    kind: "sqlite"
    dsn: "warehouse.db"
checks:
  - id: "row_count"
    sql_file: "row_count.sql"
    connection: "warehouse"
    min_threshold: 1
    max_threshold: 100
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !strings.Contains(cfg.Checks[0].SQL, "SELECT COUNT(*) FROM users") {
		t.Errorf("expected sql loaded from file, got %q", cfg.Checks[0].SQL)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "no checks",
			content: `
connections:
  - id: "warehouse"
    kind: "sqlite"
    dsn: "warehouse.db"
`,
			wantErr: "at least one check",
		},
		{
			name: "duplicate check id",
			content: `
connections:
  - id: "warehouse"
    kind: "sqlite"
    dsn: "warehouse.db"
checks:
  - id: "row_count"
    sql: "SELECT 1"
    connection: "warehouse"
    min_threshold: 1
    max_threshold: 2
  - id: "row_count"
    sql: "SELECT 2"
    connection: "warehouse"
    min_threshold: 1
    max_threshold: 2
`,
			wantErr: "duplicate check id",
		},
		{
			name: "unknown connection",
			content: `
connections:
  - id: "warehouse"
    kind: "sqlite"
    dsn: "warehouse.db"
checks:
  - id: "row_count"
    sql: "SELECT 1"
    connection: "lake"
    min_threshold: 1
    max_threshold: 2
`,
			wantErr: `unknown connection "lake"`,
		},
		{
			name: "both literal and sql threshold",
			content: `
connections:
  - id: "warehouse"
    kind: "sqlite"
    dsn: "warehouse.db"
checks:
  - id: "row_count"
    sql: "SELECT 1"
    connection: "warehouse"
    min_threshold: 1
    min_threshold_sql: "SELECT MIN(n) FROM t"
    max_threshold: 2
`,
			wantErr: "mutually exclusive",
		},
		{
			name: "missing max threshold",
			content: `
connections:
  - id: "warehouse"
    kind: "sqlite"
    dsn: "warehouse.db"
checks:
  - id: "row_count"
    sql: "SELECT 1"
    connection: "warehouse"
    min_threshold: 1
`,
			wantErr: "max_threshold or max_threshold_sql",
		},
		{
			name: "invalid sink",
			content: `
connections:
  - id: "warehouse"
    kind: "sqlite"
    dsn: "warehouse.db"
checks:
  - id: "row_count"
    sql: "SELECT 1"
    connection: "warehouse"
    min_threshold: 1
    max_threshold: 2
    sink: "carrier_pigeon"
`,
			wantErr: "invalid sink",
		},
		{
			name: "email sink without email settings",
			content: `
connections:
  - id: "warehouse"
    kind: "sqlite"
    dsn: "warehouse.db"
checks:
  - id: "row_count"
    sql: "SELECT 1"
    connection: "warehouse"
    min_threshold: 1
    max_threshold: 2
    sink: "email"
`,
			wantErr: "email sink requires",
		},
		{
			name: "sql and sql_file together",
			content: `
connections:
  - id: "warehouse"
    kind: "sqlite"
    dsn: "warehouse.db"
checks:
  - id: "row_count"
    sql: "SELECT 1"
    sql_file: "query.sql"
    connection: "warehouse"
    min_threshold: 1
    max_threshold: 2
`,
			wantErr: "mutually exclusive",
		},
		{
			name: "connection without dsn",
			content: `
connections:
  - id: "warehouse"
    kind: "sqlite"
checks:
  - id: "row_count"
    sql: "SELECT 1"
    connection: "warehouse"
    min_threshold: 1
    max_threshold: 2
`,
			wantErr: "dsn is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeTemp(t, tt.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}
