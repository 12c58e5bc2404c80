package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("BALANCE_CONFIG", "")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Projection.WindowMonths != 6 {
		t.Errorf("WindowMonths = %d, want 6", c.Projection.WindowMonths)
	}
	if c.Coverage.Source != CoverageSQLite || c.Coverage.GapDays != 7 {
		t.Errorf("Coverage = %+v, want sqlite with 7 gap days", c.Coverage)
	}
	if c.Server.Port != "8080" || c.Server.Token != "" {
		t.Errorf("Server = %+v, want port 8080 and no token", c.Server)
	}
	if ib, _ := c.InitialBalance(); !ib.IsZero() {
		t.Errorf("InitialBalance = %s, want 0", ib)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[database]
path = "/tmp/x.db"

[projection]
window_months = 3
initial_balance = "1250.50"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BALANCE_CONFIG", path)
	t.Setenv("BALANCE_SERVER_PORT", "9090")
	t.Setenv("BALANCE_SERVER_TOKEN", "s3cret")
	t.Setenv("BALANCE_PROJECTION_WINDOW_MONTHS", "12")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Database.Path != "/tmp/x.db" {
		t.Errorf("Database.Path = %q", c.Database.Path)
	}
	if c.Server.Port != "9090" {
		t.Errorf("Port = %q, want env override 9090", c.Server.Port)
	}
	if c.Server.Token != "s3cret" {
		t.Errorf("Token = %q, want env override", c.Server.Token)
	}
	if c.Projection.WindowMonths != 12 {
		t.Errorf("WindowMonths = %d, want env override 12", c.Projection.WindowMonths)
	}
	if ib, _ := c.InitialBalance(); ib.String() != "1250.5" {
		t.Errorf("InitialBalance = %s, want 1250.5", ib)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad initial balance", env: map[string]string{"BALANCE_PROJECTION_INITIAL_BALANCE": "lots"}},
		{name: "unknown coverage source", env: map[string]string{"BALANCE_COVERAGE_SOURCE": "csv"}},
		{name: "bigquery without project", env: map[string]string{"BALANCE_COVERAGE_SOURCE": "bigquery"}},
		{name: "missing explicit file", env: map[string]string{"BALANCE_CONFIG": "/nonexistent/config.toml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			t.Setenv("BALANCE_CONFIG", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}
