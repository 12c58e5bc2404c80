package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dvloznov/balance-projection/internal/domain"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func setupEnv(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("BALANCE_CONFIG", "")
	t.Setenv("BALANCE_PROJECTION_INITIAL_BALANCE", "1000")
	return filepath.Join(t.TempDir(), "cli.db")
}

func TestAccountsAndProject(t *testing.T) {
	db := setupEnv(t)

	out, err := runCLI(t, "--db", db, "accounts", "create", "Current")
	if err != nil {
		t.Fatalf("accounts create: %v\n%s", err, out)
	}
	accountID := strings.TrimSpace(out)
	if accountID == "" {
		t.Fatal("accounts create printed no id")
	}

	out, err = runCLI(t, "--db", db, "accounts", "list")
	if err != nil {
		t.Fatalf("accounts list: %v", err)
	}
	if !strings.Contains(out, accountID) || !strings.Contains(out, "Current") {
		t.Errorf("accounts list output missing account:\n%s", out)
	}

	out, err = runCLI(t, "--db", db, "project", accountID, "--start", "2024-01-01", "--end", "2024-01-03", "--json")
	if err != nil {
		t.Fatalf("project: %v\n%s", err, out)
	}
	var points []domain.BalancePoint
	if err := json.Unmarshal([]byte(out), &points); err != nil {
		t.Fatalf("decoding project output: %v\n%s", err, out)
	}
	if len(points) != 3 {
		t.Fatalf("got %d points, want 3", len(points))
	}
	for _, p := range points {
		if p.ExpectedBalance.StringFixed(2) != "1000.00" {
			t.Errorf("%s: expected balance %s, want 1000.00", p.Date, p.ExpectedBalance.StringFixed(2))
		}
		if p.BalanceType != domain.BalanceTypeProjected {
			t.Errorf("%s: balance type %s, want projected", p.Date, p.BalanceType)
		}
	}

	out, err = runCLI(t, "--db", db, "calculate", accountID, "--start", "2024-01-01", "--end", "2024-01-02")
	if err != nil {
		t.Fatalf("calculate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "2024-01-02") || !strings.Contains(out, "1000.00") {
		t.Errorf("calculate output missing rows:\n%s", out)
	}
}

func TestCommandErrors(t *testing.T) {
	db := setupEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"inverted range", []string{"project", "acct", "--start", "2024-02-01", "--end", "2024-01-01"}},
		{"bad date", []string{"project", "acct", "--start", "01/02/2024", "--end", "2024-01-01"}},
		{"missing end", []string{"calculate", "acct", "--start", "2024-01-01"}},
		{"unknown account", []string{"calculate", "nope", "--start", "2024-01-01", "--end", "2024-01-02"}},
		{"export disabled", []string{"export", "acct", "--start", "2024-01-01", "--end", "2024-01-02"}},
		{"show-export disabled", []string{"show-export", "gs://bucket/timelines/acct.json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--db", db}, tt.args...)
			if _, err := runCLI(t, args...); err == nil {
				t.Errorf("expected error for %v", tt.args)
			}
		})
	}
}
