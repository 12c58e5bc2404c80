package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/dvloznov/balance-projection/internal/config"
	"github.com/dvloznov/balance-projection/internal/infra/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := run(os.Args[1:], cfg.Database.Path, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// run applies, reverts or reports migrations. defaultPath is used unless
// -db is given.
func run(args []string, defaultPath string, out io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(out)
	dbPath := fs.String("db", defaultPath, "Path to the SQLite database (or set BALANCE_DATABASE_PATH)")
	down := fs.Bool("down", false, "Revert every applied migration")
	status := fs.Bool("status", false, "Print the applied schema version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" {
		return fmt.Errorf("-db is required")
	}
	if err := os.MkdirAll(filepath.Dir(*dbPath), 0o750); err != nil {
		return fmt.Errorf("creating database dir: %w", err)
	}

	switch {
	case *status:
	case *down:
		fmt.Fprintf(out, "Reverting migrations on %s\n", *dbPath)
		if err := sqlite.MigrateDown(*dbPath); err != nil {
			return err
		}
	default:
		fmt.Fprintf(out, "Applying migrations to %s\n", *dbPath)
		if err := sqlite.Migrate(*dbPath); err != nil {
			return err
		}
	}

	version, dirty, err := sqlite.MigrationVersion(*dbPath)
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(out, "Schema version %d (%s)\n", version, state)
	return nil
}
