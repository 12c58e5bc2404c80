package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dvloznov/balance-projection/internal/balance"
	"github.com/dvloznov/balance-projection/internal/config"
	"github.com/dvloznov/balance-projection/internal/coverage"
	"github.com/dvloznov/balance-projection/internal/export"
	infraBQ "github.com/dvloznov/balance-projection/internal/infra/bigquery"
	"github.com/dvloznov/balance-projection/internal/infra/sqlite"
	"github.com/dvloznov/balance-projection/internal/jobs/inmemory"
	"github.com/dvloznov/balance-projection/internal/logger"
	"github.com/dvloznov/balance-projection/internal/projection"
	"github.com/dvloznov/balance-projection/internal/recalc"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

type rootFlags struct {
	dbPath  string
	verbose bool
}

func newRootCmd(out io.Writer) *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:          "balance",
		Short:        "Balance projection CLI",
		Long:         "Inspect accounts, compute projected balance timelines and rebuild persisted ones.",
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.SetErr(out)

	root.PersistentFlags().StringVar(&flags.dbPath, "db", "", "SQLite database path (default from config)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log at debug level")

	root.AddCommand(
		newAccountsCmd(flags),
		newCalculateCmd(flags),
		newProjectCmd(flags),
		newRebuildCmd(flags),
		newExportCmd(flags),
		newShowExportCmd(flags),
	)
	return root
}

// app is the wired service stack shared by every command.
type app struct {
	svc      *projection.Service
	exporter *export.Exporter
	closers  []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func openApp(ctx context.Context, flags *rootFlags) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flags.dbPath != "" {
		cfg.Database.Path = flags.dbPath
	}

	level := cfg.Log.Level
	if flags.verbose {
		level = zerolog.LevelDebugValue
	}
	log, err := logger.Configure(os.Stderr, logger.Options{Level: level, Format: cfg.Log.Format})
	if err != nil {
		return nil, err
	}

	a := &app{}
	store, err := sqlite.Open(ctx, cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)

	var tracker coverage.Tracker = coverage.NewSQLTracker(store, cfg.Coverage.GapDays)
	if cfg.Coverage.Source == config.CoverageBigQuery {
		bq, err := infraBQ.New(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset, cfg.Coverage.GapDays)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, bq.Close)
		tracker = bq
	}

	initial, _ := cfg.InitialBalance()
	calc := balance.NewCalculator(store, store, tracker, balance.Config{
		MaxRangeDays:   cfg.Projection.MaxRangeDays,
		InitialBalance: initial,
	}, log)
	jobStore := inmemory.NewStore(cfg.Jobs.MaxLog)
	trigger := recalc.NewTrigger(calc, store, jobStore, recalc.Config{
		WindowMonths: cfg.Projection.WindowMonths,
		ChunkDays:    cfg.Projection.ChunkDays,
		Workers:      cfg.Jobs.Workers,
	}, log)

	a.svc = projection.NewService(projection.Deps{
		Store:   store,
		Calc:    calc,
		Trigger: trigger,
		Tracker: tracker,
		Jobs:    jobStore,
		Log:     log,
	})

	var objects export.ObjectStore
	if cfg.Export.Bucket != "" {
		gcs, err := export.NewGCSStore(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, gcs.Close)
		objects = gcs
	}
	a.exporter = export.NewExporter(a.svc, objects, cfg.Export.Bucket, log)
	return a, nil
}

// withApp wires the stack for one command run.
func withApp(flags *rootFlags, fn func(ctx context.Context, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := openApp(ctx, flags)
		if err != nil {
			return fmt.Errorf("opening service: %w", err)
		}
		defer a.Close()
		return fn(ctx, a)
	}
}
