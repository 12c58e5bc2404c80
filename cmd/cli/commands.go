package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"github.com/dvloznov/balance-projection/internal/domain"
	"github.com/dvloznov/balance-projection/internal/export"
	"github.com/dvloznov/balance-projection/internal/jobs"
	"github.com/dvloznov/balance-projection/internal/projection"
	"github.com/dvloznov/balance-projection/internal/scenario"
)

func newAccountsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List or create bank accounts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List bank accounts",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(flags, func(ctx context.Context, a *app) error {
				accounts, err := a.svc.ListAccounts(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(c.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tCREATED")
				for _, acct := range accounts {
					fmt.Fprintf(w, "%s\t%s\t%s\n", acct.ID, acct.Name, acct.CreatedAt.Format("2006-01-02"))
				}
				return w.Flush()
			})(c, args)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create NAME",
		Short: "Create a bank account",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(flags, func(ctx context.Context, a *app) error {
				acct, err := a.svc.CreateAccount(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(c.OutOrStdout(), acct.ID)
				return nil
			})(c, args)
		},
	})
	return cmd
}

// rangeFlags are the date-range and scenario flags shared by timeline commands.
type rangeFlags struct {
	start, end  string
	paths       []string
	scenarioSet string
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.start, "start", "", "First date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&f.end, "end", "", "Last date, YYYY-MM-DD (required)")
	cmd.Flags().StringSliceVar(&f.paths, "paths", nil, "Enabled decision path ids; pass --paths= to enable none")
	cmd.Flags().StringVar(&f.scenarioSet, "scenario-set", "", "Scenario set id to resolve enabled paths from")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
}

func (f *rangeFlags) dates() (civil.Date, civil.Date, error) {
	start, err := civil.ParseDate(f.start)
	if err != nil {
		return civil.Date{}, civil.Date{}, fmt.Errorf("--start: %w", err)
	}
	end, err := civil.ParseDate(f.end)
	if err != nil {
		return civil.Date{}, civil.Date{}, fmt.Errorf("--end: %w", err)
	}
	return start, end, nil
}

func (f *rangeFlags) enabled(ctx context.Context, cmd *cobra.Command, svc *projection.Service) (scenario.EnabledSet, error) {
	var ids []string
	if cmd.Flags().Changed("paths") {
		ids = append([]string{}, f.paths...)
	}
	return svc.ResolveEnabled(ctx, ids, f.scenarioSet)
}

func newCalculateCmd(flags *rootFlags) *cobra.Command {
	rf := &rangeFlags{}
	cmd := &cobra.Command{
		Use:   "calculate ACCOUNT",
		Short: "Compute and persist daily balances for a date range",
		Args:  cobra.ExactArgs(1),
	}
	rf.register(cmd)
	cmd.RunE = func(c *cobra.Command, args []string) error {
		return withApp(flags, func(ctx context.Context, a *app) error {
			start, end, err := rf.dates()
			if err != nil {
				return err
			}
			enabled, err := rf.enabled(ctx, c, a.svc)
			if err != nil {
				return err
			}
			res, err := a.svc.CalculateDailyBalances(ctx, start, end, args[0], enabled)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(c.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(w, "DATE\tEXPECTED\t")
			for _, row := range res.Rows {
				fmt.Fprintf(w, "%s\t%s\t\n", row.Date, row.ExpectedBalance.StringFixed(2))
			}
			return w.Flush()
		})(c, args)
	}
	return cmd
}

func newProjectCmd(flags *rootFlags) *cobra.Command {
	rf := &rangeFlags{}
	var trueBalanceDate, latestCovered string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "project ACCOUNT",
		Short: "Print a what-if timeline without persisting it",
		Args:  cobra.ExactArgs(1),
	}
	rf.register(cmd)
	cmd.Flags().StringVar(&trueBalanceDate, "true-balance-date", "", "Anchor on the known balance at this date")
	cmd.Flags().StringVar(&latestCovered, "latest-covered-date", "", "Last date counted as transaction-backed")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")

	cmd.RunE = func(c *cobra.Command, args []string) error {
		return withApp(flags, func(ctx context.Context, a *app) error {
			q, err := projectionQuery(ctx, c, a.svc, rf, args[0], trueBalanceDate, latestCovered)
			if err != nil {
				return err
			}
			points, err := a.svc.ComputeBalancesOnTheFly(ctx, q)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(c.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(points)
			}
			return printPoints(c.OutOrStdout(), points)
		})(c, args)
	}
	return cmd
}

func printPoints(out io.Writer, points []domain.BalancePoint) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "DATE\tBALANCE\tEVENTS\tTYPE\t")
	for _, p := range points {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t\n", p.Date, p.ExpectedBalance.StringFixed(2), p.EventCount, p.BalanceType)
	}
	return w.Flush()
}

func projectionQuery(ctx context.Context, c *cobra.Command, svc *projection.Service, rf *rangeFlags, accountID, trueBalanceDate, latestCovered string) (projection.OnTheFlyQuery, error) {
	start, end, err := rf.dates()
	if err != nil {
		return projection.OnTheFlyQuery{}, err
	}
	enabled, err := rf.enabled(ctx, c, svc)
	if err != nil {
		return projection.OnTheFlyQuery{}, err
	}
	q := projection.OnTheFlyQuery{Start: start, End: end, AccountID: accountID, Enabled: enabled}
	if trueBalanceDate != "" {
		d, err := civil.ParseDate(trueBalanceDate)
		if err != nil {
			return q, fmt.Errorf("--true-balance-date: %w", err)
		}
		q.TrueBalanceDate = &d
	}
	if latestCovered != "" {
		d, err := civil.ParseDate(latestCovered)
		if err != nil {
			return q, fmt.Errorf("--latest-covered-date: %w", err)
		}
		q.LatestCoveredDate = &d
	}
	return q, nil
}

func newRebuildCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild [ACCOUNT]",
		Short: "Recalculate the whole persisted timeline of one or every account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(flags, func(ctx context.Context, a *app) error {
				var results []*jobs.RecalculationJob
				var runErr error
				if len(args) == 1 {
					job, err := a.svc.RebuildAccount(ctx, args[0])
					if err != nil {
						return err
					}
					results = []*jobs.RecalculationJob{job}
				} else {
					results, runErr = a.svc.RebuildAll(ctx)
				}

				w := tabwriter.NewWriter(c.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ACCOUNT\tSTATUS\tFROM\tTO\tDAYS\tERROR")
				for _, j := range results {
					if j == nil {
						continue
					}
					from, to := "-", "-"
					if j.From != nil && j.To != nil {
						from, to = j.From.String(), j.To.String()
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", j.BankAccountID, j.Status, from, to, j.DaysWritten, j.Error)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				return runErr
			})(c, args)
		},
	}
}

func newExportCmd(flags *rootFlags) *cobra.Command {
	rf := &rangeFlags{}
	cmd := &cobra.Command{
		Use:   "export ACCOUNT",
		Short: "Upload a what-if timeline to the export bucket as JSON",
		Args:  cobra.ExactArgs(1),
	}
	rf.register(cmd)
	cmd.RunE = func(c *cobra.Command, args []string) error {
		return withApp(flags, func(ctx context.Context, a *app) error {
			if !a.exporter.Enabled() {
				return fmt.Errorf("export.bucket is not configured")
			}
			q, err := projectionQuery(ctx, c, a.svc, rf, args[0], "", "")
			if err != nil {
				return err
			}
			res, err := a.exporter.Export(ctx, export.Request{Query: q, ScenarioSetID: strings.TrimSpace(rf.scenarioSet)})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "%s (%d days)\n", res.URI, res.Points)
			return nil
		})(c, args)
	}
	return cmd
}

func newShowExportCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show-export URI",
		Short: "Print a previously exported timeline (gs://bucket/object)",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(flags, func(ctx context.Context, a *app) error {
				if !a.exporter.Enabled() {
					return fmt.Errorf("export.bucket is not configured")
				}
				doc, err := a.exporter.Fetch(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(c.OutOrStdout(), "account %s, %s to %s, generated %s\n",
					doc.BankAccountID, doc.Start, doc.End, doc.GeneratedAt.Format(time.RFC3339))
				return printPoints(c.OutOrStdout(), doc.Points)
			})(c, args)
		},
	}
}
