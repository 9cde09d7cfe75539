package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ticketreport/internal/domain"
	"ticketreport/internal/schedule"
	"ticketreport/internal/storage/sqlite"
	"ticketreport/internal/watch"
)

type setupFunc func(asOf domain.Clock) (*env, error)

func newRootCmd(setup setupFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "ticketreport",
		Short: "Turn ticket exports into pivoted Excel reports and reconcile remarks",
		Long: `ticketreport filters a service-ticket CSV export down to open tickets,
computes each ticket's SLA age, and writes a two-sheet workbook: the sorted
detail and a technician x SLA pivot. It can also copy remarks from one report
snapshot into another.

Run without a subcommand to start the interactive menu.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu(cmd, setup)
		},
	}
	root.AddCommand(
		newConvertCmd(setup),
		newReconcileCmd(setup),
		newServeCmd(setup),
		newHistoryCmd(setup),
		newMenuCmd(setup),
	)
	return root
}

func newConvertCmd(setup setupFunc) *cobra.Command {
	var output, asOf string
	cmd := &cobra.Command{
		Use:   "convert <input.csv>",
		Short: "Filter, enrich and pivot a ticket export into an xlsx report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clock, err := parseAsOf(asOf)
			if err != nil {
				return err
			}
			e, err := setup(clock)
			if err != nil {
				return err
			}
			defer e.Close()

			res, err := e.runner.Convert(args[0], output)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), describeError(err))
				return err
			}
			printConvertResult(cmd.OutOrStdout(), res.Run, res.Digest)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output xlsx path (default <report_output_dir>/<stem>_report.xlsx)")
	cmd.Flags().StringVar(&asOf, "as-of", "", "reference date for SLA ages, YYYY-MM-DD (default today)")
	return cmd
}

func newReconcileCmd(setup setupFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <source> <target>",
		Short: "Copy remarks from a source report into a target report",
		Long: `Copy remarks from the source snapshot into the target snapshot, keyed by
Case Number. Rows whose status is protected keep their remark; rows missing
from the source get the not-found remark. The target is backed up before it
is rewritten and changed rows are highlighted.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(nil)
			if err != nil {
				return err
			}
			defer e.Close()

			run, res, err := e.runner.Reconcile(args[0], args[1])
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), describeError(err))
				return err
			}
			printReconcileResult(cmd.OutOrStdout(), run, res)
			return nil
		},
	}
}

func newServeCmd(setup setupFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Convert inbox exports on a schedule and as they arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(nil)
			if err != nil {
				return err
			}
			defer e.Close()

			if e.cfg.AutoConvertSchedule == "" && !e.cfg.WatchInbox {
				return fmt.Errorf("nothing to serve: set auto_convert_schedule and/or watch_inbox")
			}
			if err := os.MkdirAll(e.cfg.ReportOutputDir, 0755); err != nil {
				return err
			}
			log.Printf("Report output dir: %s", e.cfg.ReportOutputDir)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if c := schedule.StartAutoConvertScheduler(e.cfg, e.runner); c != nil {
				defer c.Stop()
			}
			w := watch.New(e.cfg, e.runner)
			if e.cfg.WatchInbox {
				if err := w.Backfill(ctx); err != nil {
					log.Printf("inbox backfill error: %v", err)
				}
			}
			if err := w.Start(ctx); err != nil {
				return err
			}

			log.Println("Starting ticketreport serve...")
			<-ctx.Done()
			log.Println("Shutting down")
			return nil
		},
	}
}

func newHistoryCmd(setup setupFunc) *cobra.Command {
	var kind string
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent convert and reconcile runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch kind {
			case "", domain.RunKindConvert, domain.RunKindReconcile:
			default:
				return fmt.Errorf("invalid --kind %q: want %s or %s", kind, domain.RunKindConvert, domain.RunKindReconcile)
			}
			e, err := setup(nil)
			if err != nil {
				return err
			}
			defer e.Close()

			runs, err := sqlite.GetRecentRuns(e.db, kind, limit)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "only show runs of this kind (convert|reconcile)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to show")
	return cmd
}

func newMenuCmd(setup setupFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Interactive prompt loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu(cmd, setup)
		},
	}
}

func runMenu(cmd *cobra.Command, setup setupFunc) error {
	e, err := setup(nil)
	if err != nil {
		return err
	}
	defer e.Close()
	m := &menu{ops: e.runner, outputDir: e.cfg.ReportOutputDir, in: cmd.InOrStdin(), out: cmd.OutOrStdout()}
	return m.Loop(context.Background())
}

func parseAsOf(s string) (domain.Clock, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid --as-of %q: want YYYY-MM-DD", s)
	}
	return domain.FixedClock(t), nil
}

func printConvertResult(w io.Writer, run domain.Run, digest string) {
	fmt.Fprintf(w, "Success! Output saved to %s\n", run.OutputPath)
	fmt.Fprintf(w, "  %d of %d tickets retained", run.Retained, run.Total)
	if run.UnparsedDates > 0 {
		fmt.Fprintf(w, ", %d with unreadable dates", run.UnparsedDates)
	}
	fmt.Fprintln(w)
	if digest != "" {
		fmt.Fprintf(w, "\n%s\n", digest)
	}
}

func printReconcileResult(w io.Writer, run domain.Run, res domain.ReconciliationResult) {
	if len(res.Changed) == 0 {
		fmt.Fprintf(w, "No remarks changed in %s\n", run.OutputPath)
	} else {
		fmt.Fprintf(w, "Updated %d remark(s) in %s\n", len(res.Changed), run.OutputPath)
		fmt.Fprintf(w, "  changed: %s\n", strings.Join(res.Changed, ", "))
	}
	fmt.Fprintf(w, "  protected=%d not_found=%d unchanged=%d\n", res.Protected, res.NotFound, res.Unchanged)
	if res.BackupPath != "" {
		fmt.Fprintf(w, "  backup: %s\n", res.BackupPath)
	}
}

func printHistory(w io.Writer, runs []domain.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded yet.")
		return
	}
	for _, r := range runs {
		target := r.OutputPath
		if target == "" {
			target = r.InputPath
		}
		line := fmt.Sprintf("%s  %-9s %-6s %s", r.StartedAt.Local().Format("2006-01-02 15:04"), r.Kind, r.Status, target)
		switch r.Kind {
		case domain.RunKindConvert:
			line += fmt.Sprintf("  retained=%d/%d", r.Retained, r.Total)
		case domain.RunKindReconcile:
			line += fmt.Sprintf("  changed=%d", r.Changed)
		}
		if r.Error != "" {
			line += "  error: " + r.Error
		}
		fmt.Fprintln(w, line)
	}
}
