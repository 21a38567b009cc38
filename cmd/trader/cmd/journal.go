package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/bartrader/journal"
	"github.com/rustyeddy/bartrader/report"
	"github.com/rustyeddy/bartrader/sim"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the run journal",
	Long: `Query and display runs and trades recorded in a SQLite or
PostgreSQL journal.

Subcommands:
  runs    - List recent runs
  run     - Show one run as an Org-mode entry
  trades  - List the trades of a run

Examples:
  trader journal runs -n 10
  trader journal run 01HX...
  trader journal trades 01HX... --format csv`,
}

var journalRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs",
	Args:  cobra.NoArgs,
	RunE:  runJournalRuns,
}

var journalRunCmd = &cobra.Command{
	Use:   "run <run-id>",
	Short: "Show one run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalRun,
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades <run-id>",
	Short: "List the trades of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrades,
}

var (
	journalDBPath string
	journalDSN    string
	journalLimit  int
	journalFormat string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRunsCmd)
	journalCmd.AddCommand(journalRunCmd)
	journalCmd.AddCommand(journalTradesCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "", "path to SQLite journal DB (default journal.db_path)")
	journalCmd.PersistentFlags().StringVar(&journalDSN, "dsn", "", "PostgreSQL DSN instead of SQLite")
	journalRunsCmd.Flags().IntVarP(&journalLimit, "limit", "n", 20, "number of runs, newest first")
	journalTradesCmd.Flags().StringVar(&journalFormat, "format", "table", "output format: table, csv, org or json")
}

type readCloser interface {
	journal.Reader
	Close() error
}

func openReader(ctx context.Context) (readCloser, error) {
	dsn := journalDSN
	if dsn == "" && cfg.Journal.Type == "postgres" {
		dsn = cfg.Journal.DSN
	}
	if dsn != "" {
		p, err := journal.NewPostgres(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return p, nil
	}

	path := journalDBPath
	if path == "" {
		path = cfg.Journal.DBPath
	}
	if path == "" {
		path = "./trader.sqlite"
	}
	j, err := journal.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runJournalRuns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	j, err := openReader(ctx)
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.ListRuns(ctx, journalLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs found")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tMODE\tSTRATEGY\tSYMBOL\tTRADES\tWIN%\tPNL\tRETURN%")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%.1f\t%.2f\t%.2f\n",
			r.ID, r.Created.Format("2006-01-02 15:04"), r.Mode, r.Strategy, r.Symbol,
			r.Trades, r.WinRate(), r.PnL, r.ReturnPct())
	}
	return w.Flush()
}

func runJournalRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	j, err := openReader(ctx)
	if err != nil {
		return err
	}
	defer j.Close()

	run, err := j.GetRun(ctx, args[0])
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	return journal.WriteRunOrg(cmd.OutOrStdout(), run)
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	j, err := openReader(ctx)
	if err != nil {
		return err
	}
	defer j.Close()

	trades, err := j.ListTrades(ctx, args[0])
	if err != nil {
		return fmt.Errorf("list trades: %w", err)
	}

	out := cmd.OutOrStdout()
	switch journalFormat {
	case "org":
		fmt.Fprint(out, journal.FormatTradesOrg(trades))
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(trades)
	case "csv":
		return journal.WriteTrades(out, args[0], records(trades))
	case "table":
		if len(trades) == 0 {
			fmt.Fprintln(out, "No trades found")
			return nil
		}
		report.PrintTrades(out, records(trades))
	default:
		return fmt.Errorf("unknown format %q", journalFormat)
	}
	return nil
}

func records(trades []journal.Trade) []sim.TradeRecord {
	recs := make([]sim.TradeRecord, len(trades))
	for i, t := range trades {
		recs[i] = t.TradeRecord
	}
	return recs
}
