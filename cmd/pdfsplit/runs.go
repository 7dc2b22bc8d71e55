package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pdfsplit/internal/ledger"
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List recorded runs, or the chunks of one run",
	Long: `Runs reads the ledger written by convert --ledger. Without arguments it
lists recent runs; given a run ID it shows the per-chunk outcome.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().String("ledger", ledger.DefaultFile, "ledger database")
	runsCmd.Flags().Int("limit", 20, "number of runs to list (0 for all)")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	store, err := ledger.Open(viper.GetString("ledger"))
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if len(args) == 1 {
		run, err := store.Run(ctx, args[0])
		if err != nil {
			return err
		}
		chunks, err := store.Chunks(ctx, run.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Run %s: %s, %s, %d pages, %d chunks\n", run.ID, run.Source, run.Status, run.Pages, run.Chunks)
		if run.Error != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Error: %s\n", run.Error)
		}
		fmt.Fprintln(tw, "CHUNK\tPAGES\tWRITE\tCONVERT\tWORKER\tTOOK\tERROR")
		for _, c := range chunks {
			fmt.Fprintf(tw, "%d\t%d-%d\t%s\t%s\t%s\t%s\t%s\n", c.Index, c.Start, c.End,
				c.WriteStatus, c.ConvertStatus, c.WorkerID, c.Duration.Round(time.Millisecond), c.Error)
		}
		return nil
	}

	runs, err := store.Runs(ctx, viper.GetInt("limit"))
	if err != nil {
		return err
	}
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tSTRATEGY\tCHUNKS\tSOURCE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", r.ID, humanize.Time(r.StartedAt), r.Status, r.Strategy, r.Chunks, r.Source)
	}
	return nil
}
