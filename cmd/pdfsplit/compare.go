package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pdfsplit/internal/plan"
	"github.com/pdiddy/pdfsplit/pkg/types"
)

var compareCmd = &cobra.Command{
	Use:   "compare <pdf>",
	Short: "Compare the chunk plans of every strategy",
	Long: `Compare plans a PDF with the fixed, hybrid and enhanced strategies and
with automatic selection, and prints chunk counts and sizes side by side.`,
	Args: cobra.ExactArgs(1),
	RunE: runCompare,
}

func init() {
	addPlanFlags(compareCmd)
	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := pipelineConfigFromFlags()
	if err != nil {
		return err
	}
	src, err := resolveSource(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer src.Close()

	rt, err := newRuntime(cfg, false)
	if err != nil {
		return err
	}
	defer rt.close()

	s, _, err := rt.pipeline.Plan(cmd.Context(), src.Path)
	if err != nil {
		return err
	}
	plans, err := plan.Compare(s, cfg.Constraints)
	if err != nil {
		return err
	}
	printComparison(cmd.OutOrStdout(), plans)
	return nil
}

// printComparison writes one row per plan. The last plan is the automatic
// selection and is printed as the recommendation.
func printComparison(w io.Writer, plans []types.Plan) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REQUESTED\tSTRATEGY\tLEVEL\tCHUNKS\tMIN\tMAX\tAVG\tOUT OF BOUNDS")
	requested := []string{"fixed", "hybrid", "enhanced", "auto"}
	for i, p := range plans {
		name := fmt.Sprintf("#%d", i)
		if i < len(requested) {
			name = requested[i]
		}
		level := "-"
		if p.Level > 0 {
			level = fmt.Sprint(p.Level)
		}
		minSize, maxSize, avg := p.SizeStats()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%.1f\t%d\n",
			name, p.Strategy, level, p.NumChunks(), minSize, maxSize, avg, len(p.Violations))
	}
	tw.Flush()

	if len(plans) == 0 {
		return
	}
	auto := plans[len(plans)-1]
	fmt.Fprintf(w, "\nRecommended: %s", auto.Strategy)
	if auto.Level > 0 {
		fmt.Fprintf(w, " at outline level %d", auto.Level)
	}
	fmt.Fprintf(w, " (%d chunks)\n", auto.NumChunks())
	for _, n := range auto.Notes {
		fmt.Fprintf(w, "Note: %s\n", n)
	}
}
