package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pdfsplit/internal/reassemble"
	"github.com/pdiddy/pdfsplit/internal/split"
	"github.com/pdiddy/pdfsplit/pkg/types"
)

var validateCmd = &cobra.Command{
	Use:   "validate <results.json>",
	Short: "Check saved conversion results and try to merge them",
	Long: `Validate reads a results file written by convert --results, reports
missing, duplicate, failed and discontinuous chunks, then merges the
results and prints the validation report.

The chunk plan comes from the manifest in --chunk-dir when given, otherwise
from the results themselves.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().String("chunk-dir", "", "chunk directory whose manifest holds the plan")
	validateCmd.Flags().Int("pages", 0, "page count of the source document (default: last chunk end)")
	validateCmd.Flags().StringP("output", "o", "", "write the merged document here when validation passes")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	results, err := readResults(args[0])
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()

	issues := reassemble.Inspect(results)
	if len(issues) == 0 {
		fmt.Fprintf(w, "%d results, no issues\n", len(results))
	} else {
		fmt.Fprintf(w, "%d results, %d issues:\n", len(results), len(issues))
		for _, is := range issues {
			fmt.Fprintf(w, "  %s\n", is)
		}
	}

	specs, pages, err := planForResults(results, viper.GetString("chunk-dir"), viper.GetInt("pages"))
	if err != nil {
		return err
	}

	doc, err := reassemble.New().Merge(specs, results, pages)
	if err != nil {
		var verr *types.MergeValidationError
		if errors.As(err, &verr) {
			fmt.Fprintln(w, verr.Report.String())
		}
		return err
	}
	fmt.Fprintln(w, reassemble.Statistics(doc).String())
	fmt.Fprintln(w, doc.Report.String())

	if out := viper.GetString("output"); out != "" {
		if err := reassemble.ExportFile(out, doc); err != nil {
			return err
		}
		fmt.Fprintf(w, "Wrote %s\n", out)
	}
	return nil
}

// planForResults returns the chunk specs and page count to merge results
// against. A manifest wins over the specs recorded in the results.
func planForResults(results []types.ConversionResult, chunkDir string, pages int) ([]types.ChunkSpec, int, error) {
	if chunkDir != "" {
		p, err := split.ReadManifest(chunkDir)
		if err != nil {
			return nil, 0, err
		}
		if pages <= 0 {
			pages = p.Pages
		}
		return p.Specs, pages, nil
	}

	seen := map[int]bool{}
	var specs []types.ChunkSpec
	for _, r := range results {
		if seen[r.Spec.Index] {
			continue
		}
		seen[r.Spec.Index] = true
		specs = append(specs, r.Spec)
	}
	if len(specs) == 0 {
		return nil, 0, errors.New("results file holds no chunks")
	}
	if pages <= 0 {
		pages = specs[len(specs)-1].End
	}
	return specs, pages, nil
}
