package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pdfsplit/internal/metrics"
	"github.com/pdiddy/pdfsplit/internal/pipeline"
	"github.com/pdiddy/pdfsplit/internal/reassemble"
	"github.com/pdiddy/pdfsplit/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert <pdf|url|chunk-dir>",
	Short: "Split, convert and reassemble a PDF",
	Long: `Convert runs the whole pipeline: it plans the chunks, writes them,
converts each chunk in an isolated worker process and merges the results
into one document with global page numbers.

Given a directory written by chunk, convert skips planning and writing and
converts the chunks found there.

Exit codes: 2 unreadable source, 3 planning failed, 4 chunk writes failed,
5 conversion could not run, 6 a chunk has no result, 7 merge validation
failed.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	addPlanFlags(convertCmd)
	addStrategyFlag(convertCmd)
	addWriteFlags(convertCmd)
	addConvertFlags(convertCmd)
	convertCmd.Flags().StringP("output", "o", "", "merged document path (default: <source name>.json)")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	if err := checkConvertFlags(); err != nil {
		return err
	}
	cfg, err := pipelineConfigFromFlags()
	if err != nil {
		return err
	}
	rt, err := newRuntime(cfg, true)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := cmd.Context()
	var r *pipeline.Report
	if info, statErr := os.Stat(args[0]); statErr == nil && info.IsDir() {
		r, err = rt.pipeline.ConvertDir(ctx, args[0])
	} else {
		src, srcErr := resolveSource(ctx, args[0])
		if srcErr != nil {
			return srcErr
		}
		defer src.Close()
		r, err = rt.pipeline.Run(ctx, src.Path)
	}

	if mErr := rt.writeMetrics(); mErr != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: writing metrics:", mErr)
	}
	if path := viper.GetString("results"); path != "" && len(r.Results) > 0 {
		if rErr := writeResults(path, r.Results); rErr != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning:", rErr)
		}
	}
	if err != nil {
		printFailures(cmd.ErrOrStderr(), r, err)
		return err
	}

	out := viper.GetString("output")
	if out == "" {
		out = defaultOutput(args[0])
	}
	if err := reassemble.ExportFile(out, r.Merged); err != nil {
		return err
	}
	printReport(cmd.OutOrStdout(), r, out, viper.GetBool("verbose"))
	return nil
}

// writeResults stores per-chunk conversion results as a JSON array.
func writeResults(path string, results []types.ConversionResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing results %s: %w", path, err)
	}
	return nil
}

// readResults loads a file written by writeResults.
func readResults(path string) ([]types.ConversionResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading results %s: %w", path, err)
	}
	var results []types.ConversionResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("parsing results %s: %w", path, err)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Spec.Index < results[j].Spec.Index })
	return results, nil
}

// printFailures explains a failed run: the chunks that did not write or
// convert, and the validation report of a rejected merge.
func printFailures(w io.Writer, r *pipeline.Report, err error) {
	if r == nil {
		return
	}
	for _, f := range r.Write.Failed {
		fmt.Fprintf(w, "  %v\n", f)
	}
	for _, res := range r.Results {
		if res.Err != nil {
			fmt.Fprintf(w, "  %v\n", res.Err)
		}
	}
	var verr *types.MergeValidationError
	if errors.As(err, &verr) {
		fmt.Fprintln(w, verr.Report.String())
	}
}

// printReport summarizes a successful conversion.
func printReport(w io.Writer, r *pipeline.Report, out string, verbose bool) {
	fmt.Fprintf(w, "Strategy: %s, %d chunks, %d pages\n", r.Plan.Strategy, r.Plan.NumChunks(), r.Plan.Pages)
	fmt.Fprintf(w, "Converted: %d/%d chunks, %d workers launched\n",
		r.Summary.Converted, r.Summary.Total(), r.Workers.Launched)
	fmt.Fprintln(w, reassemble.Statistics(r.Merged).String())
	fmt.Fprintf(w, "Validation: %s\n", r.Merged.Report.String())
	fmt.Fprintf(w, "Wrote %s\n", out)

	if !verbose {
		return
	}
	for _, p := range metrics.Phases {
		if d, ok := r.Timings[p]; ok {
			fmt.Fprintf(w, "  %-8s %s\n", p, d.Round(time.Millisecond))
		}
	}
	for _, res := range r.Results {
		fmt.Fprintf(w, "  chunk %d: %s on %s in %s\n", res.Spec.Index, res.Spec.Range(), res.WorkerID, res.Duration.Round(time.Millisecond))
	}
}
