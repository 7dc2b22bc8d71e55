package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Analyze every PDF in a directory",
	Long: `Batch plans each PDF found directly in a directory and prints one line per
file with its page count and the selected plan. Files that cannot be read
are reported in the table and do not stop the scan.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	addPlanFlags(batchCmd)
	addStrategyFlag(batchCmd)
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := pipelineConfigFromFlags()
	if err != nil {
		return err
	}
	paths, err := findPDFs(args[0])
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no PDF files in %s", args[0])
	}

	rt, err := newRuntime(cfg, false)
	if err != nil {
		return err
	}
	defer rt.close()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSIZE\tPAGES\tBOOKMARKS\tSTRATEGY\tCHUNKS")
	failed := 0
	for _, path := range paths {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		name := filepath.Base(path)
		s, p, err := rt.pipeline.Plan(cmd.Context(), path)
		if err != nil {
			failed++
			log.Debug().Err(err).Str("file", path).Msg("batch analysis failed")
			fmt.Fprintf(tw, "%s\t-\t-\t-\terror: %v\t-\n", name, err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%d\n", name, humanize.Bytes(uint64(max(s.SizeBytes, 0))),
			s.Document.Pages, len(s.Document.Outline.Nodes), p.Strategy, p.NumChunks())
	}
	tw.Flush()
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d files, %d failed\n", len(paths), failed)
	return nil
}

// findPDFs returns the PDF files directly inside dir, sorted by name.
// Content is sniffed, so extensions do not matter.
func findPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		mt, err := mimetype.DetectFile(path)
		if err != nil {
			log.Debug().Err(err).Str("file", path).Msg("skipping unreadable file")
			continue
		}
		if mt.Is("application/pdf") {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}
