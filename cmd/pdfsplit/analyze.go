package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pdfsplit/pkg/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <pdf>",
	Short: "Show the structure of a PDF and how it would be split",
	Long: `Analyze reads the page count and bookmark outline of a PDF, summarizes
the outline per level and prints the chunk plan that convert would use.
The source may be a local path, an http(s) URL or an s3:// object.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	addPlanFlags(analyzeCmd)
	addStrategyFlag(analyzeCmd)
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
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

	s, p, err := rt.pipeline.Plan(cmd.Context(), src.Path)
	if err != nil {
		return err
	}
	printStructure(cmd.OutOrStdout(), args[0], s, viper.GetBool("verbose"))
	fmt.Fprintln(cmd.OutOrStdout())
	printPlan(cmd.OutOrStdout(), p, viper.GetBool("verbose"))
	return nil
}

// printStructure writes the analysis of a document.
func printStructure(w io.Writer, name string, s types.Structure, verbose bool) {
	fmt.Fprintf(w, "File: %s\n", name)
	fmt.Fprintf(w, "Size: %s\n", humanize.Bytes(uint64(max(s.SizeBytes, 0))))
	fmt.Fprintf(w, "Pages: %d\n", s.Document.Pages)
	if !s.HasOutline() {
		fmt.Fprintln(w, "Outline: none")
		return
	}
	fmt.Fprintf(w, "Outline: %d bookmarks, %d levels\n", len(s.Document.Outline.Nodes), s.Document.Outline.Depth())
	for _, li := range s.Levels {
		fmt.Fprintf(w, "  level %d: %d bookmarks on %d pages\n", li.Level, li.Count, li.UniquePages)
		if verbose && len(li.SampleTitles) > 0 {
			fmt.Fprintf(w, "    e.g. %s\n", strings.Join(li.SampleTitles, "; "))
		}
	}
}

// printPlan writes a plan summary, and the chunk list when verbose.
func printPlan(w io.Writer, p types.Plan, verbose bool) {
	fmt.Fprintln(w, p.Summary())
	if !verbose {
		return
	}
	for _, s := range p.Specs {
		line := fmt.Sprintf("  chunk %d: pages %s (%d owned)", s.Index, s.Range(), s.NominalPages())
		if s.Overlap > 0 {
			line += fmt.Sprintf(", %d overlap", s.Overlap)
		}
		if s.Title != "" {
			line += fmt.Sprintf(" %q", s.Title)
		}
		fmt.Fprintln(w, line)
	}
}
