package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var chunkCmd = &cobra.Command{
	Use:     "chunk <pdf>",
	Aliases: []string{"split"},
	Short:   "Write the chunk files of a PDF without converting them",
	Long: `Chunk plans a PDF like convert does and writes each chunk as its own PDF
into the output directory, together with a manifest.yaml describing the
plan. The directory can later be passed to convert.`,
	Args: cobra.ExactArgs(1),
	RunE: runChunk,
}

func init() {
	addPlanFlags(chunkCmd)
	addStrategyFlag(chunkCmd)
	addWriteFlags(chunkCmd)
	chunkCmd.Flags().StringP("output", "o", "chunks", "directory for the chunk files")
	rootCmd.AddCommand(chunkCmd)
}

func runChunk(cmd *cobra.Command, args []string) error {
	cfg, err := pipelineConfigFromFlags()
	if err != nil {
		return err
	}
	outDir := viper.GetString("output")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", outDir, err)
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

	r, err := rt.pipeline.Chunk(cmd.Context(), src.Path, outDir)
	if mErr := rt.writeMetrics(); mErr != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: writing metrics:", mErr)
	}
	if err != nil {
		for _, f := range r.Write.Failed {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %v\n", f)
		}
		return err
	}

	w := cmd.OutOrStdout()
	printPlan(w, r.Plan, viper.GetBool("verbose"))
	fmt.Fprintf(w, "\nWrote %d chunks to %s in %s\n", r.Write.Succeeded(), r.ChunkDir, r.Write.Duration.Round(time.Millisecond))
	return nil
}
