package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pdfsplit/internal/convert"
	"github.com/pdiddy/pdfsplit/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Serve conversions over stdin and stdout (started by convert)",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := converterConfigFromFlags()
		conv, err := convert.New(cfg)
		if err == nil {
			conv = convert.WithTimeout(conv, cfg.Timeout)
		}
		return worker.Serve(cmd.Context(), conv, err, os.Stdin, os.Stdout)
	},
}

func init() {
	addConvertFlags(workerCmd)
	rootCmd.AddCommand(workerCmd)
}
