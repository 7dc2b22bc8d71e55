// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the pdfsplit CLI.
// Implements: analyze, chunk, convert, validate, compare, batch and runs
// subcommands plus the hidden worker entry point.
// See docs/ARCHITECTURE § CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pdfsplit/internal/logger"
	"github.com/pdiddy/pdfsplit/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from the secrets directory at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the pdfsplit CLI.
var rootCmd = &cobra.Command{
	Use:   "pdfsplit",
	Short: "Split large PDFs, convert the chunks in parallel and reassemble the result",
	Long: `pdfsplit cuts a large PDF into chunks that follow its bookmark outline,
converts the chunks concurrently in isolated worker processes, and merges the
per-chunk documents back into one document with global page numbers.

Use analyze and compare to inspect how a document would be split, chunk to
write the chunk files, and convert to run the whole pipeline.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		if err := initLogging(cmd); err != nil {
			return err
		}

		dir := viper.GetString("secrets-dir")
		s, err := secrets.Load(dir)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			log.Debug().Int("count", len(s)).Str("dir", dir).Msg("loaded secrets")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./pdfsplit.yaml or ~/.config/pdfsplit/pdfsplit.yaml)")
	pf.BoolP("verbose", "v", false, "verbose output and debug logging")
	pf.String("log-file", "", "also write JSON logs to this file (rotated)")
	pf.Bool("log-json", false, "write JSON logs to stderr instead of console output")
	pf.String("secrets-dir", secrets.DefaultDir, "directory of credential files")
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: reading .env:", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pdfsplit")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "pdfsplit"))
		}
	}

	viper.SetEnvPrefix("PDFSPLIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func initLogging(cmd *cobra.Command) error {
	level := "warn"
	if viper.GetBool("verbose") {
		level = "debug"
	}
	_, err := logger.Init(logger.Options{
		Level:      level,
		Pretty:     !viper.GetBool("log-json"),
		File:       viper.GetString("log-file"),
		MaxSizeMB:  50,
		MaxBackups: 3,
		MaxAgeDays: 14,
		Out:        cmd.ErrOrStderr(),
	})
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}
