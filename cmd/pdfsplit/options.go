// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pdfsplit/internal/analyze"
	"github.com/pdiddy/pdfsplit/internal/batch"
	"github.com/pdiddy/pdfsplit/internal/convert"
	"github.com/pdiddy/pdfsplit/internal/ledger"
	"github.com/pdiddy/pdfsplit/internal/metrics"
	"github.com/pdiddy/pdfsplit/internal/pdf"
	"github.com/pdiddy/pdfsplit/internal/pipeline"
	"github.com/pdiddy/pdfsplit/internal/plan"
	"github.com/pdiddy/pdfsplit/internal/reassemble"
	"github.com/pdiddy/pdfsplit/internal/secrets"
	"github.com/pdiddy/pdfsplit/internal/source"
	"github.com/pdiddy/pdfsplit/internal/split"
	"github.com/pdiddy/pdfsplit/internal/worker"
	"github.com/pdiddy/pdfsplit/pkg/types"
)

const downloadTimeout = 10 * time.Minute

// addPlanFlags registers the chunk size options shared by every planning
// command.
func addPlanFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("max-pages", types.DefaultMaxPages, "maximum pages per chunk")
	f.Int("min-pages", types.DefaultMinPages, "preferred minimum pages per chunk")
	f.Int("overlap", types.DefaultOverlap, "pages each chunk repeats from its predecessor")
	f.Int("max-depth", types.DefaultMaxDepth, "deepest outline level considered")
}

// addStrategyFlag registers --strategy/-s.
func addStrategyFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("strategy", "s", "", "force a strategy: fixed, hybrid or enhanced (default: automatic)")
}

// addWriteFlags registers the chunk writer options.
func addWriteFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntP("workers", "w", 0, "concurrent writers and conversion workers (default: one per CPU)")
	f.Bool("sequential", false, "use a single writer and a single conversion worker")
	f.Bool("fail-fast", false, "stop writing further chunks after the first failure")
	f.String("ledger", "", "record runs in this SQLite file (default: none)")
	f.String("metrics-file", "", "write Prometheus metrics to this textfile after the run")
}

// addConvertFlags registers the conversion options.
func addConvertFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("maxtasks", types.DefaultMaxTasks, "conversions per worker before it is replaced")
	f.String("backend", string(types.BackendContainer), "conversion backend: container or command")
	f.String("image", convert.DefaultImage, "container image for the container backend")
	f.StringSlice("command", nil, "command for the command backend; {input} is replaced by the chunk path")
	f.Duration("timeout", 0, "time limit per chunk conversion (default: none)")
	f.Bool("in-process", false, "convert inside this process instead of worker processes (debugging)")
	f.Bool("keep-parts", false, "keep the chunk files after converting")
	f.String("chunk-dir", "", "directory for chunk files (default: a temporary directory)")
	f.String("results", "", "write per-chunk conversion results as JSON to this file")
}

// constraintsFromFlags reads and validates the planning options.
func constraintsFromFlags() (types.Constraints, error) {
	c := types.Constraints{
		MaxPages: viper.GetInt("max-pages"),
		MinPages: viper.GetInt("min-pages"),
		Overlap:  viper.GetInt("overlap"),
		MaxDepth: viper.GetInt("max-depth"),
	}
	if err := plan.Validate(c); err != nil {
		return types.Constraints{}, err
	}
	return c, nil
}

func strategyFromFlags() (types.Strategy, error) {
	return types.ParseStrategy(viper.GetString("strategy"))
}

// pipelineConfigFromFlags builds the run configuration. Flags a command
// does not register read as their zero value.
func pipelineConfigFromFlags() (types.PipelineConfig, error) {
	c, err := constraintsFromFlags()
	if err != nil {
		return types.PipelineConfig{}, err
	}
	strategy, err := strategyFromFlags()
	if err != nil {
		return types.PipelineConfig{}, err
	}

	workers := viper.GetInt("workers")
	if workers < 0 {
		return types.PipelineConfig{}, fmt.Errorf("--workers must not be negative, got %d", workers)
	}
	if viper.GetBool("sequential") {
		workers = 1
	}
	maxTasks := viper.GetInt("maxtasks")
	if maxTasks <= 0 {
		maxTasks = types.DefaultMaxTasks
	}

	return types.PipelineConfig{
		Constraints: c,
		Strategy:    strategy,
		Writer: types.WriterConfig{
			Workers:  workers,
			FailFast: viper.GetBool("fail-fast"),
		},
		Batch: types.BatchConfig{
			Workers:  workers,
			MaxTasks: maxTasks,
		},
		Converter: converterConfigFromFlags(),
		ChunkDir:  viper.GetString("chunk-dir"),
		KeepParts: viper.GetBool("keep-parts"),
	}, nil
}

// checkConvertFlags rejects conversion options the pool cannot run with.
func checkConvertFlags() error {
	if n := viper.GetInt("maxtasks"); n < 1 {
		return fmt.Errorf("--maxtasks must be at least 1, got %d", n)
	}
	switch b := types.ConversionBackend(viper.GetString("backend")); b {
	case types.BackendContainer, types.BackendCommand:
	default:
		return fmt.Errorf("unknown conversion backend %q: want container or command", b)
	}
	return nil
}

func converterConfigFromFlags() types.ConverterConfig {
	return types.ConverterConfig{
		Backend: types.ConversionBackend(viper.GetString("backend")),
		Image:   viper.GetString("image"),
		Command: viper.GetStringSlice("command"),
		Timeout: viper.GetDuration("timeout"),
	}
}

// workerArgs are the arguments a worker child is started with. They carry
// the converter settings so the child builds the same backend.
func workerArgs(cfg types.ConverterConfig) []string {
	args := []string{"worker", "--backend", string(cfg.Backend)}
	if cfg.Image != "" {
		args = append(args, "--image", cfg.Image)
	}
	for _, c := range cfg.Command {
		args = append(args, "--command", c)
	}
	if cfg.Timeout > 0 {
		args = append(args, "--timeout", cfg.Timeout.String())
	}
	if viper.GetBool("verbose") {
		args = append(args, "--verbose")
	}
	return args
}

// launcherFor returns the worker launcher for cfg.
func launcherFor(cfg types.ConverterConfig) (batch.Launcher, error) {
	if viper.GetBool("in-process") {
		conv, err := convert.New(cfg)
		if err != nil {
			return nil, err
		}
		conv = convert.WithTimeout(conv, cfg.Timeout)
		return batch.InProcessLauncher{Convert: func(ctx context.Context, f types.ChunkFile) (*types.Fragment, error) {
			return conv.Convert(ctx, f.Path)
		}}, nil
	}
	l, err := worker.SelfLauncher(workerArgs(cfg))
	if err != nil {
		return nil, err
	}
	return l, nil
}

// runtime holds what a pipeline command opened and must release.
type runtime struct {
	pipeline *pipeline.Pipeline
	ledger   *ledger.Store
	metrics  *metrics.Metrics
}

func (r *runtime) close() {
	if r.ledger != nil {
		r.ledger.Close()
	}
}

// writeMetrics exports the metrics textfile when --metrics-file is set.
func (r *runtime) writeMetrics() error {
	path := viper.GetString("metrics-file")
	if path == "" {
		return nil
	}
	return r.metrics.WriteTextfile(path)
}

// newRuntime assembles the pipeline for cfg. withBatch is false for
// commands that never convert.
func newRuntime(cfg types.PipelineConfig, withBatch bool) (*runtime, error) {
	engine := pdf.New()
	rt := &runtime{metrics: metrics.New()}
	deps := pipeline.Deps{
		Analyzer: analyze.New(engine),
		Writer:   split.NewWriter(engine, cfg.Writer),
		Merger:   reassemble.New(),
		Metrics:  rt.metrics,
	}
	if withBatch {
		l, err := launcherFor(cfg.Converter)
		if err != nil {
			return nil, err
		}
		deps.Batch = batch.New(l, cfg.Batch)
	}
	if path := viper.GetString("ledger"); path != "" {
		store, err := ledger.Open(path)
		if err != nil {
			return nil, err
		}
		rt.ledger = store
		deps.Ledger = store
	}
	rt.pipeline = pipeline.New(cfg, deps)
	return rt, nil
}

// resolveSource downloads remote references. The returned Local must be
// closed.
func resolveSource(ctx context.Context, ref string) (source.Local, error) {
	r := source.New(source.Options{
		AWS:        secrets.AWSFrom(loadedSecrets),
		HTTPClient: &http.Client{Timeout: downloadTimeout},
	})
	local, err := r.Resolve(ctx, ref)
	if err != nil {
		return source.Local{}, &types.StructureReadError{Path: ref, Err: err}
	}
	return local, nil
}

// defaultOutput derives the merged document path for a source: the base
// name with a .json extension, in the working directory.
func defaultOutput(src string) string {
	base := filepath.Base(strings.TrimSuffix(src, "/"))
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base + ".json"
}
