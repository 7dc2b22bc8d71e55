// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Default values for planning and execution.
const (
	DefaultMaxPages = 100
	DefaultMinPages = 15
	DefaultOverlap  = 0
	DefaultMaxDepth = 3
	DefaultMaxTasks = 1
)

// Constraints bound chunk planning. A Constraints value is immutable once
// handed to the planner.
type Constraints struct {
	// MaxPages is the maximum number of pages a chunk owns (default 100).
	MaxPages int `json:"max_pages" yaml:"max_pages"`

	// MinPages is the preferred minimum owned size (default 15). Hybrid
	// planning merges spans until a group reaches it.
	MinPages int `json:"min_pages" yaml:"min_pages"`

	// Overlap is the number of pages each chunk after the first repeats
	// from its predecessor (default 0).
	Overlap int `json:"overlap" yaml:"overlap"`

	// MaxDepth caps the outline levels considered by hybrid and enhanced
	// planning (default 3).
	MaxDepth int `json:"max_depth" yaml:"max_depth"`
}

// DefaultConstraints returns the constraints used when none are configured.
func DefaultConstraints() Constraints {
	return Constraints{
		MaxPages: DefaultMaxPages,
		MinPages: DefaultMinPages,
		Overlap:  DefaultOverlap,
		MaxDepth: DefaultMaxDepth,
	}
}

// WriterConfig holds settings for the chunk writing phase.
type WriterConfig struct {
	// Workers is the write pool size. Zero means one per CPU.
	Workers int `json:"workers" yaml:"workers"`

	// FailFast stops scheduling new writes after the first failure.
	FailFast bool `json:"fail_fast" yaml:"fail_fast"`
}

// BatchConfig holds settings for the conversion worker pool.
type BatchConfig struct {
	// Workers is the number of concurrent worker slots. Zero means one per
	// CPU.
	Workers int `json:"workers" yaml:"workers"`

	// MaxTasks is the number of conversions a worker performs before it is
	// retired and replaced (default 1).
	MaxTasks int `json:"max_tasks" yaml:"max_tasks"`

	// LaunchAttempts is how often a worker launch is tried before the pool
	// gives up (default 3).
	LaunchAttempts int `json:"launch_attempts" yaml:"launch_attempts"`

	// LaunchDelay is the pause between launch attempts (default 200ms).
	LaunchDelay time.Duration `json:"launch_delay" yaml:"launch_delay"`
}

// ConversionBackend identifies how a worker runs the conversion engine.
type ConversionBackend string

const (
	BackendContainer ConversionBackend = "container"
	BackendCommand   ConversionBackend = "command"
)

// ConverterConfig holds settings for the conversion engine boundary.
type ConverterConfig struct {
	// Backend selects the conversion runner: container or command.
	Backend ConversionBackend `json:"backend" yaml:"backend"`

	// Image is the container image for the container backend
	// (default "docling:latest").
	Image string `json:"image" yaml:"image"`

	// Command is the command template for the command backend. The token
	// {input} is replaced with the chunk path.
	Command []string `json:"command,omitempty" yaml:"command,omitempty"`

	// Timeout bounds a single conversion. Zero means no limit.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// PipelineConfig groups all phase configurations for one run.
type PipelineConfig struct {
	Constraints Constraints     `json:"constraints" yaml:"constraints"`
	Strategy    Strategy        `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Writer      WriterConfig    `json:"writer" yaml:"writer"`
	Batch       BatchConfig     `json:"batch" yaml:"batch"`
	Converter   ConverterConfig `json:"converter" yaml:"converter"`

	// ChunkDir is where chunk artifacts are written. Empty means a
	// temporary directory removed after the run unless KeepParts is set.
	ChunkDir  string `json:"chunk_dir,omitempty" yaml:"chunk_dir,omitempty"`
	KeepParts bool   `json:"keep_parts" yaml:"keep_parts"`
}
