// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"

	"github.com/pdiddy/pdfsplit/pkg/types"
)

// Process exit codes.
const (
	exitOK              = 0
	exitUsage           = 1
	exitStructureRead   = 2
	exitStrategy        = 3
	exitChunkWrite      = 4
	exitConversion      = 5
	exitMissingChunk    = 6
	exitMergeValidation = 7
)

// exitCode maps an error returned by a command to the process exit code.
func exitCode(err error) int {
	var (
		structErr   *types.StructureReadError
		strategyErr *types.StrategySelectionError
		writeErrs   types.ChunkWriteErrors
		writeErr    *types.ChunkWriteError
		convErr     *types.ConversionError
		poolErr     *types.WorkerPoolError
		missingErr  *types.MissingChunkError
		mergeErr    *types.MergeValidationError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &structErr):
		return exitStructureRead
	case errors.As(err, &strategyErr):
		return exitStrategy
	case errors.As(err, &writeErrs), errors.As(err, &writeErr):
		return exitChunkWrite
	case errors.As(err, &poolErr), errors.As(err, &convErr):
		return exitConversion
	case errors.As(err, &missingErr):
		return exitMissingChunk
	case errors.As(err, &mergeErr):
		return exitMergeValidation
	}
	return exitUsage
}
