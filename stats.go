// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package drawbatch

// Stats is a snapshot of pipeline counters.
type Stats struct {
	Batches    int // live batches
	Primitives int // placed primitives
	Pending    int // primitives awaiting placement

	DrawCalls          int    // draw calls issued by the last frame
	Frames             uint64 // completed Render calls
	Rebuilds           uint64 // full rebuild passes
	IncrementalPasses  uint64 // incremental placement passes
	InvalidatedBatches uint64 // batches dropped after a device error
	Evictions          uint64 // assets freed by in-loop sweeps
}
