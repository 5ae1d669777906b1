// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package drawbatch

import "errors"

// Package errors.
var (
	// ErrInvalidPrimitive is returned when a primitive's vertex data does not
	// form at least one complete triangle for its topology.
	ErrInvalidPrimitive = errors.New("drawbatch: invalid primitive")

	// ErrUnknownTopology is returned for an unsupported Topology value.
	ErrUnknownTopology = errors.New("drawbatch: unknown topology")

	// ErrPipelineClosed is returned by Render after Close.
	ErrPipelineClosed = errors.New("drawbatch: pipeline closed")
)
