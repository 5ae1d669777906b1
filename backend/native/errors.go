// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import "errors"

var (
	// ErrFrameInProgress is returned by BeginFrame when a frame is already open.
	ErrFrameInProgress = errors.New("native: frame already in progress")

	// ErrNoHAL is returned when a device provider does not expose HAL types.
	ErrNoHAL = errors.New("native: provider does not expose HAL types")

	// ErrNoAdapter is returned when no HAL backend or adapter is available.
	ErrNoAdapter = errors.New("native: no GPU adapter available")

	// ErrNoTarget is returned by BeginFrame when there is nothing to render to.
	ErrNoTarget = errors.New("native: no render target")
)
