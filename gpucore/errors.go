// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import "errors"

// Device errors shared by all backends.
var (
	// ErrDeviceLost is returned when the GPU device is lost.
	// All resources created on the device are invalid after this error.
	ErrDeviceLost = errors.New("gpucore: GPU device lost")

	// ErrInvalidResource is returned when an ID does not name a live resource.
	ErrInvalidResource = errors.New("gpucore: invalid resource id")

	// ErrNoFrame is returned when a draw-time call is made outside a frame.
	ErrNoFrame = errors.New("gpucore: no frame in progress")

	// ErrOutOfRange is returned when a write or draw exceeds a buffer.
	ErrOutOfRange = errors.New("gpucore: range exceeds buffer size")
)
