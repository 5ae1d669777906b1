// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"

	"github.com/gogpu/drawbatch/gpucore"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("backend: not initialized")
)

// Backend is a gpucore.Device that owns its frame loop.
//
// Backends must be registered via Register() and are selected via
// Get() or Default().
type Backend interface {
	gpucore.Device

	// Name returns the backend identifier (e.g., "software", "native").
	Name() string

	// Init initializes the backend.
	// This must be called before any other method.
	Init() error

	// BeginFrame starts recording a frame. Draw-time methods of
	// gpucore.Device are valid until EndFrame.
	BeginFrame() error

	// EndFrame submits the recorded frame and waits for it to complete.
	EndFrame() error

	// Close releases all backend resources.
	// The backend should not be used after Close is called.
	Close()
}
