// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import "errors"

// Resource errors.
var (
	// ErrInvalidName is returned for names that are not valid slash-separated
	// relative paths, such as names containing "..".
	ErrInvalidName = errors.New("resource: invalid resource name")

	// ErrUnsupportedKind is returned when a loader receives a key of a kind
	// it does not handle.
	ErrUnsupportedKind = errors.New("resource: unsupported asset kind")

	// ErrInvalidSPIRV is returned for precompiled shader files that are not
	// SPIR-V binaries.
	ErrInvalidSPIRV = errors.New("resource: invalid SPIR-V binary")

	// ErrInvalidManifest is returned when a skin manifest cannot be decoded.
	ErrInvalidManifest = errors.New("resource: invalid skin manifest")
)
