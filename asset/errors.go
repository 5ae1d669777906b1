// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package asset

import "errors"

// Asset errors.
var (
	// ErrNoLoader is returned by Allocate when no loader is registered for
	// the asset's kind.
	ErrNoLoader = errors.New("asset: no loader registered for kind")

	// ErrEmptyName is returned when a loader receives an asset with no name.
	ErrEmptyName = errors.New("asset: empty name")

	// ErrLoadDiscarded is returned by Allocate when the asset was freed or
	// invalidated while its load was in flight.
	ErrLoadDiscarded = errors.New("asset: load discarded")
)
