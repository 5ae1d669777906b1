// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package asset

import (
	"context"
	"time"
)

// DefaultSweepInterval is the polling period used by Sweeper.Run.
const DefaultSweepInterval = time.Second

// Sweeper frees assets that have been idle for longer than the registry's
// idle threshold. Eviction is driven by polling: nothing notifies the
// sweeper when an asset goes idle.
type Sweeper struct {
	reg      *Registry
	interval time.Duration
}

// NewSweeper creates a sweeper over reg. An interval <= 0 uses
// DefaultSweepInterval.
func NewSweeper(reg *Registry, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{reg: reg, interval: interval}
}

// Interval returns the polling period used by Run.
func (s *Sweeper) Interval() time.Duration { return s.interval }

// Sweep frees every allocated asset with CanBeDeleted(now) and returns the
// number freed. Assets pinned by the frame in progress are skipped.
func (s *Sweeper) Sweep(now time.Time) int {
	freed := 0
	s.reg.Range(func(a *Asset) bool {
		if a.TryEvict(now) {
			freed++
		}
		return true
	})
	if freed > 0 {
		s.reg.evictions.Add(uint64(freed)) //nolint:gosec // freed is non-negative
		slogger().Debug("asset: sweep", "freed", freed)
	}
	return freed
}

// Run sweeps every interval until ctx is canceled, then returns ctx.Err().
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(s.reg.now())
		}
	}
}
