// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package asset

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/drawbatch/internal/parallel"
)

// Preload allocates the assets named by keys on up to workers goroutines
// and waits for them. If workers is 0 or negative, GOMAXPROCS is used.
//
// Preload is a warm-up step; the batch pipeline allocates lazily either
// way. The loaders installed on r must be safe for concurrent use. Every
// failed allocation is reported in the joined error, and cancellation of
// ctx stops assets that have not started loading.
func (r *Registry) Preload(ctx context.Context, keys []Key, workers int) error {
	if len(keys) == 0 {
		return nil
	}
	workers = min(workers, len(keys))
	pool := parallel.NewPool(workers)
	defer pool.Close()

	var (
		mu   sync.Mutex
		errs []error
	)
	work := make([]func(context.Context), len(keys))
	for i, key := range keys {
		a := r.GetOrCreate(key)
		work[i] = func(ctx context.Context) {
			if err := a.Allocate(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}
	}

	skipped := pool.Run(ctx, work)
	if skipped > 0 {
		errs = append(errs, fmt.Errorf("asset: preload: %d of %d skipped: %w", skipped, len(keys), ctx.Err()))
	}
	slogger().Debug("asset: preload done", "assets", len(keys), "workers", pool.Workers(),
		"failed", len(errs), "skipped", skipped)
	return errors.Join(errs...)
}
