// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package drawbatch

import "github.com/gogpu/drawbatch/asset"

// Option configures a Pipeline during creation.
//
// Example:
//
//	reg := asset.NewRegistry(asset.WithIdleThreshold(10 * time.Second))
//	p := drawbatch.NewPipeline(dev, drawbatch.WithRegistry(reg), drawbatch.WithSweepEvery(60))
type Option func(*pipelineOptions)

// pipelineOptions holds optional configuration for Pipeline creation.
type pipelineOptions struct {
	registry   *asset.Registry
	clock      asset.Clock
	sweepEvery int
}

// defaultOptions returns the default pipeline options.
func defaultOptions() pipelineOptions {
	return pipelineOptions{
		registry:   nil, // created by NewPipeline if nil
		sweepEvery: 0,   // no in-loop sweeping; run an asset.Sweeper instead
	}
}

// WithRegistry shares an existing asset registry with the pipeline.
// Without it, NewPipeline creates a private registry and frees its assets
// on Close.
func WithRegistry(r *asset.Registry) Option {
	return func(o *pipelineOptions) {
		o.registry = r
	}
}

// WithClock sets the time source of the pipeline's private registry.
// It has no effect together with WithRegistry.
func WithClock(c asset.Clock) Option {
	return func(o *pipelineOptions) {
		o.clock = c
	}
}

// WithSweepEvery makes Render sweep idle assets synchronously after every
// n-th frame, once all pins of the frame are released. n <= 0 disables it.
func WithSweepEvery(n int) Option {
	return func(o *pipelineOptions) {
		o.sweepEvery = max(n, 0)
	}
}
