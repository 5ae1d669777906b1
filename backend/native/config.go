// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Config configures a Device.
type Config struct {
	// API is the HAL backend opened by Init. Nil selects Vulkan when it is
	// compiled in. Ignored by New and NewFromProvider.
	API hal.Backend

	// TargetFormat is the color format of the render target.
	TargetFormat gputypes.TextureFormat

	// Width and Height size the offscreen target used when no target view
	// is set with SetTarget.
	Width, Height uint32

	// ClearColor is the color the target is cleared to at BeginFrame.
	ClearColor gputypes.Color

	// MaxTextureDimension caps texture edges reported to loaders.
	MaxTextureDimension uint32

	// FenceTimeout bounds how long EndFrame waits for the GPU.
	FenceTimeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		TargetFormat:        gputypes.TextureFormatBGRA8Unorm,
		Width:               1024,
		Height:              768,
		MaxTextureDimension: 8192,
		FenceTimeout:        5 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TargetFormat == gputypes.TextureFormatUndefined {
		c.TargetFormat = d.TargetFormat
	}
	if c.Width == 0 || c.Height == 0 {
		c.Width, c.Height = d.Width, d.Height
	}
	if c.MaxTextureDimension == 0 {
		c.MaxTextureDimension = d.MaxTextureDimension
	}
	if c.FenceTimeout <= 0 {
		c.FenceTimeout = d.FenceTimeout
	}
	return c
}
