// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package native implements gpucore.Device on top of the gogpu/wgpu HAL.
//
// A Device records every draw of a frame into one render pass:
//
//	dev, err := native.New(halDevice, halQueue, native.DefaultConfig())
//	...
//	dev.SetTarget(surfaceView)
//	dev.BeginFrame()
//	pipe.Render(ctx)
//	dev.EndFrame()
//
// Shader techniques map to entry points: technique "glow" uses vs_glow and
// fs_glow, the empty technique uses vs_main and fs_main. Every program shares
// one bind group layout:
//
//	@group(0) @binding(0) var<uniform> params  // parameters in name order, each padded to vec4
//	@group(0) @binding(1) var tex: texture_2d<f32>
//	@group(0) @binding(2) var tex_sampler: sampler
//
// Draws without a texture sample a 1x1 white texture. gpucore.NoProgram
// selects an embedded fallback program that outputs vertex color times
// texture color.
package native
