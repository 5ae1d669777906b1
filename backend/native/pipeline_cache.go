// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/drawbatch/gpucore"
)

// pipelineKey identifies a render pipeline by program and technique.
// The fallback program uses gpucore.NoProgram.
type pipelineKey struct {
	module    gpucore.ShaderModuleID
	technique string
}

// pipelineEntry caches a created pipeline or the error creating it, so a
// broken technique is not rebuilt every frame.
type pipelineEntry struct {
	pipeline hal.RenderPipeline
	err      error
}

// pipelineCache caches render pipelines per (program, technique).
//
// Pipeline creation is expensive because it involves shader validation.
// The cache tracks hit/miss statistics for performance monitoring.
type pipelineCache struct {
	device hal.Device
	layout hal.PipelineLayout
	format gputypes.TextureFormat

	mu      sync.RWMutex
	entries map[pipelineKey]*pipelineEntry

	hits   atomic.Uint64
	misses atomic.Uint64
}

func newPipelineCache(device hal.Device, layout hal.PipelineLayout, format gputypes.TextureFormat) *pipelineCache {
	return &pipelineCache{
		device:  device,
		layout:  layout,
		format:  format,
		entries: make(map[pipelineKey]*pipelineEntry),
	}
}

// entryPoints returns the vertex and fragment entry points of technique.
func entryPoints(technique string) (vs, fs string) {
	if technique == "" {
		technique = "main"
	}
	return "vs_" + technique, "fs_" + technique
}

// get returns the pipeline for key, creating it from module on first use.
func (c *pipelineCache) get(key pipelineKey, module hal.ShaderModule) (hal.RenderPipeline, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return e.pipeline, e.err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.hits.Add(1)
		return e.pipeline, e.err
	}
	c.misses.Add(1)

	p, err := c.create(key, module)
	if err != nil {
		slogger().Warn("native: pipeline creation failed", "module", key.module, "technique", key.technique, "error", err)
	}
	c.entries[key] = &pipelineEntry{pipeline: p, err: err}
	return p, err
}

func (c *pipelineCache) create(key pipelineKey, module hal.ShaderModule) (hal.RenderPipeline, error) {
	vs, fs := entryPoints(key.technique)
	premulBlend := gputypes.BlendStatePremultiplied()
	p, err := c.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  fmt.Sprintf("drawbatch_pipeline_%d_%s", key.module, key.technique),
		Layout: c.layout,
		Vertex: hal.VertexState{
			Module:     module,
			EntryPoint: vs,
			Buffers:    vertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: fs,
			Targets: []gputypes.ColorTargetState{
				{
					Format:    c.format,
					Blend:     &premulBlend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: technique %q: %w", gpucore.ErrInvalidResource, key.technique, err)
	}
	return p, nil
}

// vertexLayout returns the vertex buffer layout shared by all programs.
// Matches VertexInput in fallback.wgsl:
//
//	location 0: position (vec3<f32>)
//	location 1: color (unorm8x4)
//	location 2: uv (vec2<f32>)
func vertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: gpucore.VertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},  // position
				{Format: gputypes.VertexFormatUnorm8x4, Offset: 12, ShaderLocation: 1},  // color
				{Format: gputypes.VertexFormatFloat32x2, Offset: 16, ShaderLocation: 2}, // uv
			},
		},
	}
}

// evict removes every pipeline built from module and returns them for
// destruction.
func (c *pipelineCache) evict(module gpucore.ShaderModuleID) []hal.RenderPipeline {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []hal.RenderPipeline
	for k, e := range c.entries {
		if k.module != module {
			continue
		}
		if e.pipeline != nil {
			out = append(out, e.pipeline)
		}
		delete(c.entries, k)
	}
	return out
}

// destroy destroys every cached pipeline.
func (c *pipelineCache) destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if e.pipeline != nil {
			c.device.DestroyRenderPipeline(e.pipeline)
		}
		delete(c.entries, k)
	}
}

// stats returns the number of cached pipelines and the hit/miss counters.
func (c *pipelineCache) stats() (size int, hits, misses uint64) {
	c.mu.RLock()
	size = len(c.entries)
	c.mu.RUnlock()
	return size, c.hits.Load(), c.misses.Load()
}
