// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package drawbatch groups many small draw primitives into few GPU draw calls.
//
// # Overview
//
// Producers (a UI or scene layer) describe what to draw as [Primitive]
// values: a vertex list plus a [Binding] naming the shader effect, its
// parameters and an optional texture. A [Pipeline] partitions the live
// primitives into [Batch] groups whose bindings compare equal, uploads each
// group's vertices into one consolidated buffer, and issues one bind and one
// draw per batch per frame.
//
// # Quick Start
//
//	reg := asset.NewRegistry()
//	pl := drawbatch.NewPipeline(dev, drawbatch.WithRegistry(reg))
//	defer pl.Close()
//
//	b := drawbatch.Binding{
//	    Effect:  drawbatch.EffectRef{Program: reg.Shader("quad.wgsl"), Technique: "textured"},
//	    Texture: reg.Texture("button.png"),
//	}
//	p, err := drawbatch.NewPrimitive(b, drawbatch.TriangleList, verts)
//	if err != nil {
//	    return err
//	}
//	pl.Add(p)
//
//	for running {
//	    _ = pl.Render(ctx) // once per frame, on the render goroutine
//	}
//
// # Frame Model
//
// Add, Remove and MarkDirty may be called from any goroutine. They only
// enqueue commands; the queue is drained at the start of Render, so batch
// membership never changes while a frame is being drawn. Render then either
// repartitions everything (after MarkDirty) or places only the newly added
// primitives, and draws batches in the order they were created.
//
// # Resource Lifetime
//
// Effects and textures are [asset.Asset] values shared through an
// [asset.Registry]. Batches allocate them lazily on first draw and mark
// them as used every frame; an [asset.Sweeper] frees the ones that go idle.
// A missing texture or shader degrades the draw instead of dropping it.
package drawbatch
