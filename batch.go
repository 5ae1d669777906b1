// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package drawbatch

import (
	"context"
	"fmt"
	"math/bits"
	"slices"

	"github.com/gogpu/drawbatch/asset"
	"github.com/gogpu/drawbatch/gpucore"
)

// Status is the result of rendering one batch.
type Status uint8

const (
	// StatusOK means the batch drew and stays in the pipeline.
	StatusOK Status = iota

	// StatusInvalid means a device error occurred. The pipeline drops the
	// batch after the pass and re-queues its members.
	StatusInvalid
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusInvalid:
		return "Invalid"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Batch is a group of primitives with equal bindings, drawn with a single
// bind and a single draw call from one consolidated vertex buffer.
//
// Batches are created and destroyed by the Pipeline and are only accessed
// on the render goroutine.
type Batch struct {
	id      uint64
	hash    uint64
	binding Binding
	members []*Primitive

	buffer   gpucore.BufferID
	capacity int // vertices the buffer can hold

	totalVertices   int
	totalPrimitives int
	dirty           bool

	// pinned holds the assets pinned by the last Render until the pipeline
	// releases them at the end of the pass.
	pinned []*asset.Asset
}

func newBatch(id uint64, binding Binding) *Batch {
	b := binding.Clone()
	return &Batch{id: id, hash: b.Hash(), binding: b}
}

// ID returns the batch's creation sequence number within its pipeline.
func (b *Batch) ID() uint64 { return b.id }

// Binding returns the canonical binding shared by all members.
func (b *Batch) Binding() Binding { return b.binding }

// Members returns a copy of the members in draw order.
func (b *Batch) Members() []*Primitive { return slices.Clone(b.members) }

// Len returns the number of members.
func (b *Batch) Len() int { return len(b.members) }

// VertexCount returns the total vertex count of all members.
func (b *Batch) VertexCount() int { return b.totalVertices }

// PrimitiveCount returns the total triangle count of all members.
func (b *Batch) PrimitiveCount() int { return b.totalPrimitives }

// Capacity returns how many vertices the consolidated buffer can hold.
func (b *Batch) Capacity() int { return b.capacity }

// Buffer returns the consolidated vertex buffer, or gpucore.InvalidID
// before the first Finish.
func (b *Batch) Buffer() gpucore.BufferID { return b.buffer }

// Dirty reports whether membership changed since the last Finish.
func (b *Batch) Dirty() bool { return b.dirty }

// Add appends p to the batch and makes the batch its owner.
func (b *Batch) Add(p *Primitive) {
	b.members = append(b.members, p)
	b.totalVertices += p.VertexCount()
	b.totalPrimitives += p.PrimitiveCount()
	b.dirty = true
	p.batch = b
}

// Remove takes p out of the batch and clears its owner. It reports whether
// the batch is now empty and can be dropped. Removing a primitive that is
// not a member is a no-op.
func (b *Batch) Remove(p *Primitive) (empty bool) {
	i := slices.Index(b.members, p)
	if i < 0 {
		return len(b.members) == 0
	}
	b.members = slices.Delete(b.members, i, i+1)
	b.totalVertices -= p.VertexCount()
	b.totalPrimitives -= p.PrimitiveCount()
	b.dirty = true
	if p.batch == b {
		p.batch = nil
	}
	return len(b.members) == 0
}

// Finish rebuilds the consolidated vertex buffer if membership changed.
// The buffer is reused when it is large enough; otherwise it is replaced
// by one sized to the next power of two vertices.
func (b *Batch) Finish(dev gpucore.Device) error {
	if !b.dirty {
		return nil
	}
	if b.totalVertices == 0 {
		b.dirty = false
		return nil
	}

	if b.buffer == gpucore.InvalidID || b.capacity < b.totalVertices {
		if b.buffer != gpucore.InvalidID {
			dev.DestroyBuffer(b.buffer)
			b.buffer = gpucore.InvalidID
			b.capacity = 0
		}
		capacity := nextPowerOfTwo(b.totalVertices)
		id, err := dev.CreateBuffer(
			fmt.Sprintf("drawbatch_batch_%d", b.id),
			uint64(capacity)*VertexStride, //nolint:gosec // capacity is positive
			gpucore.BufferUsageVertex|gpucore.BufferUsageCopyDst,
		)
		if err != nil {
			return fmt.Errorf("create vertex buffer: %w", err)
		}
		slogger().Debug("drawbatch: batch buffer grown",
			"batch", b.id, "vertices", b.totalVertices, "capacity", capacity)
		b.buffer = id
		b.capacity = capacity
	}

	data := make([]byte, b.totalVertices*VertexStride)
	off := 0
	for _, p := range b.members {
		for _, v := range p.vertices {
			putVertex(data[off:off+VertexStride], v)
			off += VertexStride
		}
	}
	if err := dev.WriteBuffer(b.buffer, 0, data); err != nil {
		return fmt.Errorf("upload vertices: %w", err)
	}
	b.dirty = false
	return nil
}

// Render finishes the buffer, allocates the batch's assets, binds the
// render state once and issues one draw call.
//
// Asset allocation failures do not invalidate the batch: a missing texture
// draws untextured and a missing program draws with the device's fallback
// program. Allocation is retried on every call. Any device error returns
// StatusInvalid.
func (b *Batch) Render(ctx context.Context, dev gpucore.Device) Status {
	if len(b.members) == 0 {
		return StatusOK
	}
	if err := b.Finish(dev); err != nil {
		slogger().Warn("drawbatch: batch finish failed", "batch", b.id, "err", err)
		return StatusInvalid
	}

	program := gpucore.NoProgram
	if a := b.binding.Effect.Program; a != nil {
		if h, ok := b.use(ctx, a); ok {
			program = h.Shader
		}
	}
	texture := gpucore.NoTexture
	if a := b.binding.Texture; a != nil {
		if h, ok := b.use(ctx, a); ok {
			texture = h.Texture
		}
	}

	if err := b.draw(dev, program, texture); err != nil {
		slogger().Warn("drawbatch: batch draw failed", "batch", b.id, "binding", b.binding.String(), "err", err)
		return StatusInvalid
	}
	return StatusOK
}

func (b *Batch) draw(dev gpucore.Device, program gpucore.ShaderModuleID, texture gpucore.TextureID) error {
	if err := dev.BindProgram(program, b.binding.Effect.Technique); err != nil {
		return fmt.Errorf("bind program: %w", err)
	}
	if err := dev.SetParameters(b.binding.Params.Parameters()); err != nil {
		return fmt.Errorf("set parameters: %w", err)
	}
	if err := dev.BindTexture(texture); err != nil {
		return fmt.Errorf("bind texture: %w", err)
	}
	if err := dev.Draw(b.buffer, 0, uint32(b.totalVertices)); err != nil { //nolint:gosec // vertex count fits uint32
		return fmt.Errorf("draw: %w", err)
	}
	return nil
}

// use pins a, allocates it if needed and records the use. The pin is taken
// before allocation so a concurrent sweep cannot free the handle between
// allocation and the draw.
func (b *Batch) use(ctx context.Context, a *asset.Asset) (asset.Handle, bool) {
	a.Pin()
	b.pinned = append(b.pinned, a)
	if err := a.Allocate(ctx); err != nil {
		return asset.Handle{}, false
	}
	h, ok := a.Handle()
	if ok {
		a.Touch()
	}
	return h, ok
}

// releasePins unpins every asset pinned by the last Render.
func (b *Batch) releasePins() {
	for _, a := range b.pinned {
		a.Unpin()
	}
	clear(b.pinned)
	b.pinned = b.pinned[:0]
}

// Release destroys the consolidated buffer. Members are left untouched.
func (b *Batch) Release(dev gpucore.Device) {
	b.releasePins()
	if b.buffer != gpucore.InvalidID {
		dev.DestroyBuffer(b.buffer)
		b.buffer = gpucore.InvalidID
	}
	b.capacity = 0
	b.dirty = len(b.members) > 0
}

// nextPowerOfTwo returns the smallest power of two >= n (n > 0).
func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1)) //nolint:gosec // n is positive
}
