// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/drawbatch/gpucore"
)

// frameState holds the command recording of one frame.
type frameState struct {
	encoder hal.CommandEncoder
	pass    hal.RenderPassEncoder

	pipeline hal.RenderPipeline
	params   []gpucore.Parameter
	texture  gpucore.TextureID

	uniforms   []hal.Buffer
	bindGroups []hal.BindGroup
	draws      int

	// deferred destroys resources released while the frame was recording.
	deferred []func()
}

// SetTarget sets the texture view frames render to, such as a surface
// view. Nil selects the offscreen target sized by Config.Width and
// Config.Height. The view must match Config.TargetFormat.
func (d *Device) SetTarget(view hal.TextureView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.target = view
}

// Offscreen returns the offscreen target texture, creating it if needed.
func (d *Device) Offscreen() (hal.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return nil, err
	}
	e, err := d.offscreenLocked()
	if err != nil {
		return nil, err
	}
	return e.tex, nil
}

func (d *Device) offscreenLocked() (*textureEntry, error) {
	if d.offscreen != nil {
		return d.offscreen, nil
	}
	e, err := createTexture(d.device, "drawbatch_offscreen", d.cfg.Width, d.cfg.Height, d.cfg.TargetFormat,
		gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageCopySrc)
	if err != nil {
		return nil, err
	}
	d.offscreen = e
	return e, nil
}

// BeginFrame starts recording a frame into one render pass that clears
// the target to Config.ClearColor.
func (d *Device) BeginFrame() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	if d.frame != nil {
		return ErrFrameInProgress
	}

	view := d.target
	if view == nil {
		e, err := d.offscreenLocked()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNoTarget, err)
		}
		view = e.view
	}

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "drawbatch_encoder",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("drawbatch_frame"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	pass := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "drawbatch_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: d.cfg.ClearColor,
		}},
	})

	d.frame = &frameState{encoder: encoder, pass: pass}
	return nil
}

// EndFrame ends the render pass, submits the frame and waits for the GPU.
// A failed submit or wait marks the device lost.
func (d *Device) EndFrame() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	f := d.frame
	if f == nil {
		return gpucore.ErrNoFrame
	}
	defer d.finishFrameLocked()

	f.pass.End()
	cmdBuf, err := f.encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	idx, err := d.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return d.markLost(fmt.Errorf("submit: %w", err))
	}
	if err := d.waitSubmission(idx); err != nil {
		return d.markLost(err)
	}

	d.frames++
	slogger().Debug("native: frame submitted", "frame", d.frames, "draws", f.draws)
	return nil
}

// submissionPollInterval is how often waitSubmission polls the queue.
const submissionPollInterval = 100 * time.Microsecond

// waitSubmission blocks until the queue reports submission idx complete
// or Config.FenceTimeout elapses.
func (d *Device) waitSubmission(idx uint64) error {
	deadline := time.Now().Add(d.cfg.FenceTimeout)
	for d.queue.PollCompleted() < idx {
		if time.Now().After(deadline) {
			return fmt.Errorf("wait for GPU: submission %d timed out after %v", idx, d.cfg.FenceTimeout)
		}
		time.Sleep(submissionPollInterval)
	}
	return nil
}

// abortFrameLocked discards a frame without submitting it.
func (d *Device) abortFrameLocked() {
	d.frame.pass.End()
	d.frame.encoder.DiscardEncoding()
	d.finishFrameLocked()
}

// finishFrameLocked destroys per-frame resources and runs deferred destroys.
func (d *Device) finishFrameLocked() {
	f := d.frame
	d.frame = nil
	d.lastDraws = f.draws
	for _, bg := range f.bindGroups {
		d.device.DestroyBindGroup(bg)
	}
	for _, b := range f.uniforms {
		d.device.DestroyBuffer(b)
	}
	for _, fn := range f.deferred {
		fn()
	}
}

// === Draw State ===

// BindProgram implements gpucore.Device. gpucore.NoProgram selects the
// fallback program and ignores technique.
func (d *Device) BindProgram(module gpucore.ShaderModuleID, technique string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	if d.frame == nil {
		return gpucore.ErrNoFrame
	}

	key := pipelineKey{module: module, technique: technique}
	mod := d.shared.fallback
	if module == gpucore.NoProgram {
		key.technique = ""
	} else {
		m, ok := d.modules[module]
		if !ok {
			return fmt.Errorf("%w: shader module %d", gpucore.ErrInvalidResource, module)
		}
		mod = m
	}

	p, err := d.pipelines.get(key, mod)
	if err != nil {
		return err
	}
	d.frame.pipeline = p
	return nil
}

// SetParameters implements gpucore.Device. The parameters are packed into
// the uniform buffer of each following draw in the order given.
func (d *Device) SetParameters(params []gpucore.Parameter) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	if d.frame == nil {
		return gpucore.ErrNoFrame
	}
	d.frame.params = params
	return nil
}

// BindTexture implements gpucore.Device.
func (d *Device) BindTexture(id gpucore.TextureID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	if d.frame == nil {
		return gpucore.ErrNoFrame
	}
	if id != gpucore.NoTexture {
		if _, ok := d.textures[id]; !ok {
			return fmt.Errorf("%w: texture %d", gpucore.ErrInvalidResource, id)
		}
	}
	d.frame.texture = id
	return nil
}

// errNoPipeline is returned by Draw when no program could be bound.
var errNoPipeline = errors.New("native: no program bound")

// Draw implements gpucore.Device. Each draw gets its own uniform buffer and
// bind group, released when the frame ends.
func (d *Device) Draw(buffer gpucore.BufferID, firstVertex, vertexCount uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	f := d.frame
	if f == nil {
		return gpucore.ErrNoFrame
	}

	vb, ok := d.buffers[buffer]
	if !ok {
		return fmt.Errorf("%w: buffer %d", gpucore.ErrInvalidResource, buffer)
	}
	if vb.usage&gpucore.BufferUsageVertex == 0 {
		return fmt.Errorf("%w: buffer %d is not a vertex buffer", gpucore.ErrInvalidResource, buffer)
	}
	if vertexCount%3 != 0 {
		return fmt.Errorf("%w: %d vertices is not a triangle list", gpucore.ErrOutOfRange, vertexCount)
	}
	if end := (uint64(firstVertex) + uint64(vertexCount)) * gpucore.VertexStride; end > vb.size {
		return fmt.Errorf("%w: draw of vertices [%d,%d) from %d-byte buffer",
			gpucore.ErrOutOfRange, firstVertex, firstVertex+vertexCount, vb.size)
	}
	if vertexCount == 0 {
		return nil
	}

	if f.pipeline == nil {
		p, err := d.pipelines.get(pipelineKey{module: gpucore.NoProgram}, d.shared.fallback)
		if err != nil {
			return fmt.Errorf("%w: %w", errNoPipeline, err)
		}
		f.pipeline = p
	}

	view := d.shared.white.view
	if f.texture != gpucore.NoTexture {
		e, ok := d.textures[f.texture]
		if !ok {
			return fmt.Errorf("%w: texture %d", gpucore.ErrInvalidResource, f.texture)
		}
		view = e.view
	}

	bg, err := d.createBindGroup(f, packParameters(f.params), view)
	if err != nil {
		return err
	}

	f.pass.SetPipeline(f.pipeline)
	f.pass.SetBindGroup(0, bg, nil)
	f.pass.SetVertexBuffer(0, vb.buf, 0)
	f.pass.Draw(vertexCount, 1, firstVertex, 0)
	f.draws++
	return nil
}

// createBindGroup uploads uniforms and creates the bind group of one draw.
// Both are owned by f.
func (d *Device) createBindGroup(f *frameState, uniforms []byte, view hal.TextureView) (hal.BindGroup, error) {
	size := uint64(len(uniforms))
	ub, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "drawbatch_uniforms",
		Size:  size,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create uniform buffer: %w", err)
	}
	f.uniforms = append(f.uniforms, ub)
	if err := d.queue.WriteBuffer(ub, 0, uniforms); err != nil {
		return nil, fmt.Errorf("write uniforms: %w", err)
	}

	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "drawbatch_bind_group",
		Layout: d.shared.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: ub.NativeHandle(), Offset: 0, Size: size}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()}},
			{Binding: 2, Resource: gputypes.SamplerBinding{Sampler: d.shared.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group: %w", err)
	}
	f.bindGroups = append(f.bindGroups, bg)
	return bg, nil
}
