// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/drawbatch/backend"
	"github.com/gogpu/drawbatch/gpucore"
)

type bufferEntry struct {
	buf   hal.Buffer
	size  uint64
	usage gpucore.BufferUsage
}

type textureEntry struct {
	tex  hal.Texture
	view hal.TextureView
	desc gpucore.TextureDesc
}

// Device is a gpucore.Device backed by a HAL device and queue.
//
// Device is safe for concurrent use. Draw-time calls come from the
// rendering goroutine; Destroy* may also come from an asset sweeper.
type Device struct {
	mu  sync.Mutex
	cfg Config

	device   hal.Device
	queue    hal.Queue
	instance hal.Instance // set when Init opened the device itself
	owned    bool
	ready    bool

	nextID   uint64
	buffers  map[gpucore.BufferID]*bufferEntry
	textures map[gpucore.TextureID]*textureEntry
	modules  map[gpucore.ShaderModuleID]hal.ShaderModule

	shared    *sharedResources
	pipelines *pipelineCache

	target    hal.TextureView
	offscreen *textureEntry

	frame     *frameState
	frames    uint64
	lastDraws int

	lost atomic.Bool
}

func newDevice(cfg Config) *Device {
	return &Device{
		cfg:      cfg.withDefaults(),
		buffers:  make(map[gpucore.BufferID]*bufferEntry),
		textures: make(map[gpucore.TextureID]*textureEntry),
		modules:  make(map[gpucore.ShaderModuleID]hal.ShaderModule),
	}
}

// New creates an initialized Device on an existing HAL device and queue.
// The caller keeps ownership of both.
func New(device hal.Device, queue hal.Queue, cfg Config) (*Device, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("%w: nil device or queue", ErrNoHAL)
	}
	d := newDevice(cfg)
	d.device = device
	d.queue = queue
	if err := d.Init(); err != nil {
		return nil, err
	}
	return d, nil
}

// NewFromProvider creates a Device sharing the GPU device of an external
// provider (e.g., gogpu). The provider must implement HalDevice() any and
// HalQueue() any returning hal.Device and hal.Queue. A zero
// cfg.TargetFormat takes the provider's surface format.
func NewFromProvider(provider gpucontext.DeviceProvider, cfg Config) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHAL)
	}
	if cfg.TargetFormat == gputypes.TextureFormatUndefined {
		cfg.TargetFormat = provider.SurfaceFormat()
	}
	return New(device, queue, cfg)
}

// Open returns an uninitialized Device that opens cfg.API on Init and owns
// the resulting HAL device.
func Open(cfg Config) *Device {
	return newDevice(cfg)
}

// Register registers a native backend factory that opens devices with cfg.
func Register(cfg Config) {
	backend.Register(backend.BackendNative, func() backend.Backend {
		return Open(cfg)
	})
}

// Name returns the backend identifier.
func (d *Device) Name() string { return backend.BackendNative }

// Config returns the effective configuration.
func (d *Device) Config() Config { return d.cfg }

// SetLogger sets the package logger. drawbatch.NewPipeline calls it.
func (d *Device) SetLogger(l *slog.Logger) {
	setLogger(l)
	backend.SetLogger(l)
}

// Init opens the HAL device if needed and creates the shared bind group
// layout, sampler, fallback program and white texture. Init is idempotent.
func (d *Device) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ready {
		return nil
	}
	if d.device == nil {
		if err := d.openLocked(); err != nil {
			return err
		}
	}

	shared, err := newSharedResources(d.device, d.queue)
	if err != nil {
		d.closeDeviceLocked()
		return err
	}
	d.shared = shared
	d.pipelines = newPipelineCache(d.device, shared.pipeLayout, d.cfg.TargetFormat)
	d.lost.Store(false)
	d.ready = true
	slogger().Info("native: device initialized", "format", d.cfg.TargetFormat, "owned", d.owned)
	return nil
}

// openLocked creates a HAL instance and opens the first usable adapter.
func (d *Device) openLocked() error {
	api := d.cfg.API
	if api == nil {
		b, ok := hal.GetBackend(gputypes.BackendVulkan)
		if !ok {
			return fmt.Errorf("%w: vulkan backend not available", ErrNoAdapter)
		}
		api = b
	}

	instance, err := api.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return ErrNoAdapter
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return fmt.Errorf("open device: %w", err)
	}
	d.instance = instance
	d.device = openDev.Device
	d.queue = openDev.Queue
	d.owned = true
	slogger().Info("native: device opened", "adapter", selected.Info.Name)
	return nil
}

func (d *Device) closeDeviceLocked() {
	if !d.owned {
		return
	}
	if d.device != nil {
		d.device.Destroy()
		d.device = nil
		d.queue = nil
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
	d.owned = false
}

// check returns an error if the device cannot accept work.
func (d *Device) check() error {
	if !d.ready {
		return backend.ErrNotInitialized
	}
	if d.lost.Load() {
		return gpucore.ErrDeviceLost
	}
	return nil
}

// markLost records device loss. Every later call returns ErrDeviceLost
// until the device is closed and initialized again.
func (d *Device) markLost(err error) error {
	if !d.lost.Swap(true) {
		slogger().Error("native: device lost", "error", err)
	}
	return fmt.Errorf("%w: %w", gpucore.ErrDeviceLost, err)
}

// Lost reports whether the device has been lost.
func (d *Device) Lost() bool { return d.lost.Load() }

func (d *Device) newID() uint64 {
	d.nextID++
	return d.nextID
}

// release runs fn now, or at the end of the current frame when recorded
// commands may still reference the resource.
func (d *Device) release(fn func()) {
	if d.frame != nil {
		d.frame.deferred = append(d.frame.deferred, fn)
		return
	}
	fn()
}

// === Buffer Management ===

func halBufferUsage(u gpucore.BufferUsage) gputypes.BufferUsage {
	var out gputypes.BufferUsage
	if u&gpucore.BufferUsageCopyDst != 0 {
		out |= gputypes.BufferUsageCopyDst
	}
	if u&gpucore.BufferUsageVertex != 0 {
		out |= gputypes.BufferUsageVertex
	}
	if u&gpucore.BufferUsageUniform != 0 {
		out |= gputypes.BufferUsageUniform
	}
	return out
}

// CreateBuffer implements gpucore.Device.
func (d *Device) CreateBuffer(label string, size uint64, usage gpucore.BufferUsage) (gpucore.BufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return gpucore.InvalidID, err
	}
	if size == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: zero-sized buffer %q", gpucore.ErrInvalidResource, label)
	}

	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: halBufferUsage(usage),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create buffer %q: %w", label, err)
	}
	id := gpucore.BufferID(d.newID())
	d.buffers[id] = &bufferEntry{buf: buf, size: size, usage: usage}
	return id, nil
}

// WriteBuffer implements gpucore.Device.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	e, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d", gpucore.ErrInvalidResource, id)
	}
	if offset > e.size || uint64(len(data)) > e.size-offset {
		return fmt.Errorf("%w: write of %d bytes at %d into %d-byte buffer",
			gpucore.ErrOutOfRange, len(data), offset, e.size)
	}
	if len(data) == 0 {
		return nil
	}
	if err := d.queue.WriteBuffer(e.buf, offset, data); err != nil {
		return fmt.Errorf("write buffer %d: %w", id, err)
	}
	return nil
}

// DestroyBuffer implements gpucore.Device.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.buffers[id]
	if !ok {
		return
	}
	delete(d.buffers, id)
	d.release(func() { d.device.DestroyBuffer(e.buf) })
}

// === Shader Compilation ===

// CreateShaderModule implements gpucore.Device.
func (d *Device) CreateShaderModule(label string, spirv []uint32) (gpucore.ShaderModuleID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return gpucore.InvalidID, err
	}
	if len(spirv) == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: empty shader module %q", gpucore.ErrInvalidResource, label)
	}

	module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create shader module %q: %w", label, err)
	}
	id := gpucore.ShaderModuleID(d.newID())
	d.modules[id] = module
	return id, nil
}

// DestroyShaderModule implements gpucore.Device. Pipelines built from the
// module are destroyed with it.
func (d *Device) DestroyShaderModule(id gpucore.ShaderModuleID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	module, ok := d.modules[id]
	if !ok {
		return
	}
	delete(d.modules, id)
	pipelines := d.pipelines.evict(id)
	d.release(func() {
		for _, p := range pipelines {
			d.device.DestroyRenderPipeline(p)
		}
		d.device.DestroyShaderModule(module)
	})
}

// === Texture Management ===

func halTextureFormat(f gpucore.TextureFormat) (gputypes.TextureFormat, error) {
	switch f {
	case gpucore.TextureFormatRGBA8Unorm:
		return gputypes.TextureFormatRGBA8Unorm, nil
	case gpucore.TextureFormatBGRA8Unorm:
		return gputypes.TextureFormatBGRA8Unorm, nil
	case gpucore.TextureFormatR8Unorm:
		return gputypes.TextureFormatR8Unorm, nil
	default:
		return gputypes.TextureFormatUndefined, fmt.Errorf("%w: texture format %v", gpucore.ErrInvalidResource, f)
	}
}

// createTexture creates a 2D texture and its view.
func createTexture(device hal.Device, label string, w, h uint32, format gputypes.TextureFormat, usage gputypes.TextureUsage) (*textureEntry, error) {
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create texture %q: %w", label, err)
	}
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		device.DestroyTexture(tex)
		return nil, fmt.Errorf("create texture view %q: %w", label, err)
	}
	return &textureEntry{tex: tex, view: view}, nil
}

func (e *textureEntry) destroy(device hal.Device) {
	if e.view != nil {
		device.DestroyTextureView(e.view)
	}
	if e.tex != nil {
		device.DestroyTexture(e.tex)
	}
}

// CreateTexture implements gpucore.Device.
func (d *Device) CreateTexture(desc gpucore.TextureDesc) (gpucore.TextureID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return gpucore.InvalidID, err
	}
	limit := d.cfg.MaxTextureDimension
	if desc.Width == 0 || desc.Height == 0 || desc.Width > limit || desc.Height > limit {
		return gpucore.InvalidID, fmt.Errorf("%w: texture %q is %dx%d, limit %d",
			gpucore.ErrOutOfRange, desc.Label, desc.Width, desc.Height, limit)
	}
	format, err := halTextureFormat(desc.Format)
	if err != nil {
		return gpucore.InvalidID, err
	}

	e, err := createTexture(d.device, desc.Label, desc.Width, desc.Height, format,
		gputypes.TextureUsageTextureBinding|gputypes.TextureUsageCopyDst)
	if err != nil {
		return gpucore.InvalidID, err
	}
	e.desc = desc
	id := gpucore.TextureID(d.newID())
	d.textures[id] = e
	return id, nil
}

// WriteTexture implements gpucore.Device.
func (d *Device) WriteTexture(id gpucore.TextureID, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	e, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("%w: texture %d", gpucore.ErrInvalidResource, id)
	}
	if uint64(len(data)) != e.desc.Size() {
		return fmt.Errorf("%w: %d bytes for %d-byte texture", gpucore.ErrOutOfRange, len(data), e.desc.Size())
	}

	bpr := e.desc.Width * uint32(e.desc.Format.BytesPerPixel()) //nolint:gosec // bytes per pixel is 1 or 4
	err := d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: e.tex, MipLevel: 0},
		data,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: bpr, RowsPerImage: e.desc.Height},
		&hal.Extent3D{Width: e.desc.Width, Height: e.desc.Height, DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("write texture %d: %w", id, err)
	}
	return nil
}

// DestroyTexture implements gpucore.Device.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.textures[id]
	if !ok {
		return
	}
	delete(d.textures, id)
	d.release(func() { e.destroy(d.device) })
}

// MaxTextureDimension implements gpucore.Device.
func (d *Device) MaxTextureDimension() uint32 { return d.cfg.MaxTextureDimension }

// Stats reports device activity.
type Stats struct {
	Frames         uint64
	LastFrameDraws int
	Buffers        int
	Textures       int
	ShaderModules  int
	Pipelines      int
	PipelineHits   uint64
	PipelineMisses uint64
}

// Stats returns a snapshot of device activity.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := Stats{
		Frames:         d.frames,
		LastFrameDraws: d.lastDraws,
		Buffers:        len(d.buffers),
		Textures:       len(d.textures),
		ShaderModules:  len(d.modules),
	}
	if d.pipelines != nil {
		s.Pipelines, s.PipelineHits, s.PipelineMisses = d.pipelines.stats()
	}
	return s
}

// Close releases every resource created through the device. A device
// opened by Init is destroyed too. Close is idempotent.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ready {
		return
	}
	if d.frame != nil {
		d.abortFrameLocked()
	}

	for id, e := range d.buffers {
		d.device.DestroyBuffer(e.buf)
		delete(d.buffers, id)
	}
	for id, e := range d.textures {
		e.destroy(d.device)
		delete(d.textures, id)
	}
	d.pipelines.destroy()
	for id, m := range d.modules {
		d.device.DestroyShaderModule(m)
		delete(d.modules, id)
	}
	if d.offscreen != nil {
		d.offscreen.destroy(d.device)
		d.offscreen = nil
	}
	d.shared.destroy(d.device)
	d.shared = nil
	d.pipelines = nil
	d.target = nil
	d.ready = false
	d.closeDeviceLocked()
	slogger().Debug("native: device closed", "frames", d.frames)
}

// Ensure Device implements backend.Backend.
var _ backend.Backend = (*Device)(nil)
