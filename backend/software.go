// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/gogpu/drawbatch/gpucore"
)

// Backend name constants.
const (
	// BackendSoftware is the name of the CPU reference backend.
	BackendSoftware = "software"
	// BackendNative is the name of the Pure Go GPU backend (gogpu/wgpu).
	BackendNative = "native"
)

// DefaultMaxTextureDimension is the texture edge limit of the software backend.
const DefaultMaxTextureDimension = 8192

// DrawCall is one draw recorded by the software backend.
type DrawCall struct {
	Frame       uint64
	Program     gpucore.ShaderModuleID
	Technique   string
	Texture     gpucore.TextureID
	Params      []gpucore.Parameter
	Buffer      gpucore.BufferID
	FirstVertex uint32
	VertexCount uint32

	// Vertices holds a copy of the drawn vertex range.
	Vertices []byte
}

type softBuffer struct {
	label string
	usage gpucore.BufferUsage
	data  []byte
}

type softTexture struct {
	desc   gpucore.TextureDesc
	pixels []byte
}

// SoftwareBackend is a CPU reference device.
// It validates every call the way a GPU backend would and records draws
// instead of rasterizing them.
type SoftwareBackend struct {
	mu          sync.Mutex
	initialized bool
	maxTexture  uint32
	nextID      uint64

	buffers  map[gpucore.BufferID]*softBuffer
	textures map[gpucore.TextureID]*softTexture
	modules  map[gpucore.ShaderModuleID]string

	inFrame   bool
	frame     uint64
	program   gpucore.ShaderModuleID
	technique string
	texture   gpucore.TextureID
	params    []gpucore.Parameter
	draws     []DrawCall
}

// init registers the software backend on package import.
func init() {
	Register(BackendSoftware, func() Backend {
		return NewSoftwareBackend()
	})
}

// NewSoftwareBackend creates a new software backend.
func NewSoftwareBackend() *SoftwareBackend {
	return &SoftwareBackend{maxTexture: DefaultMaxTextureDimension}
}

// Name returns the backend identifier.
func (b *SoftwareBackend) Name() string {
	return BackendSoftware
}

// Init initializes the backend.
func (b *SoftwareBackend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		return nil
	}
	b.buffers = make(map[gpucore.BufferID]*softBuffer)
	b.textures = make(map[gpucore.TextureID]*softTexture)
	b.modules = make(map[gpucore.ShaderModuleID]string)
	b.initialized = true
	return nil
}

// Close releases all backend resources.
func (b *SoftwareBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buffers = nil
	b.textures = nil
	b.modules = nil
	b.draws = nil
	b.inFrame = false
	b.initialized = false
}

// SetLogger sets the backend package logger.
func (b *SoftwareBackend) SetLogger(l *slog.Logger) { SetLogger(l) }

func (b *SoftwareBackend) newID() uint64 {
	b.nextID++
	return b.nextID
}

// CreateBuffer implements gpucore.Device.
func (b *SoftwareBackend) CreateBuffer(label string, size uint64, usage gpucore.BufferUsage) (gpucore.BufferID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return gpucore.InvalidID, ErrNotInitialized
	}
	if size == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: zero-sized buffer %q", gpucore.ErrInvalidResource, label)
	}
	id := gpucore.BufferID(b.newID())
	b.buffers[id] = &softBuffer{label: label, usage: usage, data: make([]byte, size)}
	return id, nil
}

// WriteBuffer implements gpucore.Device.
func (b *SoftwareBackend) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return ErrNotInitialized
	}
	buf, ok := b.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d", gpucore.ErrInvalidResource, id)
	}
	if offset > uint64(len(buf.data)) || uint64(len(data)) > uint64(len(buf.data))-offset {
		return fmt.Errorf("%w: write of %d bytes at %d into %d-byte buffer",
			gpucore.ErrOutOfRange, len(data), offset, len(buf.data))
	}
	copy(buf.data[offset:], data)
	return nil
}

// DestroyBuffer implements gpucore.Device.
func (b *SoftwareBackend) DestroyBuffer(id gpucore.BufferID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.buffers, id)
}

// CreateShaderModule implements gpucore.Device.
func (b *SoftwareBackend) CreateShaderModule(label string, spirv []uint32) (gpucore.ShaderModuleID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return gpucore.InvalidID, ErrNotInitialized
	}
	if len(spirv) == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: empty shader module %q", gpucore.ErrInvalidResource, label)
	}
	id := gpucore.ShaderModuleID(b.newID())
	b.modules[id] = label
	return id, nil
}

// DestroyShaderModule implements gpucore.Device.
func (b *SoftwareBackend) DestroyShaderModule(id gpucore.ShaderModuleID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.modules, id)
}

// CreateTexture implements gpucore.Device.
func (b *SoftwareBackend) CreateTexture(desc gpucore.TextureDesc) (gpucore.TextureID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return gpucore.InvalidID, ErrNotInitialized
	}
	if desc.Width == 0 || desc.Height == 0 || desc.Width > b.maxTexture || desc.Height > b.maxTexture {
		return gpucore.InvalidID, fmt.Errorf("%w: texture %q is %dx%d, limit %d",
			gpucore.ErrOutOfRange, desc.Label, desc.Width, desc.Height, b.maxTexture)
	}
	id := gpucore.TextureID(b.newID())
	b.textures[id] = &softTexture{desc: desc, pixels: make([]byte, desc.Size())}
	return id, nil
}

// WriteTexture implements gpucore.Device.
func (b *SoftwareBackend) WriteTexture(id gpucore.TextureID, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return ErrNotInitialized
	}
	tex, ok := b.textures[id]
	if !ok {
		return fmt.Errorf("%w: texture %d", gpucore.ErrInvalidResource, id)
	}
	if len(data) != len(tex.pixels) {
		return fmt.Errorf("%w: %d bytes for %d-byte texture", gpucore.ErrOutOfRange, len(data), len(tex.pixels))
	}
	copy(tex.pixels, data)
	return nil
}

// DestroyTexture implements gpucore.Device.
func (b *SoftwareBackend) DestroyTexture(id gpucore.TextureID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.textures, id)
}

// MaxTextureDimension implements gpucore.Device.
func (b *SoftwareBackend) MaxTextureDimension() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxTexture
}

// SetMaxTextureDimension overrides the texture edge limit.
func (b *SoftwareBackend) SetMaxTextureDimension(n uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maxTexture = n
}

// BeginFrame starts recording a frame and resets draw state.
func (b *SoftwareBackend) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return ErrNotInitialized
	}
	if b.inFrame {
		return fmt.Errorf("backend: frame %d already in progress", b.frame)
	}
	b.inFrame = true
	b.frame++
	b.draws = b.draws[:0]
	b.program = gpucore.NoProgram
	b.technique = ""
	b.texture = gpucore.NoTexture
	b.params = nil
	return nil
}

// EndFrame ends the current frame. Recorded draws stay available through
// Draws until the next BeginFrame.
func (b *SoftwareBackend) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.inFrame {
		return gpucore.ErrNoFrame
	}
	b.inFrame = false
	slogger().Debug("backend: software frame", "frame", b.frame, "draws", len(b.draws))
	return nil
}

// BindProgram implements gpucore.Device.
func (b *SoftwareBackend) BindProgram(module gpucore.ShaderModuleID, technique string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.inFrame {
		return gpucore.ErrNoFrame
	}
	if module != gpucore.NoProgram {
		if _, ok := b.modules[module]; !ok {
			return fmt.Errorf("%w: shader module %d", gpucore.ErrInvalidResource, module)
		}
	}
	b.program = module
	b.technique = technique
	return nil
}

// SetParameters implements gpucore.Device.
func (b *SoftwareBackend) SetParameters(params []gpucore.Parameter) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.inFrame {
		return gpucore.ErrNoFrame
	}
	b.params = make([]gpucore.Parameter, len(params))
	for i, p := range params {
		b.params[i] = gpucore.Parameter{Name: p.Name, Value: slices.Clone(p.Value)}
	}
	return nil
}

// BindTexture implements gpucore.Device.
func (b *SoftwareBackend) BindTexture(id gpucore.TextureID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.inFrame {
		return gpucore.ErrNoFrame
	}
	if id != gpucore.NoTexture {
		if _, ok := b.textures[id]; !ok {
			return fmt.Errorf("%w: texture %d", gpucore.ErrInvalidResource, id)
		}
	}
	b.texture = id
	return nil
}

// Draw implements gpucore.Device.
func (b *SoftwareBackend) Draw(buffer gpucore.BufferID, firstVertex, vertexCount uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.inFrame {
		return gpucore.ErrNoFrame
	}
	buf, ok := b.buffers[buffer]
	if !ok {
		return fmt.Errorf("%w: buffer %d", gpucore.ErrInvalidResource, buffer)
	}
	if buf.usage&gpucore.BufferUsageVertex == 0 {
		return fmt.Errorf("%w: buffer %q is not a vertex buffer", gpucore.ErrInvalidResource, buf.label)
	}
	if vertexCount%3 != 0 {
		return fmt.Errorf("%w: %d vertices is not a triangle list", gpucore.ErrOutOfRange, vertexCount)
	}
	start := uint64(firstVertex) * gpucore.VertexStride
	end := start + uint64(vertexCount)*gpucore.VertexStride
	if end > uint64(len(buf.data)) {
		return fmt.Errorf("%w: draw of vertices [%d,%d) from %d-byte buffer",
			gpucore.ErrOutOfRange, firstVertex, firstVertex+vertexCount, len(buf.data))
	}
	b.draws = append(b.draws, DrawCall{
		Frame:       b.frame,
		Program:     b.program,
		Technique:   b.technique,
		Texture:     b.texture,
		Params:      b.params,
		Buffer:      buffer,
		FirstVertex: firstVertex,
		VertexCount: vertexCount,
		Vertices:    slices.Clone(buf.data[start:end]),
	})
	return nil
}

// Draws returns the draws recorded in the current or last frame.
func (b *SoftwareBackend) Draws() []DrawCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.draws)
}

// Frame returns the number of frames begun.
func (b *SoftwareBackend) Frame() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frame
}

// ResourceCounts returns the number of live buffers, textures and shader
// modules.
func (b *SoftwareBackend) ResourceCounts() (buffers, textures, modules int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffers), len(b.textures), len(b.modules)
}

// TexturePixels returns a copy of a texture's pixels.
func (b *SoftwareBackend) TexturePixels(id gpucore.TextureID) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tex, ok := b.textures[id]
	if !ok {
		return nil, false
	}
	return slices.Clone(tex.pixels), true
}

// Ensure SoftwareBackend implements Backend.
var _ Backend = (*SoftwareBackend)(nil)
