// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package drawbatch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/drawbatch/asset"
	"github.com/gogpu/drawbatch/gpucore"
)

var (
	errLoadFailed = errors.New("load failed")
	errDeviceLost = fmt.Errorf("draw: %w", gpucore.ErrDeviceLost)
)

// drawCall is the state bound when a Draw was issued.
type drawCall struct {
	program   gpucore.ShaderModuleID
	technique string
	params    []gpucore.Parameter
	texture   gpucore.TextureID
	buffer    gpucore.BufferID
	first     uint32
	count     uint32
}

// fakeDevice records every call and keeps buffer contents in memory.
type fakeDevice struct {
	next      uint64
	buffers   map[gpucore.BufferID][]byte
	destroyed []gpucore.BufferID
	creates   int

	bound     drawCall
	binds     int
	draws     []drawCall
	failDraw  func(drawCall) bool
	failAlloc bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{buffers: make(map[gpucore.BufferID][]byte)}
}

func (d *fakeDevice) id() uint64 {
	d.next++
	return d.next
}

func (d *fakeDevice) CreateBuffer(_ string, size uint64, _ gpucore.BufferUsage) (gpucore.BufferID, error) {
	if d.failAlloc {
		return gpucore.InvalidID, gpucore.ErrDeviceLost
	}
	id := gpucore.BufferID(d.id())
	d.buffers[id] = make([]byte, size)
	d.creates++
	return id, nil
}

func (d *fakeDevice) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	buf, ok := d.buffers[id]
	if !ok {
		return gpucore.ErrInvalidResource
	}
	if offset+uint64(len(data)) > uint64(len(buf)) {
		return gpucore.ErrOutOfRange
	}
	copy(buf[offset:], data)
	return nil
}

func (d *fakeDevice) DestroyBuffer(id gpucore.BufferID) {
	delete(d.buffers, id)
	d.destroyed = append(d.destroyed, id)
}

func (d *fakeDevice) CreateShaderModule(string, []uint32) (gpucore.ShaderModuleID, error) {
	return gpucore.ShaderModuleID(d.id()), nil
}

func (d *fakeDevice) DestroyShaderModule(gpucore.ShaderModuleID) {}

func (d *fakeDevice) CreateTexture(gpucore.TextureDesc) (gpucore.TextureID, error) {
	return gpucore.TextureID(d.id()), nil
}

func (d *fakeDevice) WriteTexture(gpucore.TextureID, []byte) error { return nil }

func (d *fakeDevice) DestroyTexture(gpucore.TextureID) {}

func (d *fakeDevice) MaxTextureDimension() uint32 { return 4096 }

func (d *fakeDevice) BindProgram(module gpucore.ShaderModuleID, technique string) error {
	d.binds++
	d.bound.program = module
	d.bound.technique = technique
	return nil
}

func (d *fakeDevice) SetParameters(params []gpucore.Parameter) error {
	d.bound.params = params
	return nil
}

func (d *fakeDevice) BindTexture(id gpucore.TextureID) error {
	d.bound.texture = id
	return nil
}

func (d *fakeDevice) Draw(buffer gpucore.BufferID, first, count uint32) error {
	call := d.bound
	call.buffer, call.first, call.count = buffer, first, count
	if d.failDraw != nil && d.failDraw(call) {
		return errDeviceLost
	}
	if _, ok := d.buffers[buffer]; !ok {
		return gpucore.ErrInvalidResource
	}
	d.draws = append(d.draws, call)
	return nil
}

func (d *fakeDevice) resetFrame() {
	d.draws = nil
	d.binds = 0
}

// fakeLoader allocates sequential handles and fails for names in failing.
type fakeLoader struct {
	mu      sync.Mutex
	next    uint64
	failing map[string]bool
	loads   map[string]int
}

func newFakeLoader(failing ...string) *fakeLoader {
	l := &fakeLoader{failing: make(map[string]bool), loads: make(map[string]int)}
	for _, n := range failing {
		l.failing[n] = true
	}
	return l
}

func (l *fakeLoader) Load(_ context.Context, key asset.Key) (asset.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads[key.Name]++
	if l.failing[key.Name] {
		return asset.Handle{}, errLoadFailed
	}
	l.next++
	if key.Kind == asset.KindShader {
		return asset.Handle{Shader: gpucore.ShaderModuleID(1000 + l.next)}, nil
	}
	return asset.Handle{Texture: gpucore.TextureID(2000 + l.next), Width: 1, Height: 1}, nil
}

func (l *fakeLoader) Release(asset.Handle) {}

func (l *fakeLoader) loadCount(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads[name]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// testEnv bundles a pipeline with its fakes.
type testEnv struct {
	dev    *fakeDevice
	reg    *asset.Registry
	loader *fakeLoader
	clock  *fakeClock
	pipe   *Pipeline
}

func newTestEnv(t *testing.T, failing ...string) *testEnv {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	loader := newFakeLoader(failing...)
	reg := asset.NewRegistry(
		asset.WithClock(clock),
		asset.WithLoader(asset.KindShader, loader),
		asset.WithLoader(asset.KindTexture, loader),
	)
	dev := newFakeDevice()
	pipe := NewPipeline(dev, WithRegistry(reg))
	t.Cleanup(pipe.Close)
	return &testEnv{dev: dev, reg: reg, loader: loader, clock: clock, pipe: pipe}
}

// binding builds a binding from names; empty names leave the field unset.
func (e *testEnv) binding(shader, technique, texture string, params ...gpucore.Parameter) Binding {
	var b Binding
	if shader != "" {
		b.Effect = EffectRef{Program: e.reg.Shader(shader), Technique: technique}
	}
	if texture != "" {
		b.Texture = e.reg.Texture(texture)
	}
	b.Params = NewParameterSet(params...)
	return b
}

func (e *testEnv) render(t *testing.T) {
	t.Helper()
	e.dev.resetFrame()
	if err := e.pipe.Render(context.Background()); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
}

// quad returns a two-triangle list whose X coordinates are offset by x.
func quad(x float32) []Vertex {
	return []Vertex{
		{X: x, Y: 0}, {X: x + 1, Y: 0}, {X: x + 1, Y: 1},
		{X: x, Y: 0}, {X: x + 1, Y: 1}, {X: x, Y: 1},
	}
}

func mustPrimitive(t *testing.T, b Binding, verts []Vertex) *Primitive {
	t.Helper()
	p, err := NewPrimitive(b, TriangleList, verts)
	if err != nil {
		t.Fatalf("NewPrimitive() error = %v", err)
	}
	return p
}

// partition describes the batches as sorted groups of primitive names,
// ignoring batch identity and order.
func partition(batches []*Batch, names map[*Primitive]string) []string {
	groups := make([]string, 0, len(batches))
	for _, b := range batches {
		var members []string
		for _, m := range b.Members() {
			members = append(members, names[m])
		}
		sort.Strings(members)
		groups = append(groups, strings.Join(members, ","))
	}
	slices.Sort(groups)
	return groups
}
