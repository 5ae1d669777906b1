// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package drawbatch

import (
	"sync"

	"github.com/gogpu/drawbatch/asset"
)

// Primitive is one drawable unit: a binding plus triangle data.
//
// Vertex data is immutable after construction. The binding may be changed
// from any goroutine with the Set methods, but the pipeline does not observe
// those changes: the producer must Remove and re-Add the primitive, or call
// Pipeline.MarkDirty. The pipeline places a primitive by the binding it had
// when Add was called (or at the last full rebuild), so a batch's members
// always carry the batch's binding.
//
// A Primitive belongs to at most one Pipeline.
type Primitive struct {
	topology Topology
	vertices []Vertex

	mu      sync.Mutex
	binding Binding

	// Render goroutine state.
	placed Binding // binding used for placement
	batch  *Batch  // owning batch, or nil; the pipeline never frees a primitive
}

// NewPrimitive creates a primitive from vertices in the given topology.
// Strips and fans are converted to triangle lists so that primitives of any
// topology can share a batch. The vertices slice is copied.
func NewPrimitive(binding Binding, topology Topology, vertices []Vertex) (*Primitive, error) {
	tris, err := toTriangleList(topology, vertices)
	if err != nil {
		return nil, err
	}
	return &Primitive{
		binding:  binding.Clone(),
		topology: topology,
		vertices: tris,
	}, nil
}

// Binding returns a copy of the primitive's current binding.
func (p *Primitive) Binding() Binding {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.binding.Clone()
}

// Topology returns the topology the primitive was created with.
func (p *Primitive) Topology() Topology { return p.topology }

// Vertices returns the triangle-list vertices. The slice must not be modified.
func (p *Primitive) Vertices() []Vertex { return p.vertices }

// VertexCount returns the number of triangle-list vertices.
func (p *Primitive) VertexCount() int { return len(p.vertices) }

// PrimitiveCount returns the number of triangles.
func (p *Primitive) PrimitiveCount() int { return len(p.vertices) / 3 }

// Batch returns the batch the primitive is currently placed in, or nil.
// Only meaningful on the render goroutine.
func (p *Primitive) Batch() *Batch { return p.batch }

// SetBinding replaces the whole binding.
func (p *Primitive) SetBinding(b Binding) {
	b = b.Clone()
	p.mu.Lock()
	p.binding = b
	p.mu.Unlock()
}

// SetEffect replaces the effect.
func (p *Primitive) SetEffect(e EffectRef) {
	p.mu.Lock()
	p.binding.Effect = e
	p.mu.Unlock()
}

// SetParams replaces the parameter set.
func (p *Primitive) SetParams(s ParameterSet) {
	s = s.Clone()
	p.mu.Lock()
	p.binding.Params = s
	p.mu.Unlock()
}

// SetTexture replaces the texture. nil draws untextured.
func (p *Primitive) SetTexture(t *asset.Asset) {
	p.mu.Lock()
	p.binding.Texture = t
	p.mu.Unlock()
}
