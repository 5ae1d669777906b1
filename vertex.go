// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package drawbatch

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/drawbatch/gpucore"
)

// VertexStride is the byte stride per vertex in a consolidated buffer.
// See gpucore.VertexStride for the layout.
const VertexStride = gpucore.VertexStride

// Vertex is one vertex of a primitive.
type Vertex struct {
	X, Y, Z float32

	// Color is packed RGBA8, red in the lowest byte.
	Color uint32

	U, V float32
}

// PackRGBA packs 8-bit channels into a Vertex color.
func PackRGBA(r, g, b, a uint8) uint32 {
	return uint32(r) | uint32(g)<<8 | uint32(b)<<16 | uint32(a)<<24
}

// Topology describes how a primitive's vertices form triangles.
type Topology uint8

const (
	// TriangleList treats every three vertices as one triangle.
	TriangleList Topology = iota

	// TriangleStrip forms a triangle from each vertex and the two before it.
	TriangleStrip

	// TriangleFan forms triangles around the first vertex.
	TriangleFan
)

// String returns the topology name.
func (t Topology) String() string {
	switch t {
	case TriangleList:
		return "TriangleList"
	case TriangleStrip:
		return "TriangleStrip"
	case TriangleFan:
		return "TriangleFan"
	default:
		return fmt.Sprintf("Topology(%d)", uint8(t))
	}
}

// toTriangleList converts vertices in topology t to a triangle list so that
// primitives of any topology can share one draw call.
// Strip winding is preserved by swapping the first two vertices of every
// odd triangle.
func toTriangleList(t Topology, verts []Vertex) ([]Vertex, error) {
	n := len(verts)
	switch t {
	case TriangleList:
		if n < 3 || n%3 != 0 {
			return nil, fmt.Errorf("%w: triangle list needs a positive multiple of 3 vertices, got %d",
				ErrInvalidPrimitive, n)
		}
		out := make([]Vertex, n)
		copy(out, verts)
		return out, nil

	case TriangleStrip:
		if n < 3 {
			return nil, fmt.Errorf("%w: triangle strip needs at least 3 vertices, got %d", ErrInvalidPrimitive, n)
		}
		out := make([]Vertex, 0, (n-2)*3)
		for i := 0; i < n-2; i++ {
			if i%2 == 0 {
				out = append(out, verts[i], verts[i+1], verts[i+2])
			} else {
				out = append(out, verts[i+1], verts[i], verts[i+2])
			}
		}
		return out, nil

	case TriangleFan:
		if n < 3 {
			return nil, fmt.Errorf("%w: triangle fan needs at least 3 vertices, got %d", ErrInvalidPrimitive, n)
		}
		out := make([]Vertex, 0, (n-2)*3)
		for i := 1; i < n-1; i++ {
			out = append(out, verts[0], verts[i], verts[i+1])
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownTopology, t)
	}
}

// putVertex encodes v little-endian into dst, which must hold VertexStride bytes.
func putVertex(dst []byte, v Vertex) {
	binary.LittleEndian.PutUint32(dst[0:], math.Float32bits(v.X))
	binary.LittleEndian.PutUint32(dst[4:], math.Float32bits(v.Y))
	binary.LittleEndian.PutUint32(dst[8:], math.Float32bits(v.Z))
	binary.LittleEndian.PutUint32(dst[12:], v.Color)
	binary.LittleEndian.PutUint32(dst[16:], math.Float32bits(v.U))
	binary.LittleEndian.PutUint32(dst[20:], math.Float32bits(v.V))
}
