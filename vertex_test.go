// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package drawbatch

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func vx(x float32) Vertex { return Vertex{X: x} }

func xs(verts []Vertex) []float32 {
	out := make([]float32, len(verts))
	for i, vert := range verts {
		out[i] = vert.X
	}
	return out
}

func TestToTriangleList(t *testing.T) {
	tests := []struct {
		name     string
		topology Topology
		in       []Vertex
		want     []float32
		wantErr  error
	}{
		{"list", TriangleList, []Vertex{vx(0), vx(1), vx(2)}, []float32{0, 1, 2}, nil},
		{"list two", TriangleList, []Vertex{vx(0), vx(1), vx(2), vx(3), vx(4), vx(5)}, []float32{0, 1, 2, 3, 4, 5}, nil},
		{"list partial", TriangleList, []Vertex{vx(0), vx(1), vx(2), vx(3)}, nil, ErrInvalidPrimitive},
		{"list empty", TriangleList, nil, nil, ErrInvalidPrimitive},
		{"strip", TriangleStrip, []Vertex{vx(0), vx(1), vx(2), vx(3), vx(4)}, []float32{0, 1, 2, 2, 1, 3, 2, 3, 4}, nil},
		{"strip short", TriangleStrip, []Vertex{vx(0), vx(1)}, nil, ErrInvalidPrimitive},
		{"fan", TriangleFan, []Vertex{vx(0), vx(1), vx(2), vx(3)}, []float32{0, 1, 2, 0, 2, 3}, nil},
		{"fan short", TriangleFan, []Vertex{vx(0)}, nil, ErrInvalidPrimitive},
		{"unknown", Topology(9), []Vertex{vx(0), vx(1), vx(2)}, nil, ErrUnknownTopology},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := toTriangleList(tt.topology, tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			gotX := xs(got)
			if len(gotX) != len(tt.want) {
				t.Fatalf("got %v, want %v", gotX, tt.want)
			}
			for i := range gotX {
				if gotX[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", gotX, tt.want)
				}
			}
		})
	}
}

func TestToTriangleListCopies(t *testing.T) {
	in := []Vertex{vx(0), vx(1), vx(2)}
	out, err := toTriangleList(TriangleList, in)
	if err != nil {
		t.Fatal(err)
	}
	in[0].X = 42
	if out[0].X != 0 {
		t.Error("triangle list shares storage with input")
	}
}

func TestTopologyString(t *testing.T) {
	if got := TriangleStrip.String(); got != "TriangleStrip" {
		t.Errorf("String() = %q", got)
	}
	if got := Topology(7).String(); got != "Topology(7)" {
		t.Errorf("String() = %q", got)
	}
}

func TestPutVertex(t *testing.T) {
	var buf [VertexStride]byte
	putVertex(buf[:], Vertex{X: 1, Y: 2, Z: 3, Color: PackRGBA(1, 2, 3, 4), U: 0.5, V: 0.25})

	floats := map[int]float32{0: 1, 4: 2, 8: 3, 16: 0.5, 20: 0.25}
	for off, want := range floats {
		got := math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
		if got != want {
			t.Errorf("offset %d = %v, want %v", off, got, want)
		}
	}
	if got := binary.LittleEndian.Uint32(buf[12:]); got != 0x04030201 {
		t.Errorf("color = %#x, want 0x04030201", got)
	}
}
