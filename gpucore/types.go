// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import "fmt"

// Resource IDs
//
// These opaque IDs represent GPU resources. Each device implementation
// maintains a mapping between IDs and actual backend resources.
// IDs are uint64 to accommodate various backend handle sizes.

// BufferID is an opaque handle to a GPU buffer.
type BufferID uint64

// TextureID is an opaque handle to a GPU texture.
type TextureID uint64

// ShaderModuleID is an opaque handle to a compiled shader module.
type ShaderModuleID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

const (
	// NoProgram selects the device's fallback program in BindProgram.
	NoProgram ShaderModuleID = InvalidID

	// NoTexture unbinds any texture in BindTexture.
	NoTexture TextureID = InvalidID
)

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

// Buffer usage flags.
const (
	// BufferUsageCopyDst indicates the buffer can be used as a copy destination.
	BufferUsageCopyDst BufferUsage = 1 << 3

	// BufferUsageVertex indicates the buffer can be used as a vertex buffer.
	BufferUsageVertex BufferUsage = 1 << 5

	// BufferUsageUniform indicates the buffer can be used as a uniform buffer.
	BufferUsageUniform BufferUsage = 1 << 6
)

// TextureFormat specifies the format of texture data.
type TextureFormat uint32

// Texture formats.
const (
	// TextureFormatRGBA8Unorm is 8-bit RGBA, normalized unsigned integer.
	TextureFormatRGBA8Unorm TextureFormat = iota + 1

	// TextureFormatBGRA8Unorm is 8-bit BGRA, normalized unsigned integer.
	TextureFormatBGRA8Unorm

	// TextureFormatR8Unorm is 8-bit red channel only, normalized unsigned integer.
	TextureFormatR8Unorm
)

// String returns a human-readable name for the format.
func (f TextureFormat) String() string {
	switch f {
	case TextureFormatRGBA8Unorm:
		return "RGBA8Unorm"
	case TextureFormatBGRA8Unorm:
		return "BGRA8Unorm"
	case TextureFormatR8Unorm:
		return "R8Unorm"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(f))
	}
}

// BytesPerPixel returns the number of bytes per pixel for the format.
func (f TextureFormat) BytesPerPixel() int {
	if f == TextureFormatR8Unorm {
		return 1
	}
	return 4
}

// TextureDesc describes a 2D sampled texture.
type TextureDesc struct {
	// Label is an optional debug label.
	Label string

	// Width is the texture width in pixels.
	Width uint32

	// Height is the texture height in pixels.
	Height uint32

	// Format is the pixel format of the data passed to WriteTexture.
	Format TextureFormat
}

// Size returns the byte size of a fully populated texture.
func (d TextureDesc) Size() uint64 {
	return uint64(d.Width) * uint64(d.Height) * uint64(d.Format.BytesPerPixel())
}

// Parameter is one named shader parameter value.
//
// Values are flat float32 slices: one element for scalars, two to four for
// vectors and colors, sixteen for a 4x4 matrix.
type Parameter struct {
	Name  string
	Value []float32
}

// VertexStride is the byte stride per vertex in a vertex buffer passed to
// Device.Draw. Layout per vertex:
//
//	position (vec3<f32>)  = 12 bytes (location 0)
//	color    (unorm8x4)   =  4 bytes (location 1)
//	uv       (vec2<f32>)  =  8 bytes (location 2)
//
// Total = 24 bytes per vertex.
const VertexStride = 24
