// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

// Device abstracts over different GPU backend implementations.
//
// Resource lifecycle:
//   - Resources are created via Create* methods
//   - Resources must be explicitly destroyed via Destroy* methods
//   - Destroy* on an unknown or already destroyed ID is a no-op
//   - IDs become invalid after destruction and must not be reused
//
// Draw-time methods (BindProgram, SetParameters, BindTexture, Draw) are
// only valid while the backend has a frame in progress. A backend returns
// [ErrDeviceLost] from any method once the device has been lost.
//
// Draw-time methods are called from the rendering goroutine only. Resource
// creation, upload and Destroy* may also be called by asset preloading and
// the asset sweeper, so implementations must guard their resource tables.
type Device interface {
	// === Buffer Management ===

	// CreateBuffer creates a GPU buffer of size bytes.
	CreateBuffer(label string, size uint64, usage BufferUsage) (BufferID, error)

	// WriteBuffer writes data to a buffer at the given byte offset.
	WriteBuffer(id BufferID, offset uint64, data []byte) error

	// DestroyBuffer releases a GPU buffer.
	DestroyBuffer(id BufferID)

	// === Shader Compilation ===

	// CreateShaderModule creates a shader module from SPIR-V bytecode.
	// The SPIR-V is compiled by naga before being passed here.
	CreateShaderModule(label string, spirv []uint32) (ShaderModuleID, error)

	// DestroyShaderModule releases a shader module.
	DestroyShaderModule(id ShaderModuleID)

	// === Texture Management ===

	// CreateTexture creates a 2D sampled texture.
	CreateTexture(desc TextureDesc) (TextureID, error)

	// WriteTexture uploads tightly packed pixel data covering the whole texture.
	WriteTexture(id TextureID, data []byte) error

	// DestroyTexture releases a texture.
	DestroyTexture(id TextureID)

	// MaxTextureDimension returns the largest supported texture edge in pixels.
	MaxTextureDimension() uint32

	// === Draw State ===

	// BindProgram activates a shader module with a named technique.
	// NoProgram selects the backend's fallback program.
	BindProgram(module ShaderModuleID, technique string) error

	// SetParameters sets the named shader parameters for subsequent draws.
	SetParameters(params []Parameter) error

	// BindTexture binds a texture for subsequent draws.
	// NoTexture draws untextured.
	BindTexture(id TextureID) error

	// Draw issues one non-indexed triangle-list draw from a vertex buffer.
	Draw(buffer BufferID, firstVertex, vertexCount uint32) error
}
