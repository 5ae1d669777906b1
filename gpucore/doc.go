// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpucore defines the device boundary used by the drawbatch renderer.
//
// The [Device] interface is the only way batches and asset loaders talk to
// the GPU. It abstracts over concrete backends so the same batching and
// caching logic works with:
//   - gogpu/wgpu HAL devices (see backend/native)
//   - test doubles that record bind and draw calls
//
// # Architecture
//
//	         +----------------------+
//	         |  drawbatch.Pipeline  |
//	         |  (batches, assets)   |
//	         +----------+-----------+
//	                    |
//	             gpucore.Device
//	                    |
//	      +-------------+-------------+
//	      |                           |
//	+-----v--------+          +-------v-------+
//	| native.Device |          |  fake device  |
//	| (hal.Device)  |          |   (tests)     |
//	+--------------+          +---------------+
//
// # Resource Management
//
// GPU resources are managed via opaque IDs ([BufferID], [TextureID],
// [ShaderModuleID]). Devices are responsible for tracking the mapping
// between IDs and backend resources. [InvalidID] is never a live resource.
//
// # Draw Protocol
//
// A batch issues exactly one state change and one draw per frame:
//
//	dev.BindProgram(module, technique)
//	dev.SetParameters(params)
//	dev.BindTexture(texture)
//	dev.Draw(buffer, 0, vertexCount)
//
// Binding [NoProgram] selects the device's built-in fallback program, and
// binding [NoTexture] draws untextured. Both exist so that a batch whose
// assets failed to load still draws its primitives.
package gpucore
