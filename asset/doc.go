// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package asset manages lazily allocated, idle-evictable GPU resources.
//
// An [Asset] wraps one native resource (a compiled shader module or a
// texture). It starts Unallocated, becomes Allocated on the first successful
// [Asset.Allocate], and returns to Unallocated when freed by a [Sweeper]
// after sitting idle for the registry's idle threshold, or when forced by
// [Registry.FreeAll] on device loss or shutdown.
//
// Assets are created once per logical resource by a [Registry] and shared
// by reference across every binding that uses them:
//
//	reg := asset.NewRegistry(asset.WithIdleThreshold(5 * time.Second))
//	reg.SetLoader(asset.KindShader, shaderLoader)
//	reg.SetLoader(asset.KindTexture, textureLoader)
//
//	fx := reg.Shader("button.wgsl")  // same *Asset on every call
//	bg := reg.Texture("button.png")
//
// A failed allocation is never cached: the asset stays Unallocated and the
// next Allocate call tries again.
package asset
