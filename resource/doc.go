// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package resource resolves skin resources and loads them into a device.
//
// A [Resolver] maps a logical resource name to a file inside a skin tree:
//
//	<root>/<skin>/shaders/<name>
//	<root>/<skin>/media/<name>
//
// trying the active skin first and then each fallback skin in order.
//
// [ShaderLoader] and [TextureLoader] implement asset.Loader on top of a
// Resolver. Shaders are WGSL compiled to SPIR-V with naga, or precompiled
// SPIR-V files with the .spv extension. Textures are decoded from PNG, JPEG,
// GIF, BMP, TIFF or WebP and uploaded as RGBA8, downscaled when they exceed
// the device's maximum texture dimension.
//
//	res := resource.NewResolver(os.DirFS("skins"), "dark", resource.WithFallbackSkins("default"))
//	resource.Register(pipeline.Registry(), res, dev)
//
// A skin may carry a skin.toml manifest naming its fallbacks and texture
// size cap; see [ReadManifest]. A [Watcher] invalidates assets whose files
// change on disk so the next frame reloads them.
package resource
