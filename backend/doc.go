// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package backend provides pluggable gpucore.Device implementations.
//
// # Backend Registration
//
// Backends are registered by name and selected at runtime. The software
// backend is registered on import:
//
//	import _ "github.com/gogpu/drawbatch/backend"
//
// The native backend registers itself once configured:
//
//	native.Register(native.DefaultConfig())
//
// # Backend Selection
//
// Use Default() to get the best available backend, or Get() to request
// a specific backend by name:
//
//	b, err := backend.InitDefault()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer b.Close()
//
//	pipe := drawbatch.NewPipeline(b)
//	for running {
//		b.BeginFrame()
//		pipe.Render(ctx)
//		b.EndFrame()
//	}
//
// # Available Backends
//
//   - "software": CPU reference device that validates and records draws
//   - "native": GPU device on top of gogpu/wgpu HAL
package backend
