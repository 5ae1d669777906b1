// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/gogpu/naga"

	"github.com/gogpu/drawbatch/asset"
	"github.com/gogpu/drawbatch/gpucore"
)

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// CompileWGSL compiles WGSL source to SPIR-V words.
func CompileWGSL(source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to compile shader: %w", err)
	}
	return spirvWords(spirvBytes)
}

// spirvWords converts a little-endian SPIR-V binary to 32-bit words.
func spirvWords(b []byte) ([]uint32, error) {
	if len(b) < 4 || len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidSPIRV, len(b))
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	if words[0] != spirvMagic {
		return nil, fmt.Errorf("%w: bad magic %#08x", ErrInvalidSPIRV, words[0])
	}
	return words, nil
}

// ShaderLoader loads shader assets from the skin's shaders directory.
// Files ending in .spv are used as precompiled SPIR-V; anything else is
// compiled as WGSL.
type ShaderLoader struct {
	res *Resolver
	dev gpucore.Device
}

// NewShaderLoader creates a shader loader.
func NewShaderLoader(res *Resolver, dev gpucore.Device) *ShaderLoader {
	return &ShaderLoader{res: res, dev: dev}
}

// Load implements asset.Loader.
func (l *ShaderLoader) Load(ctx context.Context, key asset.Key) (asset.Handle, error) {
	if key.Kind != asset.KindShader {
		return asset.Handle{}, fmt.Errorf("%w: %v", ErrUnsupportedKind, key.Kind)
	}
	if err := ctx.Err(); err != nil {
		return asset.Handle{}, err
	}

	data, p, err := l.res.ReadFile(key.Kind, key.Name)
	if err != nil {
		return asset.Handle{}, err
	}

	var words []uint32
	if strings.EqualFold(path.Ext(p), ".spv") {
		words, err = spirvWords(data)
	} else {
		words, err = CompileWGSL(string(data))
	}
	if err != nil {
		return asset.Handle{}, fmt.Errorf("%s: %w", p, err)
	}

	id, err := l.dev.CreateShaderModule(key.Name, words)
	if err != nil {
		return asset.Handle{}, fmt.Errorf("%s: create shader module: %w", p, err)
	}
	slogger().Debug("resource: shader loaded", "name", key.Name, "path", p, "words", len(words))
	return asset.Handle{Shader: id}, nil
}

// Release implements asset.Loader.
func (l *ShaderLoader) Release(h asset.Handle) {
	if h.Shader != gpucore.InvalidID {
		l.dev.DestroyShaderModule(h.Shader)
	}
}
