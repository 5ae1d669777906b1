// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/fallback.wgsl
var fallbackShaderSource string

// sharedResources are created once per device and used by every draw.
type sharedResources struct {
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	sampler    hal.Sampler
	fallback   hal.ShaderModule
	white      *textureEntry
}

// newSharedResources creates the bind group layout, pipeline layout,
// sampler, fallback program and 1x1 white texture. On error every
// resource created so far is destroyed.
func newSharedResources(device hal.Device, queue hal.Queue) (*sharedResources, error) {
	s := &sharedResources{}
	if err := s.init(device, queue); err != nil {
		s.destroy(device)
		return nil, err
	}
	return s, nil
}

func (s *sharedResources) init(device hal.Device, queue hal.Queue) error {
	// Bind group layout:
	//   Binding 0: parameters (uniform buffer, vertex+fragment)
	//   Binding 1: texture (texture_2d, fragment)
	//   Binding 2: sampler (fragment)
	bindLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "drawbatch_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	s.bindLayout = bindLayout

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "drawbatch_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{s.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	s.pipeLayout = pipeLayout

	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "drawbatch_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		return fmt.Errorf("create sampler: %w", err)
	}
	s.sampler = sampler

	fallback, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "drawbatch_fallback",
		Source: hal.ShaderSource{WGSL: fallbackShaderSource},
	})
	if err != nil {
		return fmt.Errorf("create fallback shader: %w", err)
	}
	s.fallback = fallback

	white, err := createTexture(device, "drawbatch_white", 1, 1, gputypes.TextureFormatRGBA8Unorm,
		gputypes.TextureUsageTextureBinding|gputypes.TextureUsageCopyDst)
	if err != nil {
		return err
	}
	s.white = white
	err = queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: white.tex, MipLevel: 0},
		[]byte{0xFF, 0xFF, 0xFF, 0xFF},
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: 4, RowsPerImage: 1},
		&hal.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("upload white texture: %w", err)
	}
	return nil
}

func (s *sharedResources) destroy(device hal.Device) {
	if s == nil {
		return
	}
	if s.white != nil {
		s.white.destroy(device)
		s.white = nil
	}
	if s.fallback != nil {
		device.DestroyShaderModule(s.fallback)
		s.fallback = nil
	}
	if s.sampler != nil {
		device.DestroySampler(s.sampler)
		s.sampler = nil
	}
	if s.pipeLayout != nil {
		device.DestroyPipelineLayout(s.pipeLayout)
		s.pipeLayout = nil
	}
	if s.bindLayout != nil {
		device.DestroyBindGroupLayout(s.bindLayout)
		s.bindLayout = nil
	}
}
