// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder

	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/gogpu/drawbatch/asset"
	"github.com/gogpu/drawbatch/gpucore"
)

// TextureLoader loads texture assets from the skin's media directory and
// uploads them as RGBA8.
type TextureLoader struct {
	res     *Resolver
	dev     gpucore.Device
	maxSize uint32
}

// NewTextureLoader creates a texture loader. WithMaxTextureSize overrides
// the device's maximum texture dimension.
func NewTextureLoader(res *Resolver, dev gpucore.Device, opts ...Option) *TextureLoader {
	o := applyOptions(opts)
	return &TextureLoader{res: res, dev: dev, maxSize: o.maxTextureSize}
}

func (l *TextureLoader) limit() int {
	if l.maxSize > 0 {
		return int(l.maxSize)
	}
	return int(l.dev.MaxTextureDimension())
}

// Load implements asset.Loader.
func (l *TextureLoader) Load(ctx context.Context, key asset.Key) (asset.Handle, error) {
	if key.Kind != asset.KindTexture {
		return asset.Handle{}, fmt.Errorf("%w: %v", ErrUnsupportedKind, key.Kind)
	}
	if err := ctx.Err(); err != nil {
		return asset.Handle{}, err
	}

	data, p, err := l.res.ReadFile(key.Kind, key.Name)
	if err != nil {
		return asset.Handle{}, err
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return asset.Handle{}, fmt.Errorf("%s: decode: %w", p, err)
	}

	rgba := toRGBA(img, l.limit())
	w, h := rgba.Rect.Dx(), rgba.Rect.Dy()
	desc := gpucore.TextureDesc{
		Label:  key.Name,
		Width:  uint32(w), //nolint:gosec // image dimensions are positive
		Height: uint32(h), //nolint:gosec // image dimensions are positive
		Format: gpucore.TextureFormatRGBA8Unorm,
	}
	id, err := l.dev.CreateTexture(desc)
	if err != nil {
		return asset.Handle{}, fmt.Errorf("%s: create texture: %w", p, err)
	}
	if err := l.dev.WriteTexture(id, rgba.Pix); err != nil {
		l.dev.DestroyTexture(id)
		return asset.Handle{}, fmt.Errorf("%s: upload texture: %w", p, err)
	}

	src := img.Bounds()
	if src.Dx() != w || src.Dy() != h {
		slogger().Debug("resource: texture downscaled", "name", key.Name,
			"from", src.Size().String(), "to", rgba.Rect.Size().String())
	}
	slogger().Debug("resource: texture loaded", "name", key.Name, "path", p, "format", format, "width", w, "height", h)
	return asset.Handle{Texture: id, Width: desc.Width, Height: desc.Height}, nil
}

// Release implements asset.Loader.
func (l *TextureLoader) Release(h asset.Handle) {
	if h.Texture != gpucore.InvalidID {
		l.dev.DestroyTexture(h.Texture)
	}
}

// fitWithin returns w and h scaled down, keeping the aspect ratio, so that
// neither exceeds limit. A limit <= 0 means no limit.
func fitWithin(w, h, limit int) (int, int) {
	if limit <= 0 || (w <= limit && h <= limit) {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}

// toRGBA returns img as a tightly packed *image.RGBA with its origin at
// zero, downscaled to fit within limit.
func toRGBA(img image.Image, limit int) *image.RGBA {
	b := img.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), limit)

	if src, ok := img.(*image.RGBA); ok && w == b.Dx() && h == b.Dy() &&
		src.Rect.Min == (image.Point{}) && src.Stride == 4*w {
		return src
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
		return dst
	}
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// Register installs a ShaderLoader and a TextureLoader for res and dev
// into reg.
func Register(reg *asset.Registry, res *Resolver, dev gpucore.Device, opts ...Option) {
	reg.SetLoader(asset.KindShader, NewShaderLoader(res, dev))
	reg.SetLoader(asset.KindTexture, NewTextureLoader(res, dev, opts...))
}
