// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import (
	"fmt"
	"io/fs"
	"path"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/gogpu/drawbatch/asset"
)

// Skin subdirectories per asset kind.
const (
	ShaderDir = "shaders"
	MediaDir  = "media"
)

// Option configures a Resolver or a loader.
type Option func(*options)

type options struct {
	fallbacks      []string
	maxTextureSize uint32
}

// WithFallbackSkins sets the skins searched, in order, when a resource is
// missing from the active skin.
func WithFallbackSkins(skins ...string) Option {
	return func(o *options) {
		o.fallbacks = append([]string(nil), skins...)
	}
}

// WithMaxTextureSize caps the larger side of loaded textures. Larger images
// are downscaled with their aspect ratio kept. Zero uses the device limit.
func WithMaxTextureSize(size uint32) Option {
	return func(o *options) {
		o.maxTextureSize = size
	}
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Resolver maps logical resource names to files in a skin tree.
//
// Resolver is safe for concurrent use. SetSkin may be called while loaders
// run; each lookup sees either the old or the new skin.
type Resolver struct {
	fsys fs.FS

	mu    sync.RWMutex
	skin  string
	chain []string

	fallbacks []string
}

// NewResolver creates a resolver over fsys with skin as the active skin.
func NewResolver(fsys fs.FS, skin string, opts ...Option) *Resolver {
	o := applyOptions(opts)
	r := &Resolver{fsys: fsys, fallbacks: o.fallbacks}
	r.SetSkin(skin)
	return r
}

// FS returns the underlying file system.
func (r *Resolver) FS() fs.FS { return r.fsys }

// Skin returns the active skin.
func (r *Resolver) Skin() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.skin
}

// SetSkin switches the active skin. Already allocated assets keep their
// handles; free them and call Pipeline.MarkDirty to pick up the new skin.
func (r *Resolver) SetSkin(skin string) {
	chain := searchChain(skin, r.fallbacks)
	r.mu.Lock()
	r.skin = skin
	r.chain = chain
	r.mu.Unlock()
	slogger().Debug("resource: skin set", "skin", skin, "chain", chain)
}

// Skins returns the skins searched by Resolve, in order.
func (r *Resolver) Skins() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.chain...)
}

// searchChain returns skin followed by fallbacks with empty entries and
// case-insensitive duplicates removed.
func searchChain(skin string, fallbacks []string) []string {
	fold := cases.Fold()
	seen := make(map[string]bool, len(fallbacks)+1)
	chain := make([]string, 0, len(fallbacks)+1)
	for _, s := range append([]string{skin}, fallbacks...) {
		s = norm.NFC.String(s)
		key := fold.String(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		chain = append(chain, s)
	}
	return chain
}

// dirFor returns the skin subdirectory holding resources of kind.
func dirFor(kind asset.Kind) (string, error) {
	switch kind {
	case asset.KindShader:
		return ShaderDir, nil
	case asset.KindTexture:
		return MediaDir, nil
	default:
		return "", fmt.Errorf("%w: %v", ErrUnsupportedKind, kind)
	}
}

// Resolve returns the path of the named resource in the first skin of the
// search chain that has it. A missing resource yields an error matching
// fs.ErrNotExist.
func (r *Resolver) Resolve(kind asset.Kind, name string) (string, error) {
	dir, err := dirFor(kind)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", asset.ErrEmptyName
	}
	name = norm.NFC.String(name)
	if !fs.ValidPath(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	for _, skin := range r.Skins() {
		p := path.Join(skin, dir, name)
		if _, err := fs.Stat(r.fsys, p); err == nil {
			return p, nil
		}
	}
	return "", &fs.PathError{Op: "resolve", Path: path.Join(dir, name), Err: fs.ErrNotExist}
}

// ReadFile resolves the named resource and returns its contents and path.
func (r *Resolver) ReadFile(kind asset.Kind, name string) ([]byte, string, error) {
	p, err := r.Resolve(kind, name)
	if err != nil {
		return nil, "", err
	}
	data, err := fs.ReadFile(r.fsys, p)
	if err != nil {
		return nil, p, err
	}
	return data, p, nil
}
