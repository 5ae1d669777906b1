// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import (
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/pelletier/go-toml/v2"
)

// ManifestFile is the optional manifest at the top of a skin directory.
const ManifestFile = "skin.toml"

// Manifest is the decoded skin manifest:
//
//	name = "Night"
//	fallbacks = ["dark", "default"]
//	max_texture_size = 2048
type Manifest struct {
	Name           string   `toml:"name"`
	Fallbacks      []string `toml:"fallbacks"`
	MaxTextureSize uint32   `toml:"max_texture_size"`
}

// ReadManifest reads the manifest of skin from fsys. A skin without a
// manifest yields the zero Manifest and no error.
func ReadManifest(fsys fs.FS, skin string) (Manifest, error) {
	var m Manifest
	p := path.Join(skin, ManifestFile)
	data, err := fs.ReadFile(fsys, p)
	if errors.Is(err, fs.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return m, err
	}
	if err := toml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("%w: %s: %w", ErrInvalidManifest, p, err)
	}
	slogger().Debug("resource: manifest read", "skin", skin, "fallbacks", m.Fallbacks)
	return m, nil
}

// Options returns the resolver and loader options the manifest asks for.
func (m Manifest) Options() []Option {
	var opts []Option
	if len(m.Fallbacks) > 0 {
		opts = append(opts, WithFallbackSkins(m.Fallbacks...))
	}
	if m.MaxTextureSize > 0 {
		opts = append(opts, WithMaxTextureSize(m.MaxTextureSize))
	}
	return opts
}
