// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import (
	"errors"
	"slices"
	"testing"
	"testing/fstest"
)

func TestReadManifest(t *testing.T) {
	fsys := fstest.MapFS{
		"night/skin.toml": {Data: []byte(`
name = "Night"
fallbacks = ["dark", "default"]
max_texture_size = 2048
`)},
		"broken/skin.toml": {Data: []byte("fallbacks = [")},
		"plain/media/a.png": {Data: []byte{}},
	}

	tests := []struct {
		name    string
		skin    string
		want    Manifest
		wantErr error
	}{
		{"full", "night", Manifest{Name: "Night", Fallbacks: []string{"dark", "default"}, MaxTextureSize: 2048}, nil},
		{"missing manifest", "plain", Manifest{}, nil},
		{"missing skin", "absent", Manifest{}, nil},
		{"malformed", "broken", Manifest{}, ErrInvalidManifest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadManifest(fsys, tt.skin)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ReadManifest() error = %v, want %v", err, tt.wantErr)
			}
			if got.Name != tt.want.Name || got.MaxTextureSize != tt.want.MaxTextureSize ||
				!slices.Equal(got.Fallbacks, tt.want.Fallbacks) {
				t.Errorf("ReadManifest() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestManifestOptions(t *testing.T) {
	if opts := (Manifest{}).Options(); len(opts) != 0 {
		t.Errorf("zero manifest yields %d options, want 0", len(opts))
	}

	m := Manifest{Fallbacks: []string{"default"}, MaxTextureSize: 64}
	o := applyOptions(m.Options())
	if !slices.Equal(o.fallbacks, []string{"default"}) {
		t.Errorf("fallbacks = %v", o.fallbacks)
	}
	if o.maxTextureSize != 64 {
		t.Errorf("maxTextureSize = %d, want 64", o.maxTextureSize)
	}

	res := NewResolver(fstest.MapFS{}, "night", m.Options()...)
	if got := res.Skins(); !slices.Equal(got, []string{"night", "default"}) {
		t.Errorf("Skins() = %v", got)
	}
}
