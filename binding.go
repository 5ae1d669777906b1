// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package drawbatch

import (
	"hash"
	"hash/fnv"

	"github.com/gogpu/drawbatch/asset"
)

// EffectRef names a compiled shader program and the technique to run.
type EffectRef struct {
	// Program is a KindShader asset. A nil Program draws with the device's
	// fallback program.
	Program *asset.Asset

	// Technique selects the entry points inside Program.
	Technique string
}

// Equal reports whether both references name the same logical program and
// technique. Program wrappers need not be the same instance.
func (e EffectRef) Equal(o EffectRef) bool {
	return sameAsset(e.Program, o.Program) && e.Technique == o.Technique
}

// Binding is the render state a primitive needs: effect, parameters and
// texture. Primitives with equal bindings share one draw call.
type Binding struct {
	Effect  EffectRef
	Params  ParameterSet
	Texture *asset.Asset
}

// Equal reports whether b and o are compatible. It is an equivalence
// relation, and Hash is consistent with it.
func (b Binding) Equal(o Binding) bool {
	return b.Effect.Equal(o.Effect) &&
		sameAsset(b.Texture, o.Texture) &&
		b.Params.Equal(o.Params)
}

// Hash returns an FNV-1a hash of the binding's canonical form.
// Equal bindings always hash equally.
func (b Binding) Hash() uint64 {
	h := fnv.New64a()
	writeAssetHash(h, b.Effect.Program)
	_, _ = h.Write([]byte(b.Effect.Technique)) // fnv.Write never returns an error
	_, _ = h.Write([]byte{0})
	writeAssetHash(h, b.Texture)
	b.Params.writeHash(h)
	return h.Sum64()
}

// Clone returns a copy that does not share parameter storage with b.
func (b Binding) Clone() Binding {
	c := b
	c.Params = b.Params.Clone()
	return c
}

// String returns a compact description for logs.
func (b Binding) String() string {
	return "effect=" + assetName(b.Effect.Program) + "/" + b.Effect.Technique +
		" texture=" + assetName(b.Texture) +
		" params=" + b.Params.String()
}

// sameAsset compares assets by logical key; nil equals only nil.
func sameAsset(a, b *asset.Asset) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a == b || a.Key() == b.Key()
}

func writeAssetHash(h hash.Hash64, a *asset.Asset) {
	if a == nil {
		_, _ = h.Write([]byte{0xff})
		return
	}
	k := a.Key()
	_, _ = h.Write([]byte{byte(k.Kind)})
	_, _ = h.Write([]byte(k.Name))
	_, _ = h.Write([]byte{0})
}

func assetName(a *asset.Asset) string {
	if a == nil {
		return "<none>"
	}
	return a.Name()
}
