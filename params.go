// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package drawbatch

import (
	"encoding/binary"
	"hash"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/gogpu/drawbatch/gpucore"
)

// ParameterSet is an ordered set of named shader parameter values.
//
// Entries are kept sorted by name and each name appears at most once, so
// two sets holding the same values always have the same order. Values are
// compared by their bit patterns: a NaN equals itself, which keeps Equal
// reflexive.
//
// The zero value is an empty set. A ParameterSet shares its backing storage
// when copied; use Clone before mutating a copy.
type ParameterSet struct {
	entries []gpucore.Parameter
}

// NewParameterSet builds a set from params. Later entries with the same
// name replace earlier ones.
func NewParameterSet(params ...gpucore.Parameter) ParameterSet {
	var s ParameterSet
	for _, p := range params {
		s.Set(p.Name, p.Value...)
	}
	return s
}

// Len returns the number of parameters.
func (s ParameterSet) Len() int { return len(s.entries) }

func (s ParameterSet) search(name string) (int, bool) {
	i := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].Name >= name
	})
	return i, i < len(s.entries) && s.entries[i].Name == name
}

// Set stores value under name, replacing any previous value.
// The value slice is copied.
func (s *ParameterSet) Set(name string, value ...float32) {
	v := slices.Clone(value)
	i, found := s.search(name)
	if found {
		s.entries[i].Value = v
		return
	}
	s.entries = slices.Insert(s.entries, i, gpucore.Parameter{Name: name, Value: v})
}

// SetFloat stores a scalar parameter.
func (s *ParameterSet) SetFloat(name string, v float32) { s.Set(name, v) }

// SetVec4 stores a four-component parameter such as a color.
func (s *ParameterSet) SetVec4(name string, v [4]float32) { s.Set(name, v[:]...) }

// SetMatrix stores a 4x4 matrix parameter in column-major order.
func (s *ParameterSet) SetMatrix(name string, m [16]float32) { s.Set(name, m[:]...) }

// Get returns the value stored under name.
func (s ParameterSet) Get(name string) ([]float32, bool) {
	i, found := s.search(name)
	if !found {
		return nil, false
	}
	return s.entries[i].Value, true
}

// Delete removes name from the set. It reports whether name was present.
func (s *ParameterSet) Delete(name string) bool {
	i, found := s.search(name)
	if !found {
		return false
	}
	s.entries = slices.Delete(s.entries, i, i+1)
	return true
}

// With returns a copy of s with name set to value. s is not modified.
func (s ParameterSet) With(name string, value ...float32) ParameterSet {
	c := s.Clone()
	c.Set(name, value...)
	return c
}

// Clone returns a deep copy.
func (s ParameterSet) Clone() ParameterSet {
	if len(s.entries) == 0 {
		return ParameterSet{}
	}
	out := make([]gpucore.Parameter, len(s.entries))
	for i, e := range s.entries {
		out[i] = gpucore.Parameter{Name: e.Name, Value: slices.Clone(e.Value)}
	}
	return ParameterSet{entries: out}
}

// Parameters returns the entries in canonical order.
// The returned slice must not be modified.
func (s ParameterSet) Parameters() []gpucore.Parameter { return s.entries }

// Equal reports whether both sets hold the same names with bitwise-equal values.
func (s ParameterSet) Equal(o ParameterSet) bool {
	if len(s.entries) != len(o.entries) {
		return false
	}
	for i := range s.entries {
		a, b := s.entries[i], o.entries[i]
		if a.Name != b.Name || len(a.Value) != len(b.Value) {
			return false
		}
		for j := range a.Value {
			if math.Float32bits(a.Value[j]) != math.Float32bits(b.Value[j]) {
				return false
			}
		}
	}
	return true
}

// writeHash feeds the canonical encoding of s into h.
func (s ParameterSet) writeHash(h hash.Hash64) {
	var buf [4]byte
	for _, e := range s.entries {
		_, _ = h.Write([]byte(e.Name)) // hash.Write never returns an error
		_, _ = h.Write([]byte{0})
		binary.LittleEndian.PutUint32(buf[:], uint32(len(e.Value))) //nolint:gosec // parameter length fits uint32
		_, _ = h.Write(buf[:])
		for _, v := range e.Value {
			binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
			_, _ = h.Write(buf[:])
		}
	}
}

// String returns a compact description for logs.
func (s ParameterSet) String() string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.Name
	}
	return "{" + strings.Join(names, ",") + "}"
}
