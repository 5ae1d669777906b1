// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package asset

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// shardCount is the number of registry shards.
	// Must be a power of 2 for fast modulo via bitwise AND.
	shardCount = 16

	// shardMask is used for fast shard selection (shardCount - 1).
	shardMask = shardCount - 1
)

// Stats is a snapshot of registry counters.
type Stats struct {
	// Len is the number of registered assets.
	Len int

	// Allocated is the number of assets currently holding a native handle.
	Allocated int

	// Hits counts lookups that found an existing asset.
	Hits uint64

	// Misses counts lookups that created a new asset.
	Misses uint64

	// Evictions counts assets freed by sweeps.
	Evictions uint64
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithIdleThreshold sets how long an asset must be unused before a sweep
// may free it. Values <= 0 keep DefaultIdleThreshold.
func WithIdleThreshold(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.idleThreshold = d
		}
	}
}

// WithClock sets the time source used for idle tracking.
func WithClock(c Clock) RegistryOption {
	return func(r *Registry) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithLoader registers the loader for a kind at construction time.
func WithLoader(kind Kind, l Loader) RegistryOption {
	return func(r *Registry) {
		r.loaders[kind] = l
	}
}

// Registry owns exactly one Asset per logical key.
//
// Lookups are sharded by key hash to reduce lock contention between
// producers building bindings and the sweeper scanning for idle assets.
// Registered assets are never dropped: eviction frees native handles only,
// so every binding keeps pointing at the same wrapper.
//
// Registry is safe for concurrent use.
type Registry struct {
	shards        [shardCount]*registryShard
	clock         Clock
	idleThreshold time.Duration

	loaderMu sync.RWMutex
	loaders  map[Kind]Loader

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// registryShard is a single shard of the registry.
type registryShard struct {
	mu     sync.RWMutex
	assets map[Key]*Asset
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		clock:         SystemClock{},
		idleThreshold: DefaultIdleThreshold,
		loaders:       make(map[Kind]Loader),
	}
	for i := range r.shards {
		r.shards[i] = &registryShard{assets: make(map[Key]*Asset)}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// keyHash computes the FNV-1a hash of a key for shard selection.
func keyHash(k Key) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte{byte(k.Kind)}) // fnv.Write never returns an error
	_, _ = h.Write([]byte(k.Name))
	return h.Sum64()
}

func (r *Registry) shard(k Key) *registryShard {
	return r.shards[keyHash(k)&shardMask]
}

// SetLoader registers or replaces the loader for a kind. Loaders are
// usually set once the device exists, after the registry is created.
func (r *Registry) SetLoader(kind Kind, l Loader) {
	r.loaderMu.Lock()
	r.loaders[kind] = l
	r.loaderMu.Unlock()
}

func (r *Registry) loader(kind Kind) Loader {
	r.loaderMu.RLock()
	defer r.loaderMu.RUnlock()
	return r.loaders[kind]
}

// IdleThreshold returns the configured idle threshold.
func (r *Registry) IdleThreshold() time.Duration { return r.idleThreshold }

// Clock returns the registry's time source.
func (r *Registry) Clock() Clock { return r.clock }

func (r *Registry) now() time.Time { return r.clock.Now() }

// Get returns the asset for key if it is registered.
func (r *Registry) Get(key Key) (*Asset, bool) {
	s := r.shard(key)
	s.mu.RLock()
	a, ok := s.assets[key]
	s.mu.RUnlock()
	return a, ok
}

// GetOrCreate returns the asset for key, registering an Unallocated one on
// first use. Nothing is loaded until Allocate is called.
func (r *Registry) GetOrCreate(key Key) *Asset {
	s := r.shard(key)

	// Fast path: read lock
	s.mu.RLock()
	a, ok := s.assets[key]
	s.mu.RUnlock()
	if ok {
		r.hits.Add(1)
		return a
	}

	// Slow path: write lock with double-check
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.assets[key]; ok {
		r.hits.Add(1)
		return a
	}

	a = &Asset{key: key, reg: r, lastUsed: r.now()}
	s.assets[key] = a
	r.misses.Add(1)
	return a
}

// Shader returns the shader asset with the given name.
func (r *Registry) Shader(name string) *Asset {
	return r.GetOrCreate(Key{Kind: KindShader, Name: name})
}

// Texture returns the texture asset with the given name.
func (r *Registry) Texture(name string) *Asset {
	return r.GetOrCreate(Key{Kind: KindTexture, Name: name})
}

// Range calls fn for every registered asset until fn returns false.
// Shard locks are not held while fn runs.
func (r *Registry) Range(fn func(*Asset) bool) {
	for _, s := range r.shards {
		s.mu.RLock()
		assets := make([]*Asset, 0, len(s.assets))
		for _, a := range s.assets {
			assets = append(assets, a)
		}
		s.mu.RUnlock()

		for _, a := range assets {
			if !fn(a) {
				return
			}
		}
	}
}

// Len returns the number of registered assets.
func (r *Registry) Len() int {
	total := 0
	for _, s := range r.shards {
		s.mu.RLock()
		total += len(s.assets)
		s.mu.RUnlock()
	}
	return total
}

// Invalidate invalidates the asset for key if it is registered, so that
// its next use reloads it. It reports whether key was registered.
func (r *Registry) Invalidate(key Key) bool {
	a, ok := r.Get(key)
	if ok {
		a.Invalidate()
	}
	return ok
}

// FreeAll forces every asset to Unallocated, ignoring idle time and pins.
// It is used on device loss and at shutdown. Returns the number freed.
func (r *Registry) FreeAll() int {
	freed := 0
	r.Range(func(a *Asset) bool {
		a.mu.Lock()
		if a.dropLocked() {
			freed++
		}
		a.mu.Unlock()
		return true
	})
	if freed > 0 {
		slogger().Info("asset: freed all assets", "count", freed)
	}
	return freed
}

// Stats returns current registry statistics.
func (r *Registry) Stats() Stats {
	st := Stats{
		Hits:      r.hits.Load(),
		Misses:    r.misses.Load(),
		Evictions: r.evictions.Load(),
	}
	r.Range(func(a *Asset) bool {
		st.Len++
		if a.IsAllocated() {
			st.Allocated++
		}
		return true
	})
	return st
}
