// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package asset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/drawbatch/gpucore"
)

// DefaultIdleThreshold is how long an asset must go unused before a sweep
// may free it.
const DefaultIdleThreshold = 5 * time.Second

// Kind identifies the type of native resource an asset wraps.
type Kind uint8

const (
	// KindShader is a compiled shader module.
	KindShader Kind = iota + 1

	// KindTexture is a sampled 2D texture.
	KindTexture
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindShader:
		return "shader"
	case KindTexture:
		return "texture"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Key is the logical identity of an asset. Two assets with equal keys
// describe the same resource.
type Key struct {
	Kind Kind
	Name string
}

// String returns "kind:name".
func (k Key) String() string {
	return k.Kind.String() + ":" + k.Name
}

// Handle is the native side of an allocated asset.
type Handle struct {
	// Shader is set for KindShader assets.
	Shader gpucore.ShaderModuleID

	// Texture, Width and Height are set for KindTexture assets.
	Texture gpucore.TextureID
	Width   uint32
	Height  uint32
}

// Loader creates and releases the native resource for an asset.
// Implementations live in package resource.
type Loader interface {
	// Load resolves and allocates the resource named by key.
	Load(ctx context.Context, key Key) (Handle, error)

	// Release frees a handle previously returned by Load.
	Release(h Handle)
}

// Asset is a lazily allocated wrapper around one GPU resource.
//
// Asset is safe for concurrent use: the rendering goroutine allocates and
// uses assets while a sweeper goroutine may free idle ones.
type Asset struct {
	key Key
	reg *Registry

	mu        sync.Mutex
	handle    Handle
	allocated bool
	lastUsed  time.Time
	pins      int
	stale     bool
	failures  uint64

	// loading is closed when the in-flight load finishes; nil when idle.
	// discard drops the in-flight result on completion.
	loading chan struct{}
	discard bool
}

// Key returns the asset's logical identity.
func (a *Asset) Key() Key { return a.key }

// Kind returns the asset's kind.
func (a *Asset) Kind() Kind { return a.key.Kind }

// Name returns the asset's logical name.
func (a *Asset) Name() string { return a.key.Name }

// String returns the key string.
func (a *Asset) String() string { return a.key.String() }

// IsAllocated reports whether the asset currently holds a native handle.
func (a *Asset) IsAllocated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocated
}

// Handle returns the native handle and whether the asset is allocated.
func (a *Asset) Handle() (Handle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handle, a.allocated
}

// LastUsed returns the time of the most recent use or allocation.
func (a *Asset) LastUsed() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastUsed
}

// Failures returns how many allocation attempts have failed.
func (a *Asset) Failures() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failures
}

// Allocate loads the native resource if it is not already allocated.
//
// On failure the error is logged and returned and the asset stays
// Unallocated; the failure is not remembered, so the next call retries.
// Loading may block on file I/O and shader compilation. The asset lock is
// not held while the loader runs; concurrent callers wait for the same
// load. A Free, FreeAll or Invalidate during the load discards its result
// and Allocate returns ErrLoadDiscarded.
func (a *Asset) Allocate(ctx context.Context) error {
	a.mu.Lock()
	for a.loading != nil && !a.allocated {
		done := a.loading
		a.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		a.mu.Lock()
	}
	if a.allocated {
		a.mu.Unlock()
		return nil
	}

	loader := a.reg.loader(a.key.Kind)
	if loader == nil {
		a.failures++
		a.mu.Unlock()
		slogger().Warn("asset: allocate failed", "asset", a.key.String(), "err", ErrNoLoader)
		return fmt.Errorf("%w: %s", ErrNoLoader, a.key)
	}
	done := make(chan struct{})
	a.loading = done
	a.discard = false
	a.mu.Unlock()

	h, err := loader.Load(ctx, a.key)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.loading = nil
	close(done)
	if err != nil {
		a.failures++
		slogger().Warn("asset: allocate failed", "asset", a.key.String(), "attempt", a.failures, "err", err)
		return fmt.Errorf("asset %s: %w", a.key, err)
	}
	if a.discard {
		a.discard = false
		loader.Release(h)
		slogger().Debug("asset: load discarded", "asset", a.key.String())
		return fmt.Errorf("%w: %s", ErrLoadDiscarded, a.key)
	}

	a.handle = h
	a.allocated = true
	a.lastUsed = a.reg.now()
	slogger().Debug("asset: allocated", "asset", a.key.String())
	return nil
}

// IsLoading reports whether a load is in flight.
func (a *Asset) IsLoading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loading != nil
}

// Free releases the native handle and returns the asset to Unallocated.
// Free is idempotent and ignores pins; use it for device loss and shutdown.
// A load in flight is discarded.
func (a *Asset) Free() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dropLocked()
}

// dropLocked frees the handle and discards an in-flight load.
func (a *Asset) dropLocked() bool {
	if a.loading != nil {
		a.discard = true
	}
	return a.freeLocked()
}

func (a *Asset) freeLocked() bool {
	if !a.allocated {
		return false
	}
	if loader := a.reg.loader(a.key.Kind); loader != nil {
		loader.Release(a.handle)
	}
	a.handle = Handle{}
	a.allocated = false
	a.stale = false
	slogger().Debug("asset: freed", "asset", a.key.String())
	return true
}

// Touch records a use at the registry clock's current time.
func (a *Asset) Touch() {
	now := a.reg.now()
	a.mu.Lock()
	a.lastUsed = now
	a.mu.Unlock()
}

// Pin marks the asset as bound to a draw call of the frame in progress.
// A pinned asset is never eligible for eviction.
func (a *Asset) Pin() {
	a.mu.Lock()
	a.pins++
	a.mu.Unlock()
}

// Unpin releases one Pin. The last Unpin of an invalidated asset frees it.
func (a *Asset) Unpin() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pins > 0 {
		a.pins--
	}
	if a.pins == 0 && a.stale {
		a.freeLocked()
	}
}

// Invalidate drops the native handle so that the next Allocate loads the
// resource again. A pinned asset keeps its handle until the last Unpin.
// A load in flight is discarded.
func (a *Asset) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.allocated {
		if a.loading != nil {
			a.discard = true
		}
		return
	}
	if a.pins > 0 {
		a.stale = true
		return
	}
	a.freeLocked()
}

// CanBeDeleted reports whether the asset has been idle for at least the
// idle threshold at time now and is not pinned by an in-flight frame.
func (a *Asset) CanBeDeleted(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.canBeDeletedLocked(now)
}

func (a *Asset) canBeDeletedLocked(now time.Time) bool {
	return a.pins == 0 && now.Sub(a.lastUsed) >= a.reg.idleThreshold
}

// TryEvict frees the asset if it is allocated and CanBeDeleted(now).
// The check and the release happen under one lock.
func (a *Asset) TryEvict(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.allocated || !a.canBeDeletedLocked(now) {
		return false
	}
	return a.freeLocked()
}
