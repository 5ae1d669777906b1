// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package asset

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gogpu/drawbatch/gpucore"
)

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errLoadFailed = errors.New("load failed")

// fakeLoader hands out sequential IDs and can be told to fail.
type fakeLoader struct {
	mu       sync.Mutex
	fail     bool
	next     uint64
	loads    int
	released []Handle
}

func (l *fakeLoader) Load(_ context.Context, key Key) (Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads++
	if l.fail {
		return Handle{}, errLoadFailed
	}
	l.next++
	if key.Kind == KindShader {
		return Handle{Shader: gpucore.ShaderModuleID(l.next)}, nil
	}
	return Handle{Texture: gpucore.TextureID(l.next), Width: 4, Height: 4}, nil
}

func (l *fakeLoader) Release(h Handle) {
	l.mu.Lock()
	l.released = append(l.released, h)
	l.mu.Unlock()
}

func (l *fakeLoader) setFail(fail bool) {
	l.mu.Lock()
	l.fail = fail
	l.mu.Unlock()
}

func (l *fakeLoader) counts() (loads, releases int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads, len(l.released)
}

func newTestRegistry(opts ...RegistryOption) (*Registry, *fakeClock, *fakeLoader) {
	clock := newFakeClock()
	loader := &fakeLoader{}
	all := append([]RegistryOption{
		WithClock(clock),
		WithLoader(KindShader, loader),
		WithLoader(KindTexture, loader),
	}, opts...)
	return NewRegistry(all...), clock, loader
}
