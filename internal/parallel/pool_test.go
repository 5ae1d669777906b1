// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package parallel

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewPoolWorkers(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		want    int
	}{
		{"explicit", 3, 3},
		{"zero uses GOMAXPROCS", 0, runtime.GOMAXPROCS(0)},
		{"negative uses GOMAXPROCS", -1, runtime.GOMAXPROCS(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPool(tt.workers)
			defer p.Close()
			if got := p.Workers(); got != tt.want {
				t.Errorf("Workers() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRunExecutesAll(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	var n atomic.Int64
	work := make([]func(context.Context), 100)
	for i := range work {
		work[i] = func(context.Context) { n.Add(1) }
	}
	if skipped := p.Run(context.Background(), work); skipped != 0 {
		t.Errorf("skipped = %d, want 0", skipped)
	}
	if got := n.Load(); got != 100 {
		t.Errorf("executed %d items, want 100", got)
	}
}

func TestRunStealsFromBlockedWorker(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	// Item 0 blocks worker 0 until every other item has run. Item 2 sits
	// in worker 0's queue and only completes if worker 1 steals it.
	release := make(chan struct{})
	var n atomic.Int64
	work := []func(context.Context){
		func(context.Context) { <-release },
		func(context.Context) { n.Add(1) },
		func(context.Context) { n.Add(1) },
		func(context.Context) { n.Add(1) },
	}

	done := make(chan struct{})
	go func() {
		p.Run(context.Background(), work)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for n.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d items ran while worker 0 was blocked", n.Load())
		default:
			time.Sleep(time.Millisecond)
		}
	}
	close(release)
	<-done
}

func TestRunSkipsAfterCancel(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Int64
	work := make([]func(context.Context), 10)
	work[0] = func(context.Context) {
		ran.Add(1)
		cancel()
	}
	for i := 1; i < len(work); i++ {
		work[i] = func(context.Context) { ran.Add(1) }
	}

	skipped := p.Run(ctx, work)
	if int(ran.Load())+skipped != len(work) {
		t.Errorf("ran %d + skipped %d != %d", ran.Load(), skipped, len(work))
	}
	if skipped == 0 {
		t.Error("expected items to be skipped after cancel")
	}
}

func TestRunOnClosedPool(t *testing.T) {
	p := NewPool(2)
	p.Close()
	p.Close() // idempotent

	called := false
	skipped := p.Run(context.Background(), []func(context.Context){func(context.Context) { called = true }})
	if skipped != 1 || called {
		t.Errorf("Run on closed pool: skipped = %d, called = %v", skipped, called)
	}
}

func TestRunConcurrentCallers(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	var n atomic.Int64
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			work := make([]func(context.Context), 25)
			for i := range work {
				work[i] = func(context.Context) { n.Add(1) }
			}
			p.Run(context.Background(), work)
		}()
	}
	wg.Wait()
	if got := n.Load(); got != 200 {
		t.Errorf("executed %d items, want 200", got)
	}
}
