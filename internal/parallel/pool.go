// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package parallel provides a work-stealing goroutine pool.
package parallel

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool runs work items on a fixed set of goroutines.
//
// Each worker owns a queue and steals from the other queues when its own is
// empty, so a few slow items (large textures) do not stall the rest.
//
// Thread safety: Pool is safe for concurrent use.
type Pool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// NewPool starts a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	queueSize := max(workers*4, 8)

	p := &Pool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), queueSize)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	own := p.queues[id]

	for {
		select {
		case <-p.done:
			p.drain(own)
			return
		case work := <-own:
			work()
			continue
		default:
		}

		if work := p.steal(id); work != nil {
			work()
			continue
		}

		select {
		case <-p.done:
			p.drain(own)
			return
		case work := <-own:
			work()
		}
	}
}

// drain runs the work left in q.
func (p *Pool) drain(q chan func()) {
	for {
		select {
		case work := <-q:
			work()
		default:
			return
		}
	}
}

// steal takes one item from another worker's queue, or returns nil.
func (p *Pool) steal(id int) func() {
	for i := range p.workers {
		if i == id {
			continue
		}
		select {
		case work := <-p.queues[i]:
			return work
		default:
		}
	}
	return nil
}

// Run executes every item and waits for all of them. Items that have not
// started when ctx is canceled are skipped; Run returns how many.
// On a closed pool every item is skipped.
func (p *Pool) Run(ctx context.Context, work []func(context.Context)) (skipped int) {
	if len(work) == 0 {
		return 0
	}
	if !p.running.Load() {
		return len(work)
	}

	var (
		wg      sync.WaitGroup
		skips   atomic.Int64
		stopped bool
	)
	for i, fn := range work {
		if stopped {
			skips.Add(1)
			continue
		}
		wg.Add(1)
		item := func() {
			defer wg.Done()
			if ctx.Err() != nil {
				skips.Add(1)
				return
			}
			fn(ctx)
		}
		select {
		case p.queues[i%p.workers] <- item:
		case <-p.done:
			wg.Done()
			skips.Add(1)
			stopped = true
		case <-ctx.Done():
			wg.Done()
			skips.Add(1)
			stopped = true
		}
	}
	wg.Wait()
	return int(skips.Load())
}

// Workers returns the number of workers in the pool.
func (p *Pool) Workers() int {
	return p.workers
}

// Close stops the pool after the queued work has run.
// Close is safe to call multiple times.
func (p *Pool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}
