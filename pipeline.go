// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package drawbatch

import (
	"context"
	"slices"
	"sync"

	"github.com/gogpu/drawbatch/asset"
	"github.com/gogpu/drawbatch/gpucore"
)

type commandOp uint8

const (
	opAdd commandOp = iota
	opRemove
	opMarkDirty
)

// command is a producer mutation waiting for the next Render.
type command struct {
	op      commandOp
	p       *Primitive
	binding Binding // opAdd: binding at the time of Add
}

// Pipeline groups live primitives into batches and draws them.
//
// Add, Remove, MarkDirty and DeviceLost may be called from any goroutine.
// They are queued and applied at the start of the next Render, so batch
// membership never changes during a render pass. Render, Batches, Stats
// and Close belong to the render goroutine.
type Pipeline struct {
	dev        gpucore.Device
	reg        *asset.Registry
	ownsReg    bool
	sweeper    *asset.Sweeper
	sweepEvery int

	mu     sync.Mutex
	queue  []command
	closed bool

	// Render goroutine state.
	active  map[*Primitive]struct{}
	pending []*Primitive
	queued  map[*Primitive]struct{}
	batches []*Batch
	index   map[uint64][]*Batch
	rebuild bool
	nextID  uint64
	stats   Stats
}

// NewPipeline creates a pipeline drawing to dev.
//
// If dev implements SetLogger(*slog.Logger), it receives the package logger.
func NewPipeline(dev gpucore.Device, opts ...Option) *Pipeline {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	p := &Pipeline{
		dev:        dev,
		reg:        o.registry,
		sweepEvery: o.sweepEvery,
		active:     make(map[*Primitive]struct{}),
		queued:     make(map[*Primitive]struct{}),
		index:      make(map[uint64][]*Batch),
	}
	if p.reg == nil {
		var regOpts []asset.RegistryOption
		if o.clock != nil {
			regOpts = append(regOpts, asset.WithClock(o.clock))
		}
		p.reg = asset.NewRegistry(regOpts...)
		p.ownsReg = true
	}
	p.sweeper = asset.NewSweeper(p.reg, 0)

	propagateLogger(dev, Logger())
	return p
}

// Registry returns the asset registry used by the pipeline.
func (p *Pipeline) Registry() *asset.Registry { return p.reg }

// Device returns the device the pipeline draws to.
func (p *Pipeline) Device() gpucore.Device { return p.dev }

func (p *Pipeline) enqueue(c command) {
	p.mu.Lock()
	p.queue = append(p.queue, c)
	p.mu.Unlock()
}

// Add queues prim for placement on the next Render. Adding a primitive
// that is already tracked is a no-op.
func (p *Pipeline) Add(prim *Primitive) {
	if prim == nil {
		return
	}
	p.enqueue(command{op: opAdd, p: prim, binding: prim.Binding()})
}

// Remove stops drawing prim from the next Render on.
func (p *Pipeline) Remove(prim *Primitive) {
	if prim == nil {
		return
	}
	p.enqueue(command{op: opRemove, p: prim})
}

// MarkDirty requests a full rebuild on the next Render. Use it when many
// bindings change at once, such as on a skin switch.
func (p *Pipeline) MarkDirty() {
	p.enqueue(command{op: opMarkDirty})
}

// DeviceLost forces every registered asset to Unallocated and requests a
// full rebuild, so the next frame reallocates everything.
func (p *Pipeline) DeviceLost() {
	n := p.reg.FreeAll()
	slogger().Info("drawbatch: device lost", "freed_assets", n)
	p.MarkDirty()
}

// Render applies queued mutations, places primitives (full rebuild or
// incremental) and draws every batch in creation order.
//
// Failures are logged and recovered: a batch that hits a device error is
// dropped after the pass and its members are re-queued. Render returns an
// error only when ctx is done or the pipeline is closed.
func (p *Pipeline) Render(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cmds, closed := p.drain()
	if closed {
		return ErrPipelineClosed
	}
	p.apply(cmds)

	switch {
	case p.rebuild:
		p.fullRebuild()
	case len(p.pending) > 0:
		p.placePending()
	}

	err := p.renderBatches(ctx)
	p.stats.Frames++
	if err != nil {
		return err
	}

	if p.sweepEvery > 0 && p.stats.Frames%uint64(p.sweepEvery) == 0 { //nolint:gosec // sweepEvery is positive
		n := p.sweeper.Sweep(p.reg.Clock().Now())
		p.stats.Evictions += uint64(n) //nolint:gosec // n is non-negative
	}
	return nil
}

func (p *Pipeline) drain() ([]command, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cmds := p.queue
	p.queue = nil
	return cmds, p.closed
}

func (p *Pipeline) apply(cmds []command) {
	for _, c := range cmds {
		switch c.op {
		case opAdd:
			if p.tracked(c.p) {
				continue
			}
			c.p.placed = c.binding
			p.pending = append(p.pending, c.p)
			p.queued[c.p] = struct{}{}
		case opRemove:
			p.untrack(c.p)
		case opMarkDirty:
			p.rebuild = true
		}
	}
}

func (p *Pipeline) tracked(prim *Primitive) bool {
	if _, ok := p.active[prim]; ok {
		return true
	}
	_, ok := p.queued[prim]
	return ok
}

func (p *Pipeline) untrack(prim *Primitive) {
	if b := prim.batch; b != nil {
		if b.Remove(prim) {
			p.dropBatch(b)
		}
	}
	delete(p.active, prim)
	if _, ok := p.queued[prim]; ok {
		delete(p.queued, prim)
		if i := slices.Index(p.pending, prim); i >= 0 {
			p.pending = slices.Delete(p.pending, i, i+1)
		}
	}
}

// fullRebuild discards every batch and repartitions all known primitives.
// Batch members keep their relative order, followed by pending primitives.
func (p *Pipeline) fullRebuild() {
	prims := make([]*Primitive, 0, len(p.active)+len(p.pending))
	for _, b := range p.batches {
		prims = append(prims, b.members...)
	}
	prims = append(prims, p.pending...)

	for _, b := range p.batches {
		for _, m := range b.members {
			m.batch = nil
		}
		b.Release(p.dev)
	}
	p.batches = nil
	clear(p.index)
	clear(p.active)

	for _, prim := range prims {
		prim.placed = prim.Binding()
		p.place(prim)
	}
	p.pending = nil
	clear(p.queued)
	p.rebuild = false
	p.stats.Rebuilds++
	slogger().Debug("drawbatch: full rebuild", "primitives", len(prims), "batches", len(p.batches))
}

// placePending places only the pending primitives, leaving existing
// batches untouched apart from appends.
func (p *Pipeline) placePending() {
	for _, prim := range p.pending {
		p.place(prim)
	}
	n := len(p.pending)
	p.pending = nil
	clear(p.queued)
	p.stats.IncrementalPasses++
	slogger().Debug("drawbatch: incremental placement", "primitives", n, "batches", len(p.batches))
}

// place adds prim to the first batch whose binding equals prim's placement
// snapshot, creating a new batch at the end of the draw order when none
// matches.
func (p *Pipeline) place(prim *Primitive) {
	h := prim.placed.Hash()
	for _, b := range p.index[h] {
		if b.binding.Equal(prim.placed) {
			b.Add(prim)
			p.active[prim] = struct{}{}
			return
		}
	}
	p.nextID++
	b := newBatch(p.nextID, prim.placed)
	p.batches = append(p.batches, b)
	p.index[b.hash] = append(p.index[b.hash], b)
	b.Add(prim)
	p.active[prim] = struct{}{}
}

func (p *Pipeline) renderBatches(ctx context.Context) error {
	var invalid []*Batch
	draws := 0
	var err error
	for _, b := range p.batches {
		if err = ctx.Err(); err != nil {
			break
		}
		if b.Render(ctx, p.dev) == StatusInvalid {
			invalid = append(invalid, b)
			continue
		}
		draws++
	}
	for _, b := range p.batches {
		b.releasePins()
	}
	p.stats.DrawCalls = draws

	for _, b := range invalid {
		p.invalidate(b)
	}
	return err
}

// invalidate drops b and re-queues its members for the next frame.
func (p *Pipeline) invalidate(b *Batch) {
	members := b.members
	for _, m := range members {
		m.batch = nil
		delete(p.active, m)
		p.pending = append(p.pending, m)
		p.queued[m] = struct{}{}
	}
	b.members = nil
	b.totalVertices, b.totalPrimitives = 0, 0
	p.dropBatch(b)
	p.stats.InvalidatedBatches++
	slogger().Warn("drawbatch: batch invalidated", "batch", b.id, "requeued", len(members))
}

// dropBatch releases b and removes it from the draw order and the index.
func (p *Pipeline) dropBatch(b *Batch) {
	b.Release(p.dev)
	if i := slices.Index(p.batches, b); i >= 0 {
		p.batches = slices.Delete(p.batches, i, i+1)
	}
	bucket := p.index[b.hash]
	if i := slices.Index(bucket, b); i >= 0 {
		bucket = slices.Delete(bucket, i, i+1)
	}
	if len(bucket) == 0 {
		delete(p.index, b.hash)
	} else {
		p.index[b.hash] = bucket
	}
}

// Batches returns the live batches in draw order.
func (p *Pipeline) Batches() []*Batch { return slices.Clone(p.batches) }

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	st := p.stats
	st.Batches = len(p.batches)
	st.Primitives = len(p.active)
	st.Pending = len(p.pending)
	return st
}

// Close releases every batch buffer. A private registry also frees its
// assets. Render returns ErrPipelineClosed afterwards. Close is idempotent.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.queue = nil
	p.mu.Unlock()

	for _, b := range p.batches {
		for _, m := range b.members {
			m.batch = nil
		}
		b.Release(p.dev)
	}
	p.batches = nil
	clear(p.index)
	clear(p.active)
	clear(p.queued)
	p.pending = nil

	if p.ownsReg {
		p.reg.FreeAll()
	}
	slogger().Info("drawbatch: pipeline closed")
}
