// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package drawbatch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/drawbatch/asset"
	"github.com/gogpu/drawbatch/gpucore"
)

// mixedBindings returns a small set of bindings covering every field.
func mixedBindings(env *testEnv) []Binding {
	red := gpucore.Parameter{Name: "color", Value: []float32{1, 0, 0, 1}}
	blue := gpucore.Parameter{Name: "color", Value: []float32{0, 0, 1, 1}}
	return []Binding{
		env.binding("basic.wgsl", "solid", ""),
		env.binding("basic.wgsl", "solid", "", red),
		env.binding("basic.wgsl", "solid", "", blue),
		env.binding("basic.wgsl", "textured", "atlas.png"),
		env.binding("basic.wgsl", "textured", "icons.png"),
		env.binding("glow.wgsl", "solid", "", red),
		env.binding("", "", ""),
	}
}

func TestPipelineScenarioA(t *testing.T) {
	env := newTestEnv(t)
	e1 := env.binding("basic.wgsl", "solid", "")
	e2 := env.binding("basic.wgsl", "solid", "atlas.png")

	env.pipe.Add(mustPrimitive(t, e1, quad(0)))
	env.pipe.Add(mustPrimitive(t, e1, quad(1)))
	env.pipe.Add(mustPrimitive(t, e2, quad(2)))
	env.render(t)

	batches := env.pipe.Batches()
	if len(batches) != 2 {
		t.Fatalf("batches = %d, want 2", len(batches))
	}
	if batches[0].Len() != 2 || batches[1].Len() != 1 {
		t.Errorf("batch sizes = %d, %d, want 2, 1", batches[0].Len(), batches[1].Len())
	}
	if len(env.dev.draws) != 2 || env.dev.binds != 2 {
		t.Errorf("draws=%d binds=%d, want 2/2", len(env.dev.draws), env.dev.binds)
	}
	if st := env.pipe.Stats(); st.DrawCalls != 2 || st.Primitives != 3 || st.Pending != 0 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestPipelineScenarioB(t *testing.T) {
	env := newTestEnv(t, "missing.png")
	bind := env.binding("basic.wgsl", "textured", "missing.png")
	env.pipe.Add(mustPrimitive(t, bind, quad(0)))
	env.pipe.Add(mustPrimitive(t, bind, quad(1)))

	for range 2 {
		env.render(t)
		if len(env.dev.draws) != 1 {
			t.Fatalf("draws = %d, want 1", len(env.dev.draws))
		}
		call := env.dev.draws[0]
		if call.texture != gpucore.NoTexture || call.count != 12 {
			t.Errorf("draw texture=%d count=%d, want untextured 12 vertices", call.texture, call.count)
		}
	}
	if len(env.pipe.Batches()) != 1 {
		t.Error("batch with a missing texture must stay in the pipeline")
	}
}

func TestPipelineScenarioC(t *testing.T) {
	bindingsAfter := func(env *testEnv) ([]*Primitive, map[*Primitive]string) {
		bs := mixedBindings(env)
		names := make(map[*Primitive]string)
		var prims []*Primitive
		for i := range 12 {
			p := mustPrimitive(t, bs[i%len(bs)], quad(float32(i)))
			names[p] = fmt.Sprintf("p%02d", i)
			prims = append(prims, p)
		}
		return prims, names
	}

	run := func(markDirty bool) []string {
		env := newTestEnv(t)
		prims, names := bindingsAfter(env)
		for _, p := range prims {
			env.pipe.Add(p)
		}
		env.render(t)

		// Change one primitive's binding.
		changed := prims[4]
		env.pipe.Remove(changed)
		changed.SetTexture(env.reg.Texture("other.png"))
		env.pipe.Add(changed)
		if markDirty {
			env.pipe.MarkDirty()
		}
		env.render(t)
		return partition(env.pipe.Batches(), names)
	}

	incremental, rebuilt := run(false), run(true)
	if !slices.Equal(incremental, rebuilt) {
		t.Errorf("MarkDirty changed the partition:\n incremental %v\n rebuilt     %v", incremental, rebuilt)
	}
}

func TestPipelinePartitionCorrectness(t *testing.T) {
	env := newTestEnv(t)
	bs := mixedBindings(env)
	var prims []*Primitive
	for i := range 40 {
		// Equal bindings are separate values, not shared ones.
		b := bs[(i*3)%len(bs)].Clone()
		prims = append(prims, mustPrimitive(t, b, quad(float32(i))))
	}
	for _, p := range prims {
		env.pipe.Add(p)
	}
	env.pipe.MarkDirty()
	env.render(t)

	for _, a := range prims {
		for _, b := range prims {
			same := a.Batch() == b.Batch()
			if same != a.Binding().Equal(b.Binding()) {
				t.Fatalf("same batch = %v but bindings equal = %v", same, a.Binding().Equal(b.Binding()))
			}
		}
	}
	for _, b := range env.pipe.Batches() {
		for _, m := range b.Members() {
			if !m.Binding().Equal(b.Binding()) {
				t.Fatal("member binding differs from batch binding")
			}
		}
	}
	if got := len(env.pipe.Batches()); got != len(bs) {
		t.Errorf("batches = %d, want %d", got, len(bs))
	}
}

func TestPipelineConservation(t *testing.T) {
	env := newTestEnv(t)
	bs := mixedBindings(env)
	var prims []*Primitive
	for i := range 20 {
		verts := quad(float32(i))
		if i%3 == 0 {
			verts = verts[:3]
		}
		p := mustPrimitive(t, bs[i%3], verts)
		prims = append(prims, p)
		env.pipe.Add(p)
	}
	env.render(t)
	env.pipe.Remove(prims[0])
	env.pipe.Remove(prims[5])
	env.render(t)

	for _, b := range env.pipe.Batches() {
		verts, tris := 0, 0
		for _, m := range b.Members() {
			verts += m.VertexCount()
			tris += m.PrimitiveCount()
		}
		if b.VertexCount() != verts || b.PrimitiveCount() != tris {
			t.Errorf("batch %d: totals %d/%d, members sum %d/%d",
				b.ID(), b.VertexCount(), b.PrimitiveCount(), verts, tris)
		}
	}
	var drawn uint32
	for _, d := range env.dev.draws {
		drawn += d.count
	}
	want := 0
	for _, b := range env.pipe.Batches() {
		want += b.VertexCount()
	}
	if int(drawn) != want {
		t.Errorf("drawn vertices = %d, want %d", drawn, want)
	}
}

func TestPipelineIncrementalMatchesRebuild(t *testing.T) {
	build := func(incremental bool) []string {
		env := newTestEnv(t)
		bs := mixedBindings(env)
		names := make(map[*Primitive]string)
		for i := range 30 {
			p := mustPrimitive(t, bs[(i*5)%len(bs)], quad(float32(i)))
			names[p] = fmt.Sprintf("p%02d", i)
			env.pipe.Add(p)
			if incremental {
				env.render(t)
			}
		}
		if !incremental {
			env.pipe.MarkDirty()
		}
		env.render(t)
		return partition(env.pipe.Batches(), names)
	}

	inc, full := build(true), build(false)
	if !slices.Equal(inc, full) {
		t.Errorf("partitions differ:\n incremental %v\n full        %v", inc, full)
	}
}

func TestPipelineRemovalSymmetry(t *testing.T) {
	env := newTestEnv(t)
	bs := mixedBindings(env)
	names := make(map[*Primitive]string)
	var prims []*Primitive
	for i := range 10 {
		p := mustPrimitive(t, bs[i%4], quad(float32(i)))
		names[p] = fmt.Sprintf("p%d", i)
		prims = append(prims, p)
		env.pipe.Add(p)
	}
	env.render(t)
	before := partition(env.pipe.Batches(), names)

	old := prims[3]
	env.pipe.Remove(old)
	env.render(t)
	again := mustPrimitive(t, old.Binding(), old.Vertices())
	names[again] = names[old]
	env.pipe.Add(again)
	env.render(t)

	if after := partition(env.pipe.Batches(), names); !slices.Equal(before, after) {
		t.Errorf("partition not restored:\n before %v\n after  %v", before, after)
	}
}

func TestPipelineRemoveDropsEmptyBatch(t *testing.T) {
	env := newTestEnv(t)
	p := mustPrimitive(t, env.binding("basic.wgsl", "solid", ""), quad(0))
	env.pipe.Add(p)
	env.render(t)
	buf := env.pipe.Batches()[0].Buffer()

	env.pipe.Remove(p)
	env.render(t)
	if len(env.pipe.Batches()) != 0 || len(env.dev.draws) != 0 {
		t.Fatal("empty batch was not dropped")
	}
	if _, ok := env.dev.buffers[buf]; ok {
		t.Error("dropped batch buffer not destroyed")
	}
	if p.Batch() != nil {
		t.Error("removed primitive still has an owner")
	}
}

func TestPipelineRemovePending(t *testing.T) {
	env := newTestEnv(t)
	p := mustPrimitive(t, env.binding("", "", ""), quad(0))
	env.pipe.Add(p)
	env.pipe.Remove(p)
	env.render(t)
	if st := env.pipe.Stats(); st.Primitives != 0 || st.Batches != 0 {
		t.Errorf("Stats() = %+v, want nothing placed", st)
	}
}

func TestPipelineDuplicateAdd(t *testing.T) {
	env := newTestEnv(t)
	p := mustPrimitive(t, env.binding("", "", ""), quad(0))
	env.pipe.Add(p)
	env.pipe.Add(p)
	env.render(t)
	env.pipe.Add(p)
	env.render(t)
	if b := env.pipe.Batches(); len(b) != 1 || b[0].Len() != 1 {
		t.Fatal("duplicate Add placed the primitive twice")
	}
}

func TestPipelineDeferredUntilRender(t *testing.T) {
	env := newTestEnv(t)
	env.pipe.Add(mustPrimitive(t, env.binding("", "", ""), quad(0)))
	if st := env.pipe.Stats(); st.Pending != 0 || st.Batches != 0 {
		t.Errorf("Add mutated state before Render: %+v", st)
	}
	env.render(t)
	if st := env.pipe.Stats(); st.IncrementalPasses != 1 || st.Rebuilds != 0 {
		t.Errorf("Stats() = %+v, want one incremental pass", st)
	}
}

func TestPipelineInvalidBatchRequeued(t *testing.T) {
	env := newTestEnv(t)
	good := env.binding("basic.wgsl", "solid", "")
	bad := env.binding("glow.wgsl", "solid", "")
	pg := mustPrimitive(t, good, quad(0))
	pb1 := mustPrimitive(t, bad, quad(1))
	pb2 := mustPrimitive(t, bad, quad(2))
	for _, p := range []*Primitive{pg, pb1, pb2} {
		env.pipe.Add(p)
	}

	env.render(t)
	badHandle, _ := bad.Effect.Program.Handle()
	env.dev.failDraw = func(c drawCall) bool { return c.program == badHandle.Shader }
	env.render(t)

	st := env.pipe.Stats()
	if st.InvalidatedBatches != 1 || st.Batches != 1 || st.Pending != 2 {
		t.Fatalf("Stats() = %+v, want one batch invalidated and two pending", st)
	}
	if pb1.Batch() != nil || pb2.Batch() != nil {
		t.Error("members of an invalid batch keep their owner")
	}

	// The device recovers: the re-queued members are drawn again.
	env.dev.failDraw = nil
	env.render(t)
	if len(env.dev.draws) != 2 {
		t.Fatalf("draws = %d, want 2", len(env.dev.draws))
	}
	if b := pb1.Batch(); b == nil || b != pb2.Batch() || b.Len() != 2 {
		t.Error("re-queued primitives were not placed together")
	}
}

func TestPipelineDeviceLost(t *testing.T) {
	env := newTestEnv(t)
	bind := env.binding("basic.wgsl", "solid", "atlas.png")
	env.pipe.Add(mustPrimitive(t, bind, quad(0)))
	env.render(t)
	if !bind.Texture.IsAllocated() {
		t.Fatal("texture not allocated")
	}
	loads := env.loader.loadCount("atlas.png")

	env.pipe.DeviceLost()
	if bind.Texture.IsAllocated() || bind.Effect.Program.IsAllocated() {
		t.Fatal("DeviceLost must free every asset")
	}
	env.render(t)

	if st := env.pipe.Stats(); st.Rebuilds != 1 {
		t.Errorf("Rebuilds = %d, want 1", st.Rebuilds)
	}
	if got := env.loader.loadCount("atlas.png"); got != loads+1 {
		t.Errorf("texture loads = %d, want %d", got, loads+1)
	}
	if len(env.dev.draws) != 1 || env.dev.draws[0].texture == gpucore.NoTexture {
		t.Error("frame after device loss did not draw with the reloaded texture")
	}
}

func TestPipelineRenderOrderIsCreationOrder(t *testing.T) {
	env := newTestEnv(t)
	a := env.binding("a.wgsl", "", "")
	b := env.binding("b.wgsl", "", "")
	env.pipe.Add(mustPrimitive(t, b, quad(0)))
	env.pipe.Add(mustPrimitive(t, a, quad(1)))
	env.render(t)

	batches := env.pipe.Batches()
	if batches[0].Binding().Effect.Program.Name() != "b.wgsl" {
		t.Error("batches not in creation order")
	}
	hb, _ := b.Effect.Program.Handle()
	if env.dev.draws[0].program != hb.Shader {
		t.Error("draw order differs from batch order")
	}
}

func TestPipelineSweepEvery(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	loader := newFakeLoader()
	reg := asset.NewRegistry(asset.WithClock(clock), asset.WithLoader(asset.KindTexture, loader))
	dev := newFakeDevice()
	pipe := NewPipeline(dev, WithRegistry(reg), WithSweepEvery(2))
	t.Cleanup(pipe.Close)

	stale := reg.Texture("stale.png")
	if err := stale.Allocate(context.Background()); err != nil {
		t.Fatal(err)
	}
	live := reg.Texture("live.png")
	pipe.Add(mustPrimitive(t, Binding{Texture: live}, quad(0)))

	clock.Advance(6 * time.Second)
	if err := pipe.Render(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !stale.IsAllocated() {
		t.Fatal("sweep ran on an odd frame")
	}
	if err := pipe.Render(context.Background()); err != nil {
		t.Fatal(err)
	}
	if stale.IsAllocated() {
		t.Error("idle asset survived the sweep")
	}
	if !live.IsAllocated() {
		t.Error("asset used this frame was swept")
	}
	if st := pipe.Stats(); st.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", st.Evictions)
	}
}

func TestPipelineConcurrentProducers(t *testing.T) {
	env := newTestEnv(t)
	bs := mixedBindings(env)

	const producers, each = 8, 25
	var wg sync.WaitGroup
	for g := range producers {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := range each {
				p, err := NewPrimitive(bs[(g+i)%len(bs)], TriangleList, quad(float32(i)))
				if err != nil {
					t.Error(err)
					return
				}
				env.pipe.Add(p)
			}
		}(g)
	}

	// Render concurrently with producers; every frame sees a consistent queue.
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		if err := env.pipe.Render(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	env.render(t)

	if st := env.pipe.Stats(); st.Primitives != producers*each {
		t.Errorf("Primitives = %d, want %d", st.Primitives, producers*each)
	}
	if got := len(env.pipe.Batches()); got != len(bs) {
		t.Errorf("batches = %d, want %d", got, len(bs))
	}
}

func TestPipelineClose(t *testing.T) {
	env := newTestEnv(t)
	env.pipe.Add(mustPrimitive(t, env.binding("", "", ""), quad(0)))
	env.render(t)
	buf := env.pipe.Batches()[0].Buffer()

	env.pipe.Close()
	env.pipe.Close()
	if _, ok := env.dev.buffers[buf]; ok {
		t.Error("Close left a batch buffer alive")
	}
	if err := env.pipe.Render(context.Background()); !errors.Is(err, ErrPipelineClosed) {
		t.Errorf("Render() after Close = %v, want ErrPipelineClosed", err)
	}
}

func TestPipelineCloseFreesPrivateRegistry(t *testing.T) {
	loader := newFakeLoader()
	pipe := NewPipeline(newFakeDevice())
	pipe.Registry().SetLoader(asset.KindShader, loader)
	sh := pipe.Registry().Shader("basic.wgsl")
	if err := sh.Allocate(context.Background()); err != nil {
		t.Fatal(err)
	}
	pipe.Close()
	if sh.IsAllocated() {
		t.Error("private registry assets survived Close")
	}
}

func TestPipelineRenderCanceled(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := env.pipe.Render(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Render() = %v, want context.Canceled", err)
	}
}

func TestPipelineSetLoggerPropagates(t *testing.T) {
	dev := &loggingDevice{fakeDevice: newFakeDevice()}
	pipe := NewPipeline(dev)
	t.Cleanup(pipe.Close)
	if dev.logger == nil {
		t.Error("NewPipeline did not pass its logger to the device")
	}
}

// checkMembersMatchBatch fails if any member's placement binding differs
// from the binding of the batch that owns it.
func checkMembersMatchBatch(t *testing.T, pipe *Pipeline) {
	t.Helper()
	for _, b := range pipe.Batches() {
		for _, m := range b.Members() {
			if !m.placed.Equal(b.Binding()) {
				t.Errorf("batch %d (%s) holds a member placed as %s", b.ID(), b.Binding(), m.placed)
			}
			if m.Batch() != b {
				t.Errorf("member of batch %d reports another owner", b.ID())
			}
		}
	}
}

func TestPipelineBindingSnapshotAtAdd(t *testing.T) {
	env := newTestEnv(t)
	texA, texB := env.reg.Texture("a.png"), env.reg.Texture("b.png")
	p := mustPrimitive(t, env.binding("basic.wgsl", "solid", "a.png"), quad(0))

	env.pipe.Add(p)
	p.SetTexture(texB) // after Add: not observed until a rebuild
	env.render(t)
	if b := p.Batch(); b == nil || b.Binding().Texture != texA {
		t.Fatal("primitive not placed with the binding it had at Add")
	}
	checkMembersMatchBatch(t, env.pipe)

	env.pipe.MarkDirty()
	env.render(t)
	if b := p.Batch(); b == nil || b.Binding().Texture != texB {
		t.Fatal("full rebuild did not pick up the changed binding")
	}
	checkMembersMatchBatch(t, env.pipe)
}

func TestPipelineConcurrentBindingChanges(t *testing.T) {
	env := newTestEnv(t)
	texA, texB := env.reg.Texture("a.png"), env.reg.Texture("b.png")

	prims := make([]*Primitive, 8)
	for i := range prims {
		prims[i] = mustPrimitive(t, env.binding("basic.wgsl", "solid", "a.png"), quad(float32(i)))
		env.pipe.Add(prims[i])
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}
			p := prims[i%len(prims)]
			env.pipe.Remove(p)
			if i%2 == 0 {
				p.SetTexture(texB)
			} else {
				p.SetTexture(texA)
			}
			p.SetParams(NewParameterSet(gpucore.Parameter{Name: "alpha", Value: []float32{float32(i % 3)}}))
			env.pipe.Add(p)
		}
	}()

	for i := range 200 {
		if i%3 == 0 {
			env.pipe.MarkDirty()
		}
		env.render(t)
		checkMembersMatchBatch(t, env.pipe)
	}
	close(done)
	wg.Wait()

	// Every primitive ends up placed exactly once with its final binding.
	env.pipe.MarkDirty()
	env.render(t)
	checkMembersMatchBatch(t, env.pipe)
	if st := env.pipe.Stats(); st.Primitives != len(prims) {
		t.Errorf("Primitives = %d, want %d", st.Primitives, len(prims))
	}
	for _, p := range prims {
		if b := p.Batch(); b == nil || !b.Binding().Equal(p.Binding()) {
			t.Error("primitive not placed with its final binding after rebuild")
		}
	}
}
