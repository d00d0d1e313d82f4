package framegraph

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/gogpu/gputypes"
)

// TestSceneTonemapBloom is the reference frame: an HDR scene with depth,
// tonemapped into the swapchain, and a bloom pass that only survives while
// tonemap reads its output.
func TestSceneTonemapBloom(t *testing.T) {
	g := New()
	dev := newNoopDevice(t)

	hdr := mustRegister(t, g, NewColor("hdr_color").
		Format(gputypes.TextureFormatRGBA16Float).
		Size(1920, 1080))
	depth := mustRegister(t, g, NewDepth("depth").Size(1920, 1080).ClearDepth(1))
	swapchain := bindSwapchain(t, g, dev, 1920, 1080)
	bloom := mustRegister(t, g, NewColor("bloom").
		Format(gputypes.TextureFormatRGBA16Float).
		Size(1920, 1080))

	scene := g.AddPass(&testPass{name: "Scene", writes: []ResourceID{hdr, depth}})
	tm := &testPass{name: "Tonemap", reads: []ResourceID{hdr}, writes: []ResourceID{swapchain}}
	tonemap := g.AddPass(tm)

	cg := mustCompile(t, g)
	if got := cg.Names(); !slices.Equal(got, []string{"Scene", "Tonemap"}) {
		t.Fatalf("order = %v, want [Scene Tonemap]", got)
	}
	if op, _ := cg.Ops(scene, depth); op.Store != StoreDiscard || op.Load != LoadClear {
		t.Errorf("depth ops = %v/%v, want Clear/Discard", op.Load, op.Store)
	}
	if op, _ := cg.Ops(scene, hdr); op.Store != StoreStore {
		t.Errorf("hdr_color store = %v, want Store", op.Store)
	}
	if op, _ := cg.Ops(tonemap, swapchain); op.Store != StoreStore {
		t.Errorf("swapchain store = %v, want Store", op.Store)
	}

	bp := &testPass{name: "Bloom", reads: []ResourceID{hdr}, writes: []ResourceID{bloom}}
	g.AddPass(bp)
	cg = mustCompile(t, g)
	if got := cg.Names(); !slices.Equal(got, []string{"Scene", "Tonemap"}) {
		t.Errorf("order with unread bloom = %v, want [Scene Tonemap]", got)
	}
	if got := cg.CulledNames(); !slices.Equal(got, []string{"Bloom"}) {
		t.Errorf("culled = %v, want [Bloom]", got)
	}

	// Bloom is declared after Tonemap but still runs first once read.
	tm.reads = []ResourceID{hdr, bloom}
	cg = mustCompile(t, g)
	if got := cg.Names(); !slices.Equal(got, []string{"Scene", "Bloom", "Tonemap"}) {
		t.Errorf("order with bloom = %v, want [Scene Bloom Tonemap]", got)
	}

	cmds, err := g.Render(dev)
	if err != nil {
		t.Fatalf("Render() = %v", err)
	}
	if len(cmds) != 3 {
		t.Errorf("command buffers = %d, want 3", len(cmds))
	}
	dev.Release(cmds)

	// A window resize invalidates the plan until it is recompiled.
	stale := g.Compiled()
	for _, id := range []ResourceID{hdr, depth, bloom, swapchain} {
		if err := g.Resize(id, 1280, 720); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := g.ExecuteCompiled(stale, dev); !errors.Is(err, ErrStaleGraph) {
		t.Errorf("ExecuteCompiled(stale) = %v, want ErrStaleGraph", err)
	}
	tex, view := createTexture(t, dev, 1280, 720)
	if err := g.BindTexture(swapchain, tex, view); err != nil {
		t.Fatal(err)
	}
	cmds, err = g.Render(dev)
	if err != nil {
		t.Fatalf("Render() after resize = %v", err)
	}
	dev.Release(cmds)
}

// TestTransitiveCull tests that a pass feeding only a culled pass is
// culled too.
func TestTransitiveCull(t *testing.T) {
	g := New()
	out := mustRegister(t, g, NewColor("out").External())
	hdr := mustRegister(t, g, NewColor("hdr"))
	a := mustRegister(t, g, NewColor("a"))
	b := mustRegister(t, g, NewColor("b"))

	g.AddPass(&testPass{name: "scene", writes: []ResourceID{hdr}})
	g.AddPass(&testPass{name: "prefilter", writes: []ResourceID{a}})
	g.AddPass(&testPass{name: "effect", reads: []ResourceID{a}, writes: []ResourceID{b}})
	c := &testPass{name: "composite", reads: []ResourceID{hdr, b}, writes: []ResourceID{out}}
	g.AddPass(c)

	if got := mustCompile(t, g).Names(); len(got) != 4 {
		t.Fatalf("order = %v, want all four passes", got)
	}
	c.reads = []ResourceID{hdr}
	cg := mustCompile(t, g)
	if got := cg.CulledNames(); !slices.Equal(got, []string{"prefilter", "effect"}) {
		t.Errorf("culled = %v, want [prefilter effect]", got)
	}
}

// TestWritesPrecedeReads checks on random acyclic graphs that every
// surviving reader runs after the writer it observes, that writers of one
// resource keep declaration order, and that compiling twice gives the
// same order.
func TestWritesPrecedeReads(t *testing.T) {
	for seed := range uint64(100) {
		rng := rand.New(rand.NewPCG(seed, 7))
		g := New()
		out := mustRegister(t, g, NewColor("out").External())
		res := []ResourceID{out}
		for i := range 1 + rng.IntN(6) {
			res = append(res, mustRegister(t, g, NewColor(fmt.Sprintf("r%d", i))))
		}

		// Pass i reads only resources written by passes before it, so the
		// declaration is acyclic by construction.
		written := make(map[ResourceID]bool)
		for i := range 2 + rng.IntN(10) {
			p := &testPass{name: fmt.Sprintf("p%d", i)}
			for _, id := range res[1:] {
				if written[id] && rng.IntN(3) == 0 {
					p.reads = append(p.reads, id)
				}
			}
			for _, id := range res {
				if rng.IntN(4) == 0 && !slices.Contains(p.reads, id) {
					p.writes = append(p.writes, id)
				}
			}
			for _, id := range p.writes {
				written[id] = true
			}
			g.AddPass(p)
		}

		if err := g.Compile(); err != nil {
			t.Fatalf("seed %d: Compile() = %v", seed, err)
		}
		cg := g.Compiled()
		pos := make(map[PassID]int)
		for i, id := range cg.Order() {
			pos[id] = i
		}
		for _, e := range cg.Edges() {
			if pos[e.From] >= pos[e.To] {
				t.Fatalf("seed %d: %s reads %s from %s which runs later",
					seed, cg.PassName(e.To), cg.Label(e.Resource), cg.PassName(e.From))
			}
		}
		for _, r := range cg.Resources() {
			last := -1
			for _, id := range cg.Order() {
				if !slices.Contains(cg.Writes(id), r) {
					continue
				}
				if int(id) < last {
					t.Fatalf("seed %d: writers of %s out of declaration order", seed, cg.Label(r))
				}
				last = int(id)
			}
		}

		again, err := compile(compileInput{decls: mustGather(t, g), reg: g.res, aliasing: true, topology: g.topoGen})
		if err != nil {
			t.Fatalf("seed %d: recompile = %v", seed, err)
		}
		if !slices.Equal(again.Order(), cg.Order()) {
			t.Fatalf("seed %d: order not deterministic: %v vs %v", seed, again.Order(), cg.Order())
		}
	}
}

func mustGather(t *testing.T, g *Graph) []passDecl {
	t.Helper()
	decls, err := gather(&g.passes, g.res)
	if err != nil {
		t.Fatal(err)
	}
	return decls
}
