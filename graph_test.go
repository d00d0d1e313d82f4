package framegraph

import (
	"errors"
	"slices"
	"testing"
)

func TestGraphDirty(t *testing.T) {
	g := New()
	if !g.Dirty() {
		t.Error("new graph is not dirty")
	}
	out := mustRegister(t, g, NewColor("out").External())
	g.AddPass(&testPass{name: "draw", writes: []ResourceID{out}})
	mustCompile(t, g)
	if g.Dirty() {
		t.Error("graph dirty after compile")
	}

	desc, _ := g.Lookup(out)
	if err := g.Update(out, desc); err != nil {
		t.Fatal(err)
	}
	if g.Dirty() {
		t.Error("identical Update marked the graph dirty")
	}
	if err := g.Resize(out, 4, 4); err != nil {
		t.Fatal(err)
	}
	if !g.Dirty() {
		t.Error("Resize did not mark the graph dirty")
	}
	mustCompile(t, g)

	// A resource no pass references leaves the plan unchanged, but the
	// compile still settles the graph.
	mustRegister(t, g, NewColor("unused"))
	if !g.Dirty() {
		t.Error("Register did not mark the graph dirty")
	}
	mustCompile(t, g)
	if g.Dirty() {
		t.Error("graph dirty after a compile that reused the plan")
	}
}

// TestPlanCacheToggle tests that switching a feature off and back on
// reuses the plan compiled the first time.
func TestPlanCacheToggle(t *testing.T) {
	g := New()
	out := mustRegister(t, g, NewColor("out").External())
	hdr := mustRegister(t, g, NewColor("hdr"))
	bloom := mustRegister(t, g, NewColor("bloom"))

	g.AddPass(&testPass{name: "scene", writes: []ResourceID{hdr}})
	bp := &testPass{name: "bloom", reads: []ResourceID{hdr}, writes: []ResourceID{bloom}}
	g.AddPass(bp)
	tm := &testPass{name: "tonemap", reads: []ResourceID{hdr, bloom}, writes: []ResourceID{out}}
	g.AddPass(tm)

	on := mustCompile(t, g)

	tm.reads = []ResourceID{hdr}
	off := mustCompile(t, g)
	if off == on {
		t.Fatal("changed declarations reused the old plan")
	}
	if got := off.CulledNames(); !slices.Equal(got, []string{"bloom"}) {
		t.Errorf("culled = %v, want [bloom]", got)
	}

	tm.reads = []ResourceID{hdr, bloom}
	again := mustCompile(t, g)
	if again != on {
		t.Error("toggling back did not reuse the cached plan")
	}
	st := g.Stats()
	if st.Compiles != 2 || st.PlanHits != 1 || st.CachedPlans != 2 {
		t.Errorf("Stats = %+v, want 2 compiles, 1 hit, 2 cached", st)
	}

	// Unchanged declarations touch neither the compiler nor the cache.
	mustCompile(t, g)
	if st := g.Stats(); st.Compiles != 2 || st.PlanHits != 1 {
		t.Errorf("no-op Compile changed stats: %+v", st)
	}
}

func TestPlanCacheDisabled(t *testing.T) {
	g := New(WithCompileCache(0))
	out := mustRegister(t, g, NewColor("out").External())
	p := &testPass{name: "draw", writes: []ResourceID{out}}
	g.AddPass(p)

	mustCompile(t, g)
	p.disabled = true
	mustCompile(t, g)
	p.disabled = false
	mustCompile(t, g)

	if st := g.Stats(); st.Compiles != 3 || st.PlanHits != 0 || st.CachedPlans != 0 {
		t.Errorf("Stats = %+v, want 3 compiles and no cache", st)
	}
}

func TestRemovePass(t *testing.T) {
	g := New()
	out := mustRegister(t, g, NewColor("out").External())
	a := g.AddPass(&testPass{name: "a", writes: []ResourceID{out}})
	b := g.AddPass(&testPass{name: "b", writes: []ResourceID{out}})
	mustCompile(t, g)

	if !g.RemovePass(a) {
		t.Fatal("RemovePass(a) = false")
	}
	if g.RemovePass(a) {
		t.Error("second RemovePass(a) = true")
	}
	if _, ok := g.Pass(a); ok {
		t.Error("removed pass still reachable")
	}
	if g.PassCount() != 1 {
		t.Errorf("PassCount() = %d, want 1", g.PassCount())
	}

	c := g.AddPass(&testPass{name: "c", writes: []ResourceID{out}})
	if c == a || c == b {
		t.Errorf("pass id %v reused", c)
	}
	cg := mustCompile(t, g)
	if got := cg.Names(); !slices.Equal(got, []string{"b", "c"}) {
		t.Errorf("order = %v, want [b c]", got)
	}
}

func TestPassAs(t *testing.T) {
	g := New()
	id := g.AddPass(&testPass{name: "custom"})
	fid := g.AddPass(&FuncPass{Label: "func"})

	p, ok := PassAs[*testPass](g, id)
	if !ok || p.name != "custom" {
		t.Errorf("PassAs[*testPass] = %v, %v", p, ok)
	}
	if _, ok := PassAs[*testPass](g, fid); ok {
		t.Error("PassAs matched the wrong type")
	}
	if _, ok := PassAs[*FuncPass](g, PassID(99)); ok {
		t.Error("PassAs matched an unknown id")
	}
}

func TestFuncPass(t *testing.T) {
	g := New()
	dev := newNoopDevice(t)
	out := bindSwapchain(t, g, dev, 8, 8)
	buf := mustRegister(t, g, NewBuffer("counts").Imported())
	if err := g.BindBuffer(buf, &fakeBuffer{n: 1}); err != nil {
		t.Fatal(err)
	}

	var sawBuffer bool
	g.AddPass(&FuncPass{
		Label:    "count",
		Kind:     PassCompute,
		WriteIDs: []ResourceID{buf},
		Fn: func(ctx *PassContext) error {
			b, err := ctx.Buffer(buf)
			sawBuffer = err == nil && b != nil
			return err
		},
	})
	g.AddPass(&FuncPass{Label: "blend", ReadIDs: []ResourceID{buf}, RWIDs: []ResourceID{out}})

	cmds, err := g.Render(dev)
	if err != nil {
		t.Fatalf("Render() = %v", err)
	}
	dev.Release(cmds)
	if !sawBuffer {
		t.Error("FuncPass did not see its bound buffer")
	}
	cg := g.Compiled()
	if cg.Type(cg.Order()[0]) != PassCompute {
		t.Error("FuncPass.Kind ignored")
	}
	if got := cg.Reads(cg.Order()[1]); len(got) != 2 {
		t.Errorf("Reads(blend) = %v, want buffer and read-write target", got)
	}
}

func TestRenderRefusesAfterFailedCompile(t *testing.T) {
	g := New()
	dev := newNoopDevice(t)
	out := bindSwapchain(t, g, dev, 8, 8)
	tmp := mustRegister(t, g, NewColor("tmp"))
	p := &testPass{name: "draw", writes: []ResourceID{out}}
	g.AddPass(p)

	cmds, err := g.Render(dev)
	if err != nil {
		t.Fatal(err)
	}
	dev.Release(cmds)

	p.reads = []ResourceID{tmp}
	if _, err := g.Render(dev); !errors.Is(err, ErrMissingProducer) {
		t.Fatalf("Render() = %v, want ErrMissingProducer", err)
	}
}

// TestExecuteRefusesAfterFailedCompile tests that Execute does not fall
// back to the last good plan once a compile has failed, and runs again
// after the declarations are fixed.
func TestExecuteRefusesAfterFailedCompile(t *testing.T) {
	g := New()
	dev := newNoopDevice(t)
	out := bindSwapchain(t, g, dev, 8, 8)
	a := mustRegister(t, g, NewColor("a"))
	b := mustRegister(t, g, NewColor("b"))
	p1 := &testPass{name: "p1", writes: []ResourceID{a}}
	p2 := &testPass{name: "p2", reads: []ResourceID{a}, writes: []ResourceID{b}}
	p3 := &testPass{name: "p3", reads: []ResourceID{b}, writes: []ResourceID{out}}
	g.AddPass(p1)
	g.AddPass(p2)
	g.AddPass(p3)

	cmds, err := g.Render(dev)
	if err != nil {
		t.Fatal(err)
	}
	dev.Release(cmds)

	p1.reads = []ResourceID{b}
	if err := g.Compile(); !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("Compile() = %v, want ErrCycleDetected", err)
	}
	cmds, err = g.Execute(dev)
	if !errors.Is(err, ErrNotCompiled) || !errors.Is(err, ErrCycleDetected) {
		t.Errorf("Execute() after failed compile = %v, want ErrNotCompiled wrapping ErrCycleDetected", err)
	}
	if cmds != nil {
		t.Errorf("Execute() after failed compile returned %d command buffers", len(cmds))
	}
	if p1.executed != 1 {
		t.Errorf("p1 executed %d times, want 1", p1.executed)
	}

	p1.reads = nil
	if err := g.Compile(); err != nil {
		t.Fatalf("Compile() after fix = %v", err)
	}
	cmds, err = g.Execute(dev)
	if err != nil {
		t.Fatalf("Execute() after fix = %v", err)
	}
	dev.Release(cmds)
}
