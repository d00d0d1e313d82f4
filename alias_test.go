package framegraph

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/gogpu/gputypes"
)

// chainGraph builds p0 -> p1 -> ... -> present over n transients of one
// class. Every transient lives for two consecutive passes.
func chainGraph(t testing.TB, n int, opts ...GraphOption) (*Graph, []ResourceID, ResourceID) {
	t.Helper()
	g := New(opts...)
	out := mustRegister(t, g, NewColor("out").Size(8, 8).External())
	ids := make([]ResourceID, n)
	for i := range ids {
		ids[i] = mustRegister(t, g, NewColor(fmt.Sprintf("t%d", i)).Size(8, 8))
	}
	g.AddPass(&testPass{name: "p0", writes: []ResourceID{ids[0]}})
	for i := 1; i < n; i++ {
		g.AddPass(&testPass{name: fmt.Sprintf("p%d", i), reads: []ResourceID{ids[i-1]}, writes: []ResourceID{ids[i]}})
	}
	g.AddPass(&testPass{name: "present", reads: []ResourceID{ids[n-1]}, writes: []ResourceID{out}})
	return g, ids, out
}

func TestAliasPingPong(t *testing.T) {
	g, ids, _ := chainGraph(t, 4)
	cg := mustCompile(t, g)

	if got := len(cg.Slots()); got != 2 {
		t.Fatalf("slots = %d, want 2 (ping-pong)", got)
	}
	wantSlot := []int{0, 1, 0, 1}
	for i, id := range ids {
		s, ok := cg.SlotOf(id)
		if !ok || s != wantSlot[i] {
			t.Errorf("SlotOf(t%d) = %d, %v; want %d", i, s, ok, wantSlot[i])
		}
	}
	iv, _ := cg.Lifetime(ids[0])
	if iv != (Interval{Start: 0, End: 2}) {
		t.Errorf("Lifetime(t0) = %v, want [0, 2)", iv)
	}

	ms := cg.MemoryStats()
	if ms.Transients != 4 || ms.Slots != 2 {
		t.Errorf("MemoryStats = %+v", ms)
	}
	if ms.Saved() != ms.Unaliased/2 {
		t.Errorf("Saved = %d, want half of %d", ms.Saved(), ms.Unaliased)
	}
}

func TestAliasDisabled(t *testing.T) {
	g, ids, _ := chainGraph(t, 4, WithAliasing(false))
	cg := mustCompile(t, g)
	if got := len(cg.Slots()); got != len(ids) {
		t.Errorf("slots = %d, want %d without aliasing", got, len(ids))
	}
	if ms := cg.MemoryStats(); ms.Saved() != 0 {
		t.Errorf("Saved = %d without aliasing", ms.Saved())
	}
}

func TestAliasExternalNeverPooled(t *testing.T) {
	g, _, out := chainGraph(t, 2)
	cg := mustCompile(t, g)
	if _, ok := cg.SlotOf(out); ok {
		t.Error("External resource was assigned a pool slot")
	}
	iv, ok := cg.Lifetime(out)
	if !ok || iv.End != cg.Len() {
		t.Errorf("External lifetime = %v, want to extend to %d", iv, cg.Len())
	}
}

func TestAliasClasses(t *testing.T) {
	g := New()
	out := mustRegister(t, g, NewColor("out").Size(8, 8).External())
	a := mustRegister(t, g, NewColor("a").Size(8, 8))
	b := mustRegister(t, g, NewColor("b").Size(8, 8).Format(gputypes.TextureFormatRGBA16Float))
	c := mustRegister(t, g, NewColor("c").Size(16, 8))
	d := mustRegister(t, g, NewColor("d").Size(8, 8).Usage(
		gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageTextureBinding|gputypes.TextureUsageCopySrc))

	g.AddPass(&testPass{name: "pa", writes: []ResourceID{a}})
	g.AddPass(&testPass{name: "pb", reads: []ResourceID{a}, writes: []ResourceID{b}})
	g.AddPass(&testPass{name: "pc", reads: []ResourceID{b}, writes: []ResourceID{c}})
	g.AddPass(&testPass{name: "pd", reads: []ResourceID{c}, writes: []ResourceID{d}})
	g.AddPass(&testPass{name: "present", reads: []ResourceID{d}, writes: []ResourceID{out}})

	cg := mustCompile(t, g)
	sa, _ := cg.SlotOf(a)
	sb, _ := cg.SlotOf(b)
	sc, _ := cg.SlotOf(c)
	sd, _ := cg.SlotOf(d)
	if sa == sb || sa == sc || sb == sc {
		t.Errorf("different format or extent shared a slot: a=%d b=%d c=%d", sa, sb, sc)
	}
	// d differs from a only by usage: same class, and a ended before d.
	if sd != sa {
		t.Errorf("SlotOf(d) = %d, want %d (usage differences alias)", sd, sa)
	}
	slot := cg.Slots()[sa]
	if !slot.Desc.Usage.Contains(gputypes.TextureUsageCopySrc) {
		t.Errorf("slot usage %#x is not the union of occupants", uint64(slot.Desc.Usage))
	}
}

func TestAliasBuffersMergeSize(t *testing.T) {
	g := New()
	out := mustRegister(t, g, NewBuffer("out").Imported())
	small := mustRegister(t, g, NewBuffer("small").Length(64))
	big := mustRegister(t, g, NewBuffer("big").Length(4096).BufferUsage(
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopySrc))

	g.AddPass(&testPass{name: "a", typ: PassCompute, writes: []ResourceID{small}})
	g.AddPass(&testPass{name: "b", typ: PassCompute, reads: []ResourceID{small}, writes: []ResourceID{out}})
	g.AddPass(&testPass{name: "c", typ: PassCompute, writes: []ResourceID{big}})
	g.AddPass(&testPass{name: "d", typ: PassCompute, reads: []ResourceID{big}, rw: []ResourceID{out}})

	cg := mustCompile(t, g)
	slots := cg.Slots()
	if len(slots) != 1 {
		t.Fatalf("slots = %d, want 1", len(slots))
	}
	s := slots[0]
	if s.Desc.Size != 4096 {
		t.Errorf("slot size = %d, want 4096", s.Desc.Size)
	}
	want := gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc
	if s.Desc.BufferUsage != want {
		t.Errorf("slot usage = %#x, want %#x", uint64(s.Desc.BufferUsage), uint64(want))
	}
	if len(s.Occupants) != 2 || s.Occupants[0] != small || s.Occupants[1] != big {
		t.Errorf("occupants = %v, want [small big]", s.Occupants)
	}

	bs := cg.Barriers(cg.Order()[2])
	if len(bs) != 1 || bs[0].Kind != KindBuffer || bs[0].From != small || bs[0].To != big {
		t.Errorf("barriers before c = %+v", bs)
	}
}

func TestAliasBarrierPlacement(t *testing.T) {
	g, ids, _ := chainGraph(t, 3)
	cg := mustCompile(t, g)

	// t2 takes over t0's slot at p2.
	order := cg.Order()
	for i, id := range order {
		bs := cg.Barriers(id)
		if i != 2 {
			if len(bs) != 0 {
				t.Errorf("unexpected barriers before %s: %+v", cg.PassName(id), bs)
			}
			continue
		}
		if len(bs) != 1 {
			t.Fatalf("barriers before p2 = %+v, want 1", bs)
		}
		b := bs[0]
		if b.From != ids[0] || b.To != ids[2] || b.Slot != 0 {
			t.Errorf("barrier = %+v, want t0 -> t2 in slot 0", b)
		}
		if b.OldUsage != gputypes.TextureUsageTextureBinding || b.NewUsage != gputypes.TextureUsageRenderAttachment {
			t.Errorf("barrier usage %#x -> %#x, want TextureBinding -> RenderAttachment",
				uint64(b.OldUsage), uint64(b.NewUsage))
		}
	}
}

func TestVerifySlotsRejectsOverlap(t *testing.T) {
	g := New()
	a := mustRegister(t, g, NewColor("a").Size(8, 8))
	b := mustRegister(t, g, NewColor("b").Size(8, 8))
	c := mustRegister(t, g, NewColor("c").Size(8, 8).Format(gputypes.TextureFormatRGBA16Float))
	desc, _ := g.Lookup(a)

	overlap := []Slot{{
		Index:     0,
		Desc:      desc,
		Occupants: []ResourceID{a, b},
		Intervals: []Interval{{0, 3}, {2, 4}},
	}}
	if err := verifySlots(overlap, g.res); !errors.Is(err, ErrIncompatibleAlias) {
		t.Errorf("verifySlots(overlap) = %v, want ErrIncompatibleAlias", err)
	}

	mismatch := []Slot{{
		Index:     0,
		Desc:      desc,
		Occupants: []ResourceID{a, c},
		Intervals: []Interval{{0, 1}, {1, 2}},
	}}
	if err := verifySlots(mismatch, g.res); !errors.Is(err, ErrIncompatibleAlias) {
		t.Errorf("verifySlots(mismatch) = %v, want ErrIncompatibleAlias", err)
	}

	ok := []Slot{{
		Index:     0,
		Desc:      desc,
		Occupants: []ResourceID{a, b},
		Intervals: []Interval{{0, 2}, {2, 4}},
	}}
	if err := verifySlots(ok, g.res); err != nil {
		t.Errorf("verifySlots(adjacent) = %v", err)
	}
}

func TestIntervalOverlaps(t *testing.T) {
	tests := []struct {
		a, b Interval
		want bool
	}{
		{Interval{0, 2}, Interval{2, 4}, false},
		{Interval{0, 3}, Interval{2, 4}, true},
		{Interval{1, 2}, Interval{0, 5}, true},
		{Interval{3, 4}, Interval{0, 3}, false},
	}
	for _, tt := range tests {
		if got := tt.a.Overlaps(tt.b); got != tt.want {
			t.Errorf("%v.Overlaps(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
		if got := tt.b.Overlaps(tt.a); got != tt.want {
			t.Errorf("%v.Overlaps(%v) = %v, want %v", tt.b, tt.a, got, tt.want)
		}
	}
}

// TestAliasRandomGraphs checks the aliasing invariants on random DAGs:
// occupants of one slot share a class, never overlap, and every transient
// used by a survivor has exactly one slot.
func TestAliasRandomGraphs(t *testing.T) {
	formats := []gputypes.TextureFormat{
		gputypes.TextureFormatRGBA8Unorm,
		gputypes.TextureFormatRGBA16Float,
	}
	for seed := range uint64(50) {
		rng := rand.New(rand.NewPCG(seed, 0x5eed))
		g := New()
		out := mustRegister(t, g, NewColor("out").Size(64, 64).External())

		var produced []ResourceID
		passes := 4 + rng.IntN(12)
		for i := range passes {
			p := &testPass{name: fmt.Sprintf("p%d", i)}
			for range rng.IntN(3) {
				if len(produced) > 0 {
					p.reads = append(p.reads, produced[rng.IntN(len(produced))])
				}
			}
			size := uint32(32 << rng.IntN(2))
			id := mustRegister(t, g, NewColor(fmt.Sprintf("r%d", i)).
				Size(size, size).Format(formats[rng.IntN(len(formats))]))
			p.writes = []ResourceID{id}
			if rng.IntN(4) == 0 || i == passes-1 {
				p.writes = append(p.writes, out)
			}
			produced = append(produced, id)
			g.AddPass(p)
		}

		cg := mustCompile(t, g)
		seen := make(map[ResourceID]bool)
		for _, s := range cg.Slots() {
			cls := classOf(s.Desc)
			for k, id := range s.Occupants {
				if seen[id] {
					t.Fatalf("seed %d: %v in two slots", seed, id)
				}
				seen[id] = true
				d, _ := g.Lookup(id)
				if classOf(d) != cls {
					t.Fatalf("seed %d: %v class mismatch in slot %d", seed, id, s.Index)
				}
				for j := range k {
					if s.Intervals[j].Overlaps(s.Intervals[k]) {
						t.Fatalf("seed %d: slot %d occupants %v and %v overlap", seed, s.Index, s.Occupants[j], id)
					}
				}
			}
		}
		for _, id := range cg.Resources() {
			if cg.LifetimeOf(id) == Transient && !seen[id] {
				t.Fatalf("seed %d: transient %v has no slot", seed, id)
			}
		}
	}
}
