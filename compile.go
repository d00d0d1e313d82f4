package framegraph

import (
	"container/heap"
	"slices"
)

// access is one pass's merged declaration for one resource.
type access struct {
	res   ResourceID
	read  bool
	write bool
}

// passDecl is the snapshot of one pass's declarations for a single compile.
type passDecl struct {
	id     PassID
	name   string
	typ    PassType
	access []access
}

// gather queries every live pass for its current declarations, in
// declaration order. Duplicate ids are merged; an id both read and written
// is a read-modify-write access.
func gather(passes *passArena, reg *registry) ([]passDecl, error) {
	decls := make([]passDecl, 0, passes.live)
	for i, p := range passes.slots {
		if p == nil {
			continue
		}
		d := passDecl{id: PassID(i), name: p.Name(), typ: passType(p)}
		if t, ok := p.(Toggler); ok && !t.Enabled() {
			decls = append(decls, d)
			continue
		}

		index := make(map[ResourceID]int)
		add := func(ids []ResourceID, read, write bool) error {
			for _, id := range ids {
				if _, ok := reg.entries[id]; !ok {
					return &UnknownResourceError{Pass: d.name, Resource: id}
				}
				if j, ok := index[id]; ok {
					d.access[j].read = d.access[j].read || read
					d.access[j].write = d.access[j].write || write
					continue
				}
				index[id] = len(d.access)
				d.access = append(d.access, access{res: id, read: read, write: write})
			}
			return nil
		}
		if err := add(p.Reads(), true, false); err != nil {
			return nil, err
		}
		if err := add(p.Writes(), false, true); err != nil {
			return nil, err
		}
		if rw, ok := p.(ReadWriter); ok {
			if err := add(rw.ReadWrites(), true, true); err != nil {
				return nil, err
			}
		}
		decls = append(decls, d)
	}
	return decls, nil
}

// compileInput is everything a compile depends on.
type compileInput struct {
	decls    []passDecl
	reg      *registry
	aliasing bool
	topology uint64
}

// compile turns a declaration snapshot into a CompiledGraph. Decl indices
// (positions in in.decls) are used throughout; they follow declaration
// order, which is the deterministic tie-break for everything below.
func compile(in compileInput) (*CompiledGraph, error) {
	decls, reg := in.decls, in.reg
	n := len(decls)

	writers := make(map[ResourceID][]int)
	for i, d := range decls {
		for _, a := range d.access {
			if a.write {
				writers[a.res] = append(writers[a.res], i)
			}
		}
	}

	// Producer of every read: nearest writer declared before the reader,
	// else the earliest writer declared after it.
	producers := make([]map[ResourceID]int, n)
	type missingRead struct {
		pass int
		res  ResourceID
	}
	var missing []missingRead
	for i, d := range decls {
		for _, a := range d.access {
			if !a.read {
				continue
			}
			w, ok := producerOf(writers[a.res], i)
			if !ok {
				if reg.entries[a.res].lifetime == Transient {
					missing = append(missing, missingRead{pass: i, res: a.res})
				}
				continue
			}
			if producers[i] == nil {
				producers[i] = make(map[ResourceID]int)
			}
			producers[i][a.res] = w
		}
	}

	live := cull(decls, producers, reg)

	for _, m := range missing {
		if live[m.pass] {
			return nil, &MissingProducerError{Pass: decls[m.pass].name, Resource: reg.entries[m.res].label()}
		}
	}

	g := newDepGraph(n, live)
	var edges []Edge
	for i, d := range decls {
		if !live[i] {
			continue
		}
		for _, a := range d.access {
			if w, ok := producers[i][a.res]; ok {
				g.add(w, i)
				edges = append(edges, Edge{From: decls[w].id, To: d.id, Resource: a.res})
			}
		}
	}

	// Writers of one resource run in declaration order, and every reader of
	// a version runs before the next writer replaces it.
	liveWriters := make(map[ResourceID][]int, len(writers))
	for _, res := range sortedIDs(writers) {
		var lw []int
		for _, w := range writers[res] {
			if live[w] {
				lw = append(lw, w)
			}
		}
		for k := 1; k < len(lw); k++ {
			g.add(lw[k-1], lw[k])
		}
		liveWriters[res] = lw
	}
	for i, d := range decls {
		if !live[i] {
			continue
		}
		for _, a := range d.access {
			w, ok := producers[i][a.res]
			if !ok {
				continue
			}
			lw := liveWriters[a.res]
			if k := slices.Index(lw, w); k >= 0 && k+1 < len(lw) {
				g.add(i, lw[k+1])
			}
		}
	}

	order, cycle := g.sort()
	if cycle != nil {
		names := make([]string, len(cycle))
		for k, i := range cycle {
			names[k] = decls[i].name
		}
		return nil, &CycleError{Passes: names}
	}

	cg := &CompiledGraph{
		order:    make([]PassID, len(order)),
		names:    make(map[PassID]string, n),
		types:    make(map[PassID]PassType, len(order)),
		access:   make(map[PassID][]access, len(order)),
		edges:    edges,
		versions: make(map[ResourceID]uint64),
		labels:   make(map[ResourceID]string),
		kinds:    make(map[ResourceID]ResourceKind),
		lifetime: make(map[ResourceID]Lifetime),
		bytes:    make(map[ResourceID]uint64),
		topology: in.topology,
	}
	for i, d := range decls {
		cg.names[d.id] = d.name
		if !live[i] {
			cg.culled = append(cg.culled, d.id)
		}
	}
	for oi, di := range order {
		d := decls[di]
		cg.order[oi] = d.id
		cg.types[d.id] = d.typ
		cg.access[d.id] = d.access
		for _, a := range d.access {
			e := reg.entries[a.res]
			cg.versions[a.res] = e.version
			cg.labels[a.res] = e.label()
			cg.kinds[a.res] = e.desc.Kind
			cg.lifetime[a.res] = e.lifetime
			cg.bytes[a.res] = e.desc.Bytes()
		}
	}

	lv, err := computeLiveness(order, decls, reg)
	if err != nil {
		return nil, err
	}
	cg.intervals = lv.intervals

	cg.slots, cg.slotOf = assignSlots(lv, reg, in.aliasing)
	if err := verifySlots(cg.slots, reg); err != nil {
		return nil, err
	}
	cg.barriers = aliasBarriers(cg.slots, cg.order, lv)
	cg.ops = computeOps(order, decls, producers, reg)
	return cg, nil
}

// producerOf picks the writer a reader at decl index i observes.
// ws is sorted ascending and may contain i itself (read-modify-write),
// which is never its own producer.
func producerOf(ws []int, i int) (int, bool) {
	prev, next := -1, -1
	for _, w := range ws {
		switch {
		case w < i:
			prev = w
		case w > i && next < 0:
			next = w
		}
	}
	if prev >= 0 {
		return prev, true
	}
	if next >= 0 {
		return next, true
	}
	return 0, false
}

// cull marks every pass that contributes to an External or Imported
// resource, walking producer edges backward from their writers.
func cull(decls []passDecl, producers []map[ResourceID]int, reg *registry) []bool {
	live := make([]bool, len(decls))
	var stack []int
	for i, d := range decls {
		for _, a := range d.access {
			if a.write && reg.entries[a.res].lifetime != Transient {
				live[i] = true
				stack = append(stack, i)
				break
			}
		}
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, w := range producers[i] {
			if !live[w] {
				live[w] = true
				stack = append(stack, w)
			}
		}
	}
	return live
}

func sortedIDs[V any](m map[ResourceID]V) []ResourceID {
	ids := make([]ResourceID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// depGraph is the dependency relation among surviving passes.
type depGraph struct {
	live  []bool
	succ  [][]int
	indeg []int
	seen  map[[2]int]struct{}
}

func newDepGraph(n int, live []bool) *depGraph {
	return &depGraph{
		live:  live,
		succ:  make([][]int, n),
		indeg: make([]int, n),
		seen:  make(map[[2]int]struct{}),
	}
}

func (g *depGraph) add(from, to int) {
	if from == to || !g.live[from] || !g.live[to] {
		return
	}
	key := [2]int{from, to}
	if _, dup := g.seen[key]; dup {
		return
	}
	g.seen[key] = struct{}{}
	g.succ[from] = append(g.succ[from], to)
	g.indeg[to]++
}

// sort is Kahn's algorithm with the lowest ready decl index first. When
// the relation is cyclic it returns one cycle instead of an order.
func (g *depGraph) sort() (order, cycle []int) {
	indeg := slices.Clone(g.indeg)
	ready := &intHeap{}
	total := 0
	for i, ok := range g.live {
		if !ok {
			continue
		}
		total++
		if indeg[i] == 0 {
			heap.Push(ready, i)
		}
	}

	order = make([]int, 0, total)
	for ready.Len() > 0 {
		i := heap.Pop(ready).(int)
		order = append(order, i)
		for _, j := range g.succ[i] {
			indeg[j]--
			if indeg[j] == 0 {
				heap.Push(ready, j)
			}
		}
	}
	if len(order) == total {
		return order, nil
	}

	remaining := make([]bool, len(g.live))
	for i, ok := range g.live {
		remaining[i] = ok && indeg[i] > 0
	}
	return nil, g.findCycle(remaining)
}

// findCycle returns a cycle among the remaining nodes as decl indices,
// first node repeated last.
func (g *depGraph) findCycle(remaining []bool) []int {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]uint8, len(remaining))
	var stack []int

	var dfs func(i int) []int
	dfs = func(i int) []int {
		state[i] = visiting
		stack = append(stack, i)
		for _, j := range g.succ[i] {
			if !remaining[j] {
				continue
			}
			switch state[j] {
			case visiting:
				pos := slices.Index(stack, j)
				cycle := append([]int(nil), stack[pos:]...)
				return append(cycle, j)
			case unvisited:
				if c := dfs(j); c != nil {
					return c
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[i] = done
		return nil
	}

	for i, ok := range remaining {
		if ok && state[i] == unvisited {
			if c := dfs(i); c != nil {
				return c
			}
		}
	}
	var stuck []int
	for i, ok := range remaining {
		if ok {
			stuck = append(stuck, i)
		}
	}
	return stuck
}

// intHeap is a min-heap of decl indices.
type intHeap []int

func (h intHeap) Len() int           { return len(h) }
func (h intHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intHeap) Push(x any)        { *h = append(*h, x.(int)) }

func (h *intHeap) Pop() any {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}
