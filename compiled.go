package framegraph

import "slices"

// Edge is a data dependency between two surviving passes: To reads the
// version of Resource that From wrote.
type Edge struct {
	From     PassID
	To       PassID
	Resource ResourceID
}

// CompiledGraph is the immutable result of one compile: the surviving pass
// order, the transient pool layout and every attachment's load/store ops.
// It stays valid until a resource it references changes version or the
// pass set changes; Execute checks both.
type CompiledGraph struct {
	order    []PassID
	culled   []PassID
	names    map[PassID]string
	types    map[PassID]PassType
	access   map[PassID][]access
	edges    []Edge
	topology uint64

	versions map[ResourceID]uint64
	labels   map[ResourceID]string
	kinds    map[ResourceID]ResourceKind
	lifetime map[ResourceID]Lifetime
	bytes    map[ResourceID]uint64

	intervals map[ResourceID]Interval
	slots     []Slot
	slotOf    map[ResourceID]int
	barriers  map[PassID][]AliasBarrier
	ops       map[opKey]AttachmentOps
}

// Order returns the surviving passes in execution order.
func (cg *CompiledGraph) Order() []PassID { return slices.Clone(cg.order) }

// Names returns the names of the surviving passes in execution order.
func (cg *CompiledGraph) Names() []string {
	names := make([]string, len(cg.order))
	for i, id := range cg.order {
		names[i] = cg.names[id]
	}
	return names
}

// Culled returns the passes dropped because they contribute to no
// External or Imported resource, in declaration order.
func (cg *CompiledGraph) Culled() []PassID { return slices.Clone(cg.culled) }

// CulledNames returns the names of the culled passes.
func (cg *CompiledGraph) CulledNames() []string {
	names := make([]string, len(cg.culled))
	for i, id := range cg.culled {
		names[i] = cg.names[id]
	}
	return names
}

// Len returns the number of surviving passes.
func (cg *CompiledGraph) Len() int { return len(cg.order) }

// PassName returns the name a pass had when the graph was compiled.
func (cg *CompiledGraph) PassName(id PassID) string { return cg.names[id] }

// Type returns the pass type of a surviving pass.
func (cg *CompiledGraph) Type(id PassID) PassType { return cg.types[id] }

// Edges returns the data dependencies among surviving passes.
func (cg *CompiledGraph) Edges() []Edge { return slices.Clone(cg.edges) }

// Resources returns every resource touched by a surviving pass, by id.
func (cg *CompiledGraph) Resources() []ResourceID { return sortedIDs(cg.versions) }

// Label returns a resource's label as of compile time.
func (cg *CompiledGraph) Label(id ResourceID) string { return cg.labels[id] }

// Version returns the resource version the graph was compiled against.
func (cg *CompiledGraph) Version(id ResourceID) (uint64, bool) {
	v, ok := cg.versions[id]
	return v, ok
}

// LifetimeOf returns a resource's lifetime category.
func (cg *CompiledGraph) LifetimeOf(id ResourceID) Lifetime { return cg.lifetime[id] }

// Kind returns a resource's kind.
func (cg *CompiledGraph) Kind(id ResourceID) ResourceKind { return cg.kinds[id] }

// Lifetime returns the liveness interval of a resource over the compiled
// order. External resources extend to the end of the frame.
func (cg *CompiledGraph) Lifetime(id ResourceID) (Interval, bool) {
	iv, ok := cg.intervals[id]
	return iv, ok
}

// SlotOf returns the pool slot assigned to a transient resource.
func (cg *CompiledGraph) SlotOf(id ResourceID) (int, bool) {
	s, ok := cg.slotOf[id]
	return s, ok
}

// Slots returns the transient pool layout.
func (cg *CompiledGraph) Slots() []Slot {
	out := make([]Slot, len(cg.slots))
	for i, s := range cg.slots {
		s.Occupants = slices.Clone(s.Occupants)
		s.Intervals = slices.Clone(s.Intervals)
		out[i] = s
	}
	return out
}

// Ops returns the load/store decision for pass writing texture res.
func (cg *CompiledGraph) Ops(pass PassID, res ResourceID) (AttachmentOps, bool) {
	op, ok := cg.ops[opKey{pass: pass, res: res}]
	return op, ok
}

// Barriers returns the alias transitions recorded before pass runs.
func (cg *CompiledGraph) Barriers(pass PassID) []AliasBarrier {
	return slices.Clone(cg.barriers[pass])
}

// Reads returns the resources a surviving pass reads, including
// read-modify-write accesses.
func (cg *CompiledGraph) Reads(pass PassID) []ResourceID {
	var ids []ResourceID
	for _, a := range cg.access[pass] {
		if a.read {
			ids = append(ids, a.res)
		}
	}
	return ids
}

// Writes returns the resources a surviving pass writes.
func (cg *CompiledGraph) Writes(pass PassID) []ResourceID {
	var ids []ResourceID
	for _, a := range cg.access[pass] {
		if a.write {
			ids = append(ids, a.res)
		}
	}
	return ids
}

// MemoryStats summarizes what aliasing saved.
type MemoryStats struct {
	Transients int    // transient resources used by surviving passes
	Slots      int    // physical allocations backing them
	Unaliased  uint64 // bytes with one allocation per transient
	Aliased    uint64 // bytes actually allocated
}

// Saved returns the bytes aliasing saved.
func (m MemoryStats) Saved() uint64 { return m.Unaliased - m.Aliased }

// MemoryStats estimates the transient pool footprint with and without
// aliasing.
func (cg *CompiledGraph) MemoryStats() MemoryStats {
	st := MemoryStats{Transients: len(cg.slotOf), Slots: len(cg.slots)}
	for _, s := range cg.slots {
		st.Aliased += s.Desc.Bytes()
		for _, id := range s.Occupants {
			st.Unaliased += cg.bytes[id]
		}
	}
	return st
}
