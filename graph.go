package framegraph

import (
	"fmt"
	"slices"

	"github.com/gogpu/wgpu/hal"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Graph is a frame graph: a resource registry, an ordered set of passes,
// the last compiled plan and the transient pool that backs it.
//
// A Graph is not safe for concurrent use. Independent graphs share nothing
// and may be driven from different goroutines.
type Graph struct {
	opts   graphOptions
	res    *registry
	passes passArena

	// topoGen changes whenever a pass is added or removed.
	topoGen uint64
	dirty   bool

	compiled    *CompiledGraph
	compileErr  error
	fingerprint string
	plans       *lru.Cache[string, *CompiledGraph]

	pool    *pool
	stats   []PassStatistics
	counts  GraphStats
	lastCmd int
}

// New creates an empty graph.
func New(opts ...GraphOption) *Graph {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	g := &Graph{
		opts:  o,
		res:   newRegistry(),
		pool:  newPool(o.labelPrefix),
		dirty: true,
	}
	if o.compileCache > 0 {
		// lru.New fails only for non-positive sizes.
		g.plans, _ = lru.New[string, *CompiledGraph](o.compileCache)
	}
	return g
}

// Register adds a resource and returns its id. The descriptor is validated
// and defaulted (sample count and mip levels of 0 become 1).
func (g *Graph) Register(desc Descriptor, lt Lifetime) (ResourceID, error) {
	id, err := g.res.register(desc, lt)
	if err != nil {
		return InvalidResource, err
	}
	g.dirty = true
	return id, nil
}

// Update replaces a resource's descriptor. An identical descriptor is a
// no-op; any change bumps the resource version, which invalidates compiled
// graphs and derived objects built from the old version.
func (g *Graph) Update(id ResourceID, desc Descriptor) error {
	changed, err := g.res.update(id, desc)
	if err != nil {
		return err
	}
	if changed {
		g.dirty = true
		Logger().Debug("framegraph: resource updated",
			"resource", g.res.entries[id].label(), "version", g.res.entries[id].version)
	}
	return nil
}

// Resize changes the extent of a texture resource, typically on window
// resize.
func (g *Graph) Resize(id ResourceID, width, height uint32) error {
	e, err := g.res.get(id)
	if err != nil {
		return err
	}
	if !e.desc.Kind.IsTexture() {
		return &DescriptorError{Label: e.label(), Reason: "resize of a buffer resource"}
	}
	desc := e.desc
	desc.Width, desc.Height = width, height
	return g.Update(id, desc)
}

// ResizeBuffer changes the size of a buffer resource.
func (g *Graph) ResizeBuffer(id ResourceID, size uint64) error {
	e, err := g.res.get(id)
	if err != nil {
		return err
	}
	if e.desc.Kind != KindBuffer {
		return &DescriptorError{Label: e.label(), Reason: "buffer resize of a texture resource"}
	}
	desc := e.desc
	desc.Size = size
	return g.Update(id, desc)
}

// Recreate bumps a resource's version without changing its descriptor,
// for example after the caller recreated the swapchain image behind an
// External resource.
func (g *Graph) Recreate(id ResourceID) error {
	if err := g.res.recreate(id); err != nil {
		return err
	}
	g.dirty = true
	return nil
}

// Unregister removes a resource. Passes still declaring it make the next
// compile fail with ErrUnknownResource.
func (g *Graph) Unregister(id ResourceID) error {
	if err := g.res.unregister(id); err != nil {
		return err
	}
	g.dirty = true
	return nil
}

// Lookup returns a resource's current descriptor.
func (g *Graph) Lookup(id ResourceID) (Descriptor, bool) {
	e, ok := g.res.entries[id]
	if !ok {
		return Descriptor{}, false
	}
	return e.desc.normalized(), true
}

// Version returns a resource's current version.
func (g *Graph) Version(id ResourceID) (uint64, bool) {
	e, ok := g.res.entries[id]
	if !ok {
		return 0, false
	}
	return e.version, true
}

// Lifetime returns a resource's lifetime category.
func (g *Graph) Lifetime(id ResourceID) (Lifetime, bool) {
	e, ok := g.res.entries[id]
	if !ok {
		return 0, false
	}
	return e.lifetime, true
}

// Resources returns every registered resource id in ascending order.
func (g *Graph) Resources() []ResourceID { return sortedIDs(g.res.entries) }

// BindTexture attaches the caller's texture and view to an External or
// Imported resource. Rebinding every frame (e.g. to the current swapchain
// image) is expected and does not invalidate the compiled graph.
func (g *Graph) BindTexture(id ResourceID, tex hal.Texture, view hal.TextureView) error {
	return g.res.bindTexture(id, tex, view)
}

// BindBuffer attaches the caller's buffer to an External or Imported
// resource.
func (g *Graph) BindBuffer(id ResourceID, buf hal.Buffer) error {
	return g.res.bindBuffer(id, buf)
}

// AddPass appends a pass. Its position is used only to break ties between
// passes with no dependency between them, and to pick producers.
func (g *Graph) AddPass(p Pass) PassID {
	id := g.passes.add(p)
	g.topoGen++
	g.dirty = true
	return id
}

// RemovePass removes a pass. Its id is never reissued.
func (g *Graph) RemovePass(id PassID) bool {
	if !g.passes.remove(id) {
		return false
	}
	g.topoGen++
	g.dirty = true
	return true
}

// Pass returns the pass registered under id.
func (g *Graph) Pass(id PassID) (Pass, bool) { return g.passes.get(id) }

// PassCount returns the number of registered passes.
func (g *Graph) PassCount() int { return g.passes.live }

// Dirty reports whether resources or passes changed since the last
// successful compile. Toggled passes and changed declarations are not
// tracked here; Compile always re-queries them.
func (g *Graph) Dirty() bool { return g.dirty }

// Compile builds the execution plan from the passes' current declarations.
// It is cheap when nothing changed: the declarations are fingerprinted and
// an identical fingerprint reuses the current or a cached plan.
//
// On error the previous plan stays readable through Compiled, but Render
// and Execute refuse to run until a compile succeeds.
func (g *Graph) Compile() error {
	decls, err := gather(&g.passes, g.res)
	if err != nil {
		return g.failCompile(err)
	}
	fp := fingerprint(decls, g.res, g.topoGen)
	if g.compiled != nil && g.compileErr == nil && fp == g.fingerprint {
		g.dirty = false
		return nil
	}
	if g.plans != nil {
		if cg, ok := g.plans.Get(fp); ok {
			g.counts.PlanHits++
			g.adopt(cg, fp)
			Logger().Debug("framegraph: reused compiled plan", "passes", cg.Len())
			return nil
		}
	}

	cg, err := compile(compileInput{
		decls:    decls,
		reg:      g.res,
		aliasing: g.opts.aliasing,
		topology: g.topoGen,
	})
	if err != nil {
		return g.failCompile(err)
	}
	g.counts.Compiles++
	if g.plans != nil {
		g.plans.Add(fp, cg)
	}
	g.adopt(cg, fp)

	ms := cg.MemoryStats()
	Logger().Debug("framegraph: compiled",
		"order", cg.Names(),
		"culled", cg.CulledNames(),
		"slots", ms.Slots,
		"transients", ms.Transients,
		"saved", ms.Saved())
	return nil
}

func (g *Graph) adopt(cg *CompiledGraph, fp string) {
	g.compiled = cg
	g.compileErr = nil
	g.fingerprint = fp
	g.dirty = false
}

func (g *Graph) failCompile(err error) error {
	g.compileErr = err
	Logger().Debug("framegraph: compile failed", "err", err)
	return err
}

// Compiled returns the current plan, or nil before the first successful
// compile.
func (g *Graph) Compiled() *CompiledGraph { return g.compiled }

// Render compiles if needed and executes. It is the usual per-frame call.
func (g *Graph) Render(dev *Device) ([]hal.CommandBuffer, error) {
	if err := g.Compile(); err != nil {
		return nil, err
	}
	return g.ExecuteCompiled(g.compiled, dev)
}

// Execute encodes the current plan. It fails with ErrNotCompiled before
// the first successful compile and after a failed one.
func (g *Graph) Execute(dev *Device) ([]hal.CommandBuffer, error) {
	if g.compileErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotCompiled, g.compileErr)
	}
	return g.ExecuteCompiled(g.compiled, dev)
}

// ExecutionOrder returns the pass names of the current plan.
func (g *Graph) ExecutionOrder() []string {
	if g.compiled == nil {
		return nil
	}
	return g.compiled.Names()
}

// Statistics returns per-pass timings of the last executed frame, surviving
// passes first in execution order, culled passes after. It is empty unless
// the graph was created WithProfiling(true).
func (g *Graph) Statistics() []PassStatistics { return slices.Clone(g.stats) }

// Stats returns compile and pool counters.
func (g *Graph) Stats() GraphStats {
	st := g.counts
	st.PoolCreated = g.pool.created
	st.PoolDestroyed = g.pool.destroyed
	st.PoolBytes = g.pool.bytes()
	st.CommandBuffers = g.lastCmd
	if g.plans != nil {
		st.CachedPlans = g.plans.Len()
	}
	return st
}

// Release destroys the transient pool and forgets cached plans. The graph
// stays usable; the next Execute reallocates.
func (g *Graph) Release() {
	g.pool.release()
	if g.plans != nil {
		g.plans.Purge()
	}
}

// String summarizes the graph for debugging.
func (g *Graph) String() string {
	return fmt.Sprintf("framegraph.Graph{resources: %d, passes: %d, compiled: %t}",
		len(g.res.entries), g.passes.live, g.compiled != nil)
}
