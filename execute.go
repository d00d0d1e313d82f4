package framegraph

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ExecuteCompiled encodes cg against dev and returns one or more command
// buffers per surviving pass, in execution order. The caller submits them
// (Device.Submit) and frees them afterwards (Device.Release).
//
// cg must match the registry: a resource version or pass-set change since
// cg was compiled fails with ErrStaleGraph. Any pass failure discards the
// whole frame and returns a *PassError; no command buffer is returned.
func (g *Graph) ExecuteCompiled(cg *CompiledGraph, dev *Device) ([]hal.CommandBuffer, error) {
	if cg == nil {
		if g.compileErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrNotCompiled, g.compileErr)
		}
		return nil, ErrNotCompiled
	}
	if dev == nil {
		return nil, errors.New("framegraph: nil device")
	}
	if err := g.checkFresh(cg); err != nil {
		return nil, err
	}
	if err := g.checkBound(cg); err != nil {
		return nil, err
	}
	if err := g.pool.realize(cg, dev); err != nil {
		return nil, err
	}

	f := &frame{g: g, cg: cg, dev: dev}
	var stats []PassStatistics
	if g.opts.profiling {
		stats = make([]PassStatistics, 0, len(cg.order)+len(cg.culled))
	}

	prepared := make(map[PassID]time.Duration, len(cg.order))
	for _, id := range cg.order {
		p := g.passes.slots[id]
		pr, ok := p.(Preparer)
		if !ok {
			continue
		}
		start := g.opts.now()
		err := prepare(pr, &PrepareContext{frame: f, name: cg.names[id]})
		if err != nil {
			return nil, g.discardFrame(dev, nil, cg.names[id], err)
		}
		prepared[id] = g.opts.now().Sub(start)
	}

	var cmds []hal.CommandBuffer
	for _, id := range cg.order {
		start := g.opts.now()
		out, err := g.encodePass(f, id)
		if err != nil {
			return nil, g.discardFrame(dev, cmds, cg.names[id], err)
		}
		cmds = append(cmds, out...)
		if stats != nil {
			stats = append(stats, PassStatistics{
				Name:     cg.names[id],
				Duration: prepared[id] + g.opts.now().Sub(start),
			})
		}
	}
	for _, id := range cg.culled {
		if stats != nil {
			stats = append(stats, PassStatistics{Name: cg.names[id], Culled: true})
		}
	}

	g.stats = stats
	g.counts.Executions++
	g.lastCmd = len(cmds)
	Logger().Debug("framegraph: executed", "passes", len(cg.order), "commandBuffers", len(cmds))
	return cmds, nil
}

// prepare runs one Prepare call, turning a panic into an error.
func prepare(p Preparer, ctx *PrepareContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.Prepare(ctx)
}

// discardFrame frees the command buffers recorded so far and reports the
// failing pass.
func (g *Graph) discardFrame(dev *Device, cmds []hal.CommandBuffer, pass string, err error) error {
	dev.Release(cmds)
	Logger().Warn("framegraph: frame discarded", "pass", pass, "commandBuffers", len(cmds), "err", err)
	return &PassError{Pass: pass, Err: err}
}

// encodePass records one pass into its own encoder. The encoder is
// discarded, and buffers already flushed are freed, when the pass fails
// or panics.
func (g *Graph) encodePass(f *frame, id PassID) (cmds []hal.CommandBuffer, err error) {
	name := f.cg.names[id]
	label := g.opts.labelPrefix + "/" + name

	enc, err := f.dev.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}

	ctx := &PassContext{
		frame:    f,
		pass:     id,
		name:     name,
		label:    label,
		declared: f.cg.access[id],
		enc:      enc,
		encoding: true,
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			if ctx.encoding {
				enc.DiscardEncoding()
			}
			f.dev.Release(ctx.cmds)
			cmds = nil
		}
	}()

	g.emitBarriers(f, enc, f.cg.barriers[id])

	if err := g.passes.slots[id].Execute(ctx); err != nil {
		return nil, err
	}

	cb, err := enc.EndEncoding()
	ctx.encoding = false
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	ctx.cmds = append(ctx.cmds, cb)
	return ctx.cmds, nil
}

// emitBarriers records the alias transitions that hand a pool slot from
// its previous occupant to the resource this pass touches first.
func (g *Graph) emitBarriers(f *frame, enc hal.CommandEncoder, barriers []AliasBarrier) {
	if len(barriers) == 0 {
		return
	}
	var tex []hal.TextureBarrier
	var buf []hal.BufferBarrier
	for _, b := range barriers {
		a := &g.pool.allocs[b.Slot]
		if b.Kind == KindBuffer {
			buf = append(buf, hal.BufferBarrier{
				Buffer: a.buffer,
				Usage: hal.BufferUsageTransition{
					OldUsage: b.OldBufferUsage,
					NewUsage: b.NewBufferUsage,
				},
			})
			continue
		}
		tex = append(tex, hal.TextureBarrier{
			Texture: a.texture,
			Range: hal.TextureRange{
				Aspect:          gputypes.TextureAspectAll,
				MipLevelCount:   a.desc.MipLevels,
				ArrayLayerCount: 1,
			},
			Usage: hal.TextureUsageTransition{
				OldUsage: b.OldUsage,
				NewUsage: b.NewUsage,
			},
		})
	}
	if len(tex) > 0 {
		enc.TransitionTextures(tex)
	}
	if len(buf) > 0 {
		enc.TransitionBuffers(buf)
	}
}

// checkFresh reports the first difference between cg and the registry.
func (g *Graph) checkFresh(cg *CompiledGraph) error {
	if cg.topology != g.topoGen {
		return &StaleGraphError{Topology: true}
	}
	for _, id := range sortedIDs(cg.versions) {
		v := cg.versions[id]
		e, ok := g.res.entries[id]
		if !ok {
			return &StaleGraphError{Resource: id, Label: cg.labels[id], Compiled: v}
		}
		if e.version != v {
			return &StaleGraphError{Resource: id, Label: cg.labels[id], Compiled: v, Current: e.version}
		}
	}
	return nil
}

func (g *Graph) checkBound(cg *CompiledGraph) error {
	for _, id := range sortedIDs(cg.lifetime) {
		if cg.lifetime[id] == Transient {
			continue
		}
		if e := g.res.entries[id]; !e.bound() {
			return fmt.Errorf("%w: %q", ErrUnbound, e.label())
		}
	}
	return nil
}
