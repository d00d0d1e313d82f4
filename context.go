package framegraph

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// physical is the GPU object backing a resource for one frame.
type physical struct {
	desc    Descriptor
	texture hal.Texture
	view    hal.TextureView
	buffer  hal.Buffer
	backing uint64
}

// frame resolves logical resources to physical objects while one compiled
// graph executes.
type frame struct {
	g   *Graph
	cg  *CompiledGraph
	dev *Device
}

func (f *frame) resolve(id ResourceID) (physical, error) {
	e, ok := f.g.res.entries[id]
	if !ok {
		return physical{}, &UnknownResourceError{Resource: id}
	}
	if e.lifetime != Transient {
		if !e.bound() {
			return physical{}, fmt.Errorf("%w: %q", ErrUnbound, e.label())
		}
		return physical{desc: e.desc, texture: e.texture, view: e.view, buffer: e.buffer, backing: e.bindGen}, nil
	}
	s, ok := f.cg.slotOf[id]
	if !ok || s >= len(f.g.pool.allocs) {
		return physical{}, fmt.Errorf("framegraph: %q has no pool allocation", e.label())
	}
	a := &f.g.pool.allocs[s]
	return physical{desc: e.desc, texture: a.texture, view: a.view, buffer: a.buffer, backing: a.gen}, nil
}

// PrepareContext is handed to Preparer.Prepare once per frame, before any
// pass records commands.
type PrepareContext struct {
	frame *frame
	name  string
}

// Name returns the pass name.
func (c *PrepareContext) Name() string { return c.name }

// Device returns the device the frame executes on.
func (c *PrepareContext) Device() *Device { return c.frame.dev }

// Queue returns the device queue, for uniform and buffer uploads.
func (c *PrepareContext) Queue() hal.Queue { return c.frame.dev.queue }

// Descriptor returns a resource's current descriptor.
func (c *PrepareContext) Descriptor(id ResourceID) (Descriptor, bool) {
	return c.frame.g.Lookup(id)
}

// PassContext is handed to Pass.Execute. It exposes the pass's encoder and
// the physical objects behind the resources the pass declared; any other
// resource is refused with ErrUndeclared.
type PassContext struct {
	frame    *frame
	pass     PassID
	name     string
	label    string
	declared []access

	enc      hal.CommandEncoder
	encoding bool
	cmds     []hal.CommandBuffer
}

// Name returns the pass name.
func (c *PassContext) Name() string { return c.name }

// ID returns the pass id.
func (c *PassContext) ID() PassID { return c.pass }

// Device returns the device the frame executes on.
func (c *PassContext) Device() *Device { return c.frame.dev }

// Queue returns the device queue.
func (c *PassContext) Queue() hal.Queue { return c.frame.dev.queue }

// Encoder returns the command encoder for this pass. It is valid until
// Execute returns; Flush may end and restart it.
func (c *PassContext) Encoder() hal.CommandEncoder { return c.enc }

func (c *PassContext) lookup(id ResourceID) (access, error) {
	for _, a := range c.declared {
		if a.res == id {
			return a, nil
		}
	}
	return access{}, fmt.Errorf("%w: pass %q, %v", ErrUndeclared, c.name, id)
}

func (c *PassContext) physical(id ResourceID) (access, physical, error) {
	a, err := c.lookup(id)
	if err != nil {
		return access{}, physical{}, err
	}
	p, err := c.frame.resolve(id)
	return a, p, err
}

// Descriptor returns the descriptor of a declared resource.
func (c *PassContext) Descriptor(id ResourceID) (Descriptor, error) {
	_, p, err := c.physical(id)
	return p.desc, err
}

// Texture returns the texture backing a declared texture resource.
func (c *PassContext) Texture(id ResourceID) (hal.Texture, error) {
	_, p, err := c.physical(id)
	if err != nil {
		return nil, err
	}
	if p.texture == nil {
		return nil, fmt.Errorf("framegraph: %v is not a texture", id)
	}
	return p.texture, nil
}

// TextureView returns the default view of a declared texture resource.
func (c *PassContext) TextureView(id ResourceID) (hal.TextureView, error) {
	_, p, err := c.physical(id)
	if err != nil {
		return nil, err
	}
	if p.view == nil {
		return nil, fmt.Errorf("framegraph: %v is not a texture", id)
	}
	return p.view, nil
}

// Buffer returns the buffer backing a declared buffer resource.
func (c *PassContext) Buffer(id ResourceID) (hal.Buffer, error) {
	_, p, err := c.physical(id)
	if err != nil {
		return nil, err
	}
	if p.buffer == nil {
		return nil, fmt.Errorf("framegraph: %v is not a buffer", id)
	}
	return p.buffer, nil
}

// Ops returns the load/store decision for a texture this pass writes.
func (c *PassContext) Ops(id ResourceID) (AttachmentOps, bool) {
	return c.frame.cg.Ops(c.pass, id)
}

// ColorAttachment builds the render pass attachment for a color resource
// this pass writes, with the compiled load/store ops and clear color.
func (c *PassContext) ColorAttachment(id ResourceID) (hal.RenderPassColorAttachment, error) {
	a, p, err := c.physical(id)
	if err != nil {
		return hal.RenderPassColorAttachment{}, err
	}
	if p.desc.Kind != KindColor || !a.write {
		return hal.RenderPassColorAttachment{}, fmt.Errorf("%w: pass %q does not write color %q",
			ErrUndeclared, c.name, p.desc.Label)
	}
	ops, _ := c.Ops(id)
	return hal.RenderPassColorAttachment{
		View:       p.view,
		LoadOp:     ops.GPULoad(),
		StoreOp:    ops.GPUStore(),
		ClearValue: ops.Clear.Color,
	}, nil
}

// DepthAttachment builds the depth/stencil attachment for a depth resource
// the pass declared. A depth resource that is only read becomes a
// read-only attachment.
func (c *PassContext) DepthAttachment(id ResourceID) (*hal.RenderPassDepthStencilAttachment, error) {
	a, p, err := c.physical(id)
	if err != nil {
		return nil, err
	}
	if p.desc.Kind != KindDepth {
		return nil, fmt.Errorf("framegraph: %q is not a depth resource", p.desc.Label)
	}

	att := &hal.RenderPassDepthStencilAttachment{View: p.view}
	if !a.write {
		att.DepthReadOnly = true
		att.StencilReadOnly = true
		return att, nil
	}

	ops, _ := c.Ops(id)
	att.DepthLoadOp = ops.GPULoad()
	att.DepthStoreOp = ops.GPUStore()
	att.DepthClearValue = ops.Clear.Depth
	if p.desc.Format.HasStencil() {
		att.StencilLoadOp = ops.GPULoad()
		att.StencilStoreOp = ops.GPUStore()
		att.StencilClearValue = ops.Clear.Stencil
	} else {
		att.StencilLoadOp = gputypes.LoadOpUndefined
		att.StencilStoreOp = gputypes.StoreOpUndefined
	}
	return att, nil
}

// Key returns the cache key for objects derived from a declared resource
// this frame. An undeclared resource yields the zero key.
func (c *PassContext) Key(id ResourceID) DerivedKey {
	if _, err := c.lookup(id); err != nil {
		return DerivedKey{}
	}
	p, err := c.frame.resolve(id)
	if err != nil {
		return DerivedKey{}
	}
	v := c.frame.cg.versions[id]
	return DerivedKey{Resource: id, Version: v, Backing: p.backing}
}

// Flush ends the current command buffer and starts a new one on the same
// encoder. Passes that record a lot of work use it to split submission.
func (c *PassContext) Flush() error {
	cb, err := c.enc.EndEncoding()
	c.encoding = false
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	c.cmds = append(c.cmds, cb)
	if err := c.enc.BeginEncoding(c.label); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	c.encoding = true
	return nil
}
