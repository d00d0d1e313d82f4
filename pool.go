package framegraph

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// allocation is one realized pool slot.
type allocation struct {
	desc    Descriptor
	texture hal.Texture
	view    hal.TextureView
	buffer  hal.Buffer

	// gen changes every time the backing object is recreated.
	gen uint64
}

func (a *allocation) live() bool { return a.texture != nil || a.buffer != nil }

// pool owns the physical allocations backing transient resources.
// Index = slot index of the compiled graph currently executing.
type pool struct {
	device *Device
	allocs []allocation
	prefix string
	gen    uint64

	created   int // allocations created since the pool was made
	destroyed int
}

func newPool(prefix string) *pool {
	return &pool{prefix: prefix}
}

// realize makes the pool match the slot layout of cg. A slot keeps its
// allocation across frames while its descriptor is unchanged; otherwise
// the allocation is destroyed and recreated with a new generation.
func (p *pool) realize(cg *CompiledGraph, dev *Device) error {
	if p.device != dev {
		p.release()
		p.device = dev
	}

	for i := len(cg.slots); i < len(p.allocs); i++ {
		p.destroy(&p.allocs[i])
	}
	if len(p.allocs) > len(cg.slots) {
		p.allocs = p.allocs[:len(cg.slots)]
	}
	for len(p.allocs) < len(cg.slots) {
		p.allocs = append(p.allocs, allocation{})
	}

	for i, s := range cg.slots {
		a := &p.allocs[i]
		if a.live() && a.desc.Equal(s.Desc) {
			continue
		}
		p.destroy(a)
		if err := p.create(a, s); err != nil {
			return err
		}
	}
	return nil
}

func (p *pool) create(a *allocation, s Slot) error {
	label := fmt.Sprintf("%s/slot%d", p.prefix, s.Index)
	d := s.Desc
	dev := p.device.device

	if d.Kind == KindBuffer {
		buf, err := dev.CreateBuffer(&hal.BufferDescriptor{
			Label: label,
			Size:  d.Size,
			Usage: d.BufferUsage,
		})
		if err != nil {
			return fmt.Errorf("create pool buffer %s: %w", label, err)
		}
		a.buffer = buf
	} else {
		tex, err := dev.CreateTexture(&hal.TextureDescriptor{
			Label:         label,
			Size:          hal.Extent3D{Width: d.Width, Height: d.Height, DepthOrArrayLayers: 1},
			MipLevelCount: d.MipLevels,
			SampleCount:   d.SampleCount,
			Dimension:     gputypes.TextureDimension2D,
			Format:        d.Format,
			Usage:         d.Usage,
		})
		if err != nil {
			return fmt.Errorf("create pool texture %s: %w", label, err)
		}
		view, err := dev.CreateTextureView(tex, &hal.TextureViewDescriptor{
			Label:           label + "/view",
			Format:          d.Format,
			Dimension:       gputypes.TextureViewDimension2D,
			Aspect:          gputypes.TextureAspectAll,
			MipLevelCount:   d.MipLevels,
			ArrayLayerCount: 1,
		})
		if err != nil {
			dev.DestroyTexture(tex)
			return fmt.Errorf("create pool texture view %s: %w", label, err)
		}
		a.texture, a.view = tex, view
	}

	p.gen++
	a.desc = d
	a.gen = p.gen
	p.created++
	Logger().Debug("framegraph: pool allocation created",
		"slot", s.Index, "kind", d.Kind, "bytes", d.Bytes(), "generation", a.gen)
	return nil
}

func (p *pool) destroy(a *allocation) {
	if !a.live() {
		return
	}
	dev := p.device.device
	if a.view != nil {
		dev.DestroyTextureView(a.view)
	}
	if a.texture != nil {
		dev.DestroyTexture(a.texture)
	}
	if a.buffer != nil {
		dev.DestroyBuffer(a.buffer)
	}
	p.destroyed++
	*a = allocation{}
}

// release destroys every allocation. The pool can be realized again.
func (p *pool) release() {
	if p.device == nil {
		return
	}
	for i := range p.allocs {
		p.destroy(&p.allocs[i])
	}
	p.allocs = nil
	p.device = nil
}

// bytes returns the memory currently held by live allocations.
func (p *pool) bytes() uint64 {
	var total uint64
	for i := range p.allocs {
		if p.allocs[i].live() {
			total += p.allocs[i].desc.Bytes()
		}
	}
	return total
}
