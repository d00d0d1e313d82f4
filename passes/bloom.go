package passes

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/bloom.wgsl
var bloomShaderSource string

// BloomPass extracts the parts of Source brighter than Threshold and blurs
// them into Target. The blur is separable: a horizontal step renders into
// Scratch and a vertical step renders Scratch into Target, as two render
// passes on the same encoder. Scratch and Target should be the same size.
type BloomPass struct {
	Label   string
	Source  framegraph.ResourceID
	Scratch framegraph.ResourceID
	Target  framegraph.ResourceID

	// Threshold is the luminance above which pixels glow; Knee softens the
	// cut-off.
	Threshold float32
	Knee      float32

	prog   *program
	groups *framegraph.DerivedCache[framegraph.DerivedKey, hal.BindGroup]
}

// NewBloom creates a bloom pass with a threshold of 1 and a knee of 0.5.
func NewBloom(label string, source, scratch, target framegraph.ResourceID) *BloomPass {
	return &BloomPass{
		Label:     label,
		Source:    source,
		Scratch:   scratch,
		Target:    target,
		Threshold: 1,
		Knee:      0.5,
	}
}

func (p *BloomPass) Name() string { return p.Label }

func (p *BloomPass) Reads() []framegraph.ResourceID {
	return []framegraph.ResourceID{p.Source}
}

// Writes lists Scratch too: the graph must allocate it, and nothing outside
// the pass ever reads it, so it aliases freely with other transients.
func (p *BloomPass) Writes() []framegraph.ResourceID {
	return []framegraph.ResourceID{p.Scratch, p.Target}
}

func (p *BloomPass) Prepare(ctx *framegraph.PrepareContext) error {
	if p.prog == nil {
		p.prog = newProgram("bloom", bloomShaderSource, 16, sampledTextures(1))
		p.groups = framegraph.NewResourceCache(func(_ framegraph.DerivedKey, bg hal.BindGroup) {
			p.prog.destroyBindGroup(bg)
		})
	}
	device := ctx.Device().HAL()
	if p.prog.device != device {
		p.groups.Clear()
	}
	if err := p.prog.ensure(device); err != nil {
		return err
	}
	scratch, ok := ctx.Descriptor(p.Scratch)
	if !ok {
		return fmt.Errorf("passes: %s: unknown scratch %v", p.Label, p.Scratch)
	}
	tx, ty := texelSize(scratch)
	return p.prog.upload(ctx.Queue(), packFloats(tx, ty, p.Threshold, max(p.Knee, 1e-4)))
}

func (p *BloomPass) Execute(ctx *framegraph.PassContext) error {
	// Bright pass and horizontal blur into scratch. The graph sees no
	// reader of scratch and would discard it, but the vertical step
	// samples it, so the store is forced.
	scratch, err := ctx.ColorAttachment(p.Scratch)
	if err != nil {
		return err
	}
	scratch.StoreOp = gputypes.StoreOpStore
	if err := p.step(ctx, "_h", "fs_bright_blur_h", p.Source, p.Scratch, scratch); err != nil {
		return err
	}

	tex, err := ctx.Texture(p.Scratch)
	if err != nil {
		return err
	}
	ctx.Encoder().TransitionTextures([]hal.TextureBarrier{{
		Texture: tex,
		Range:   hal.TextureRange{Aspect: gputypes.TextureAspectAll, MipLevelCount: 1, ArrayLayerCount: 1},
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageTextureBinding,
		},
	}})

	target, err := ctx.ColorAttachment(p.Target)
	if err != nil {
		return err
	}
	return p.step(ctx, "_v", "fs_blur_v", p.Scratch, p.Target, target)
}

func (p *BloomPass) step(ctx *framegraph.PassContext, suffix, entry string, src, dst framegraph.ResourceID, att hal.RenderPassColorAttachment) error {
	desc, err := ctx.Descriptor(dst)
	if err != nil {
		return err
	}
	rp, err := p.prog.pipeline(entry, desc.Format)
	if err != nil {
		return err
	}
	bg, err := p.groups.GetOrCreate(ctx.Key(src), func() (hal.BindGroup, error) {
		view, err := ctx.TextureView(src)
		if err != nil {
			return nil, err
		}
		return p.prog.bindGroup(p.Label+suffix+"_bind_group", view)
	})
	if err != nil {
		return err
	}
	p.prog.draw(ctx, p.Label+suffix, rp, bg, att)
	return nil
}

// Release destroys the pass's GPU objects.
func (p *BloomPass) Release() {
	if p.prog == nil {
		return
	}
	p.groups.Clear()
	p.prog.release()
}
