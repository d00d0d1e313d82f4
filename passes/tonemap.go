package passes

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/tonemap.wgsl
var tonemapShaderSource string

// TonemapPass composites HDR and, when UseBloom is set, Bloom into Target.
//
// Turning UseBloom off removes Bloom from Reads, which lets the compiler
// cull whatever pass produces it. The shader then samples HDR in place of
// bloom with zero strength.
type TonemapPass struct {
	Label  string
	HDR    framegraph.ResourceID
	Bloom  framegraph.ResourceID
	Target framegraph.ResourceID

	Exposure      float32
	BloomStrength float32
	UseBloom      bool

	prog   *program
	groups *framegraph.DerivedCache[tonemapKey, hal.BindGroup]
}

// tonemapKey identifies a bind group by both sampled textures. Both keys
// are the HDR key when bloom is off.
type tonemapKey struct {
	hdr, bloom framegraph.DerivedKey
}

// NewTonemap creates a tonemap pass with unit exposure and bloom enabled.
func NewTonemap(label string, hdr, bloom, target framegraph.ResourceID) *TonemapPass {
	return &TonemapPass{
		Label:         label,
		HDR:           hdr,
		Bloom:         bloom,
		Target:        target,
		Exposure:      1,
		BloomStrength: 0.04,
		UseBloom:      bloom != framegraph.InvalidResource,
	}
}

func (p *TonemapPass) Name() string { return p.Label }

func (p *TonemapPass) bloomOn() bool {
	return p.UseBloom && p.Bloom != framegraph.InvalidResource
}

func (p *TonemapPass) Reads() []framegraph.ResourceID {
	if p.bloomOn() {
		return []framegraph.ResourceID{p.HDR, p.Bloom}
	}
	return []framegraph.ResourceID{p.HDR}
}

func (p *TonemapPass) Writes() []framegraph.ResourceID {
	return []framegraph.ResourceID{p.Target}
}

func (p *TonemapPass) Prepare(ctx *framegraph.PrepareContext) error {
	if p.prog == nil {
		p.prog = newProgram("tonemap", tonemapShaderSource, 16, sampledTextures(2))
		// Toggling bloom alternates between two live bind groups.
		p.groups = framegraph.NewDerivedCache(4, func(_ tonemapKey, bg hal.BindGroup) {
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
	strength := p.BloomStrength
	if !p.bloomOn() {
		strength = 0
	}
	return p.prog.upload(ctx.Queue(), packFloats(p.Exposure, strength, 0, 0))
}

func (p *TonemapPass) Execute(ctx *framegraph.PassContext) error {
	dst, err := ctx.Descriptor(p.Target)
	if err != nil {
		return err
	}
	rp, err := p.prog.pipeline("fs_main", dst.Format)
	if err != nil {
		return err
	}

	bloom := p.HDR
	if p.bloomOn() {
		bloom = p.Bloom
	}
	key := tonemapKey{hdr: ctx.Key(p.HDR), bloom: ctx.Key(bloom)}
	bg, err := p.groups.GetOrCreate(key, func() (hal.BindGroup, error) {
		hdrView, err := ctx.TextureView(p.HDR)
		if err != nil {
			return nil, err
		}
		bloomView, err := ctx.TextureView(bloom)
		if err != nil {
			return nil, fmt.Errorf("bloom: %w", err)
		}
		return p.prog.bindGroup(p.Label+"_bind_group", hdrView, bloomView)
	})
	if err != nil {
		return err
	}

	att, err := ctx.ColorAttachment(p.Target)
	if err != nil {
		return err
	}
	p.prog.draw(ctx, p.Label, rp, bg, att)
	return nil
}

// Release destroys the pass's GPU objects.
func (p *TonemapPass) Release() {
	if p.prog == nil {
		return
	}
	p.groups.Clear()
	p.prog.release()
}
