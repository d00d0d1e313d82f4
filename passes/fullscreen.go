package passes

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/fullscreen.wgsl
var fullscreenShaderSource string

// Effect selects the shader a FullscreenPass runs.
type Effect uint8

const (
	// EffectTonemap maps HDR to [0, 1] with the ACES fit. Amount is the
	// exposure.
	EffectTonemap Effect = iota
	// EffectVignette darkens towards the edges. Amount is the strength,
	// Extra the radius where darkening starts.
	EffectVignette
	// EffectGrayscale blends towards luminance by Amount.
	EffectGrayscale
	// EffectInvert blends towards the inverted color by Amount.
	EffectInvert
	// EffectSharpen applies an unsharp 4-neighbour kernel scaled by Amount.
	EffectSharpen
	// EffectBrightnessContrast adds Amount and scales contrast by Extra.
	EffectBrightnessContrast
	// EffectEdgeDetect outputs Sobel edge magnitude scaled by Amount.
	EffectEdgeDetect
)

var effects = [...]struct {
	name, entry   string
	amount, extra float32
}{
	EffectTonemap:            {"Tonemap", "fs_tonemap", 1, 0},
	EffectVignette:           {"Vignette", "fs_vignette", 0.5, 0.3},
	EffectGrayscale:          {"Grayscale", "fs_grayscale", 1, 0},
	EffectInvert:             {"Invert", "fs_invert", 1, 0},
	EffectSharpen:            {"Sharpen", "fs_sharpen", 0.5, 0},
	EffectBrightnessContrast: {"BrightnessContrast", "fs_brightness_contrast", 0, 1},
	EffectEdgeDetect:         {"EdgeDetect", "fs_edge_detect", 1, 0},
}

func (e Effect) valid() bool { return int(e) < len(effects) }

func (e Effect) String() string {
	if !e.valid() {
		return fmt.Sprintf("Effect(%d)", uint8(e))
	}
	return effects[e].name
}

// ParseEffect returns the effect with the given name.
func ParseEffect(name string) (Effect, error) {
	for i, e := range effects {
		if e.name == name {
			return Effect(i), nil
		}
	}
	return 0, fmt.Errorf("passes: unknown effect %q", name)
}

// FullscreenPass samples Source and writes one effect into Target with a
// single fullscreen triangle. A disabled pass declares nothing, so its
// consumers must read Source instead, or be culled with it.
type FullscreenPass struct {
	Label  string
	Effect Effect
	Source framegraph.ResourceID
	Target framegraph.ResourceID
	Amount float32
	Extra  float32

	disabled bool
	prog     *program
	groups   *framegraph.DerivedCache[framegraph.DerivedKey, hal.BindGroup]
}

// NewFullscreen creates an enabled pass with the effect's default
// parameters.
func NewFullscreen(label string, effect Effect, source, target framegraph.ResourceID) *FullscreenPass {
	p := &FullscreenPass{Label: label, Effect: effect, Source: source, Target: target}
	if effect.valid() {
		p.Amount, p.Extra = effects[effect].amount, effects[effect].extra
	}
	return p
}

func (p *FullscreenPass) Name() string { return p.Label }

func (p *FullscreenPass) Reads() []framegraph.ResourceID {
	return []framegraph.ResourceID{p.Source}
}

func (p *FullscreenPass) Writes() []framegraph.ResourceID {
	return []framegraph.ResourceID{p.Target}
}

// Enabled reports whether the pass takes part in the next compile.
func (p *FullscreenPass) Enabled() bool { return !p.disabled }

// SetEnabled switches the pass on or off. The graph notices on its next
// compile.
func (p *FullscreenPass) SetEnabled(on bool) { p.disabled = !on }

func (p *FullscreenPass) init(device hal.Device) error {
	if p.prog == nil {
		p.prog = newProgram("fullscreen", fullscreenShaderSource, 16, sampledTextures(1))
		p.groups = framegraph.NewResourceCache(func(_ framegraph.DerivedKey, bg hal.BindGroup) {
			p.prog.destroyBindGroup(bg)
		})
	}
	if p.prog.device != device {
		p.groups.Clear()
	}
	return p.prog.ensure(device)
}

// Prepare uploads the effect parameters.
func (p *FullscreenPass) Prepare(ctx *framegraph.PrepareContext) error {
	if !p.Effect.valid() {
		return fmt.Errorf("passes: %s: unknown effect %s", p.Label, p.Effect)
	}
	if err := p.init(ctx.Device().HAL()); err != nil {
		return err
	}
	src, ok := ctx.Descriptor(p.Source)
	if !ok {
		return fmt.Errorf("passes: %s: unknown source %v", p.Label, p.Source)
	}
	tx, ty := texelSize(src)
	return p.prog.upload(ctx.Queue(), packFloats(tx, ty, p.Amount, p.Extra))
}

func (p *FullscreenPass) Execute(ctx *framegraph.PassContext) error {
	dst, err := ctx.Descriptor(p.Target)
	if err != nil {
		return err
	}
	rp, err := p.prog.pipeline(effects[p.Effect].entry, dst.Format)
	if err != nil {
		return err
	}
	bg, err := p.groups.GetOrCreate(ctx.Key(p.Source), func() (hal.BindGroup, error) {
		view, err := ctx.TextureView(p.Source)
		if err != nil {
			return nil, err
		}
		return p.prog.bindGroup(p.Label+"_bind_group", view)
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

// Release destroys the pass's GPU objects. The pass rebuilds them if it
// runs again.
func (p *FullscreenPass) Release() {
	if p.prog == nil {
		return
	}
	p.groups.Clear()
	p.prog.release()
}
