package passes

import (
	"errors"
	"fmt"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/wgpu/hal"
)

// DrawFunc records draw calls into an open render pass.
type DrawFunc func(rp hal.RenderPassEncoder, ctx *framegraph.PassContext) error

// ScenePass opens a render pass over a color target and an optional depth
// target and hands it to Draw. Targets are cleared or loaded as the
// compiled graph decides, so registering the color resource with a clear
// color makes the pass start from that color every frame.
type ScenePass struct {
	Label string
	Color framegraph.ResourceID
	// Depth is framegraph.InvalidResource for a pass without depth.
	Depth framegraph.ResourceID
	Draw  DrawFunc
}

func (p *ScenePass) Name() string { return p.Label }

func (p *ScenePass) Reads() []framegraph.ResourceID { return nil }

func (p *ScenePass) Writes() []framegraph.ResourceID {
	if p.Depth == framegraph.InvalidResource {
		return []framegraph.ResourceID{p.Color}
	}
	return []framegraph.ResourceID{p.Color, p.Depth}
}

func (p *ScenePass) Execute(ctx *framegraph.PassContext) error {
	if p.Color == framegraph.InvalidResource {
		return errors.New("passes: scene pass without color target")
	}
	color, err := ctx.ColorAttachment(p.Color)
	if err != nil {
		return err
	}
	desc := &hal.RenderPassDescriptor{
		Label:            p.Label,
		ColorAttachments: []hal.RenderPassColorAttachment{color},
	}
	if p.Depth != framegraph.InvalidResource {
		if desc.DepthStencilAttachment, err = ctx.DepthAttachment(p.Depth); err != nil {
			return err
		}
	}

	rp := ctx.Encoder().BeginRenderPass(desc)
	defer rp.End()
	if p.Draw == nil {
		return nil
	}
	if err := p.Draw(rp, ctx); err != nil {
		return fmt.Errorf("draw: %w", err)
	}
	return nil
}
