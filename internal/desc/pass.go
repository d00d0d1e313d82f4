package desc

import (
	"fmt"
	"strings"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/wgpu/hal"
)

// Declared is the pass built from a description entry. A render pass
// begins and ends one render pass over every attachment it writes; a
// compute pass opens an empty compute pass. Either way the encoder sees
// the real attachments and load/store ops of the compiled graph.
type Declared struct {
	framegraph.FuncPass
	Disabled bool
}

// Enabled reports whether the pass takes part in the next compile.
func (p *Declared) Enabled() bool { return !p.Disabled }

func (p Pass) build(ids map[string]framegraph.ResourceID) (*Declared, error) {
	var kind framegraph.PassType
	switch strings.ToLower(p.Type) {
	case "", "render":
		kind = framegraph.PassRender
	case "compute":
		kind = framegraph.PassCompute
	default:
		return nil, fmt.Errorf("unknown type %q", p.Type)
	}
	resolve := func(names []string) []framegraph.ResourceID {
		out := make([]framegraph.ResourceID, len(names))
		for i, n := range names {
			out[i] = ids[n]
		}
		return out
	}

	d := &Declared{Disabled: p.Disabled}
	d.FuncPass = framegraph.FuncPass{
		Label:    p.Name,
		ReadIDs:  resolve(p.Reads),
		WriteIDs: resolve(p.Writes),
		RWIDs:    resolve(p.ReadWrites),
		Kind:     kind,
	}
	if kind == framegraph.PassCompute {
		d.Fn = d.compute
	} else {
		d.Fn = d.render
	}
	return d, nil
}

func (p *Declared) render(ctx *framegraph.PassContext) error {
	desc := &hal.RenderPassDescriptor{Label: p.Label}
	targets := append(append([]framegraph.ResourceID(nil), p.WriteIDs...), p.RWIDs...)
	for _, id := range targets {
		d, err := ctx.Descriptor(id)
		if err != nil {
			return err
		}
		switch d.Kind {
		case framegraph.KindColor:
			att, err := ctx.ColorAttachment(id)
			if err != nil {
				return err
			}
			desc.ColorAttachments = append(desc.ColorAttachments, att)
		case framegraph.KindDepth:
			if desc.DepthStencilAttachment != nil {
				return fmt.Errorf("more than one depth attachment (%s)", d.Label)
			}
			if desc.DepthStencilAttachment, err = ctx.DepthAttachment(id); err != nil {
				return err
			}
		}
	}
	// A depth target that is only read still binds, read-only.
	if desc.DepthStencilAttachment == nil {
		for _, id := range p.ReadIDs {
			if d, err := ctx.Descriptor(id); err == nil && d.Kind == framegraph.KindDepth {
				if desc.DepthStencilAttachment, err = ctx.DepthAttachment(id); err != nil {
					return err
				}
				break
			}
		}
	}
	if len(desc.ColorAttachments) == 0 && desc.DepthStencilAttachment == nil {
		return nil
	}
	ctx.Encoder().BeginRenderPass(desc).End()
	return nil
}

func (p *Declared) compute(ctx *framegraph.PassContext) error {
	for _, id := range p.WriteIDs {
		if _, err := ctx.Descriptor(id); err != nil {
			return err
		}
	}
	ctx.Encoder().BeginComputePass(&hal.ComputePassDescriptor{Label: p.Label}).End()
	return nil
}
