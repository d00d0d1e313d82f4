package desc

import (
	"fmt"
	"strings"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Built maps description names to the ids a build produced.
type Built struct {
	Resources map[string]framegraph.ResourceID
	Passes    map[string]framegraph.PassID

	graph *framegraph.Graph
	owned []func()
}

// Build registers every resource and adds one declarative pass per pass
// entry, in order.
func (g *Graph) Build(fg *framegraph.Graph) (*Built, error) {
	b := &Built{
		Resources: make(map[string]framegraph.ResourceID, len(g.Resources)),
		Passes:    make(map[string]framegraph.PassID, len(g.Passes)),
		graph:     fg,
	}
	for _, r := range g.Resources {
		rb, err := r.builder()
		if err != nil {
			return nil, fmt.Errorf("desc: resource %q: %w", r.Name, err)
		}
		id, err := rb.Register(fg)
		if err != nil {
			return nil, fmt.Errorf("desc: %w", err)
		}
		b.Resources[r.Name] = id
	}
	for _, p := range g.Passes {
		dp, err := p.build(b.Resources)
		if err != nil {
			return nil, fmt.Errorf("desc: pass %q: %w", p.Name, err)
		}
		b.Passes[p.Name] = fg.AddPass(dp)
	}
	return b, nil
}

// SetEnabled toggles a declarative pass by name.
func (b *Built) SetEnabled(name string, on bool) error {
	id, ok := b.Passes[name]
	if !ok {
		return fmt.Errorf("desc: unknown pass %q", name)
	}
	p, ok := framegraph.PassAs[*Declared](b.graph, id)
	if !ok {
		return fmt.Errorf("desc: pass %q is not declarative", name)
	}
	p.Disabled = !on
	return nil
}

// BindPlaceholders creates device objects for every External and Imported
// resource, so a description can execute without a host application.
// Release destroys them. On error nothing created so far is kept.
func (b *Built) BindPlaceholders(dev *framegraph.Device) error {
	for name, id := range b.Resources {
		lt, _ := b.graph.Lifetime(id)
		if lt == framegraph.Transient {
			continue
		}
		d, _ := b.graph.Lookup(id)
		if err := b.bind(dev.HAL(), id, d); err != nil {
			b.Release()
			return fmt.Errorf("desc: bind %q: %w", name, err)
		}
	}
	return nil
}

func (b *Built) bind(device hal.Device, id framegraph.ResourceID, d framegraph.Descriptor) error {
	if d.Kind == framegraph.KindBuffer {
		buf, err := device.CreateBuffer(&hal.BufferDescriptor{Label: d.Label, Size: d.Size, Usage: d.BufferUsage})
		if err != nil {
			return err
		}
		b.owned = append(b.owned, func() { device.DestroyBuffer(buf) })
		return b.graph.BindBuffer(id, buf)
	}

	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         d.Label,
		Size:          hal.Extent3D{Width: d.Width, Height: d.Height, DepthOrArrayLayers: 1},
		MipLevelCount: d.MipLevels,
		SampleCount:   d.SampleCount,
		Dimension:     gputypes.TextureDimension2D,
		Format:        d.Format,
		Usage:         d.Usage,
	})
	if err != nil {
		return err
	}
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{Label: d.Label})
	if err != nil {
		device.DestroyTexture(tex)
		return err
	}
	b.owned = append(b.owned, func() {
		device.DestroyTextureView(view)
		device.DestroyTexture(tex)
	})
	return b.graph.BindTexture(id, tex, view)
}

// Release destroys the placeholders created by BindPlaceholders.
func (b *Built) Release() {
	for _, f := range b.owned {
		f()
	}
	b.owned = nil
}

func (r Resource) builder() (*framegraph.ResourceBuilder, error) {
	var rb *framegraph.ResourceBuilder
	kind := strings.ToLower(r.Kind)
	switch kind {
	case "color", "":
		rb = framegraph.NewColor(r.Name)
	case "depth":
		rb = framegraph.NewDepth(r.Name)
	case "buffer":
		rb = framegraph.NewBuffer(r.Name)
		if r.Size > 0 {
			rb.Length(r.Size)
		}
	default:
		return nil, fmt.Errorf("unknown kind %q", r.Kind)
	}

	switch strings.ToLower(r.Lifetime) {
	case "", "transient":
	case "external":
		rb.External()
	case "imported":
		rb.Imported()
	default:
		return nil, fmt.Errorf("unknown lifetime %q", r.Lifetime)
	}

	if kind == "buffer" {
		if len(r.Usage) > 0 {
			u, err := parseBufferUsage(r.Usage)
			if err != nil {
				return nil, err
			}
			rb.BufferUsage(u)
		}
		return rb, nil
	}

	if r.Format != "" {
		f, err := ParseFormat(r.Format)
		if err != nil {
			return nil, err
		}
		rb.Format(f)
	}
	if r.Width > 0 || r.Height > 0 {
		rb.Size(r.Width, r.Height)
	}
	if r.Samples > 0 {
		rb.Samples(r.Samples)
	}
	if r.Mips > 0 {
		rb.Mips(r.Mips)
	}
	if len(r.Usage) > 0 {
		u, err := parseTextureUsage(r.Usage)
		if err != nil {
			return nil, err
		}
		rb.Usage(u)
	}
	switch len(r.Clear) {
	case 0:
	case 4:
		rb.ClearColor(gputypes.Color{R: r.Clear[0], G: r.Clear[1], B: r.Clear[2], A: r.Clear[3]})
	default:
		return nil, fmt.Errorf("clear has %d components, want 4", len(r.Clear))
	}
	if r.ClearDepth != nil {
		rb.ClearDepth(*r.ClearDepth)
	}
	return rb, nil
}

// ParseFormat resolves a texture format name such as rgba16float or
// Depth24PlusStencil8, ignoring case.
func ParseFormat(name string) (gputypes.TextureFormat, error) {
	for f := gputypes.TextureFormat(1); f < gputypes.TextureFormatBC1RGBAUnorm; f++ {
		if strings.EqualFold(f.String(), name) {
			return f, nil
		}
	}
	return gputypes.TextureFormatUndefined, fmt.Errorf("unknown texture format %q", name)
}

var textureUsages = map[string]gputypes.TextureUsage{
	"copy_src":          gputypes.TextureUsageCopySrc,
	"copy_dst":          gputypes.TextureUsageCopyDst,
	"texture_binding":   gputypes.TextureUsageTextureBinding,
	"storage_binding":   gputypes.TextureUsageStorageBinding,
	"render_attachment": gputypes.TextureUsageRenderAttachment,
}

var bufferUsages = map[string]gputypes.BufferUsage{
	"copy_src": gputypes.BufferUsageCopySrc,
	"copy_dst": gputypes.BufferUsageCopyDst,
	"uniform":  gputypes.BufferUsageUniform,
	"storage":  gputypes.BufferUsageStorage,
	"vertex":   gputypes.BufferUsageVertex,
	"index":    gputypes.BufferUsageIndex,
	"indirect": gputypes.BufferUsageIndirect,
}

func parseTextureUsage(names []string) (gputypes.TextureUsage, error) {
	var u gputypes.TextureUsage
	for _, n := range names {
		bit, ok := textureUsages[strings.ToLower(n)]
		if !ok {
			return 0, fmt.Errorf("unknown texture usage %q", n)
		}
		u |= bit
	}
	return u, nil
}

func parseBufferUsage(names []string) (gputypes.BufferUsage, error) {
	var u gputypes.BufferUsage
	for _, n := range names {
		bit, ok := bufferUsages[strings.ToLower(n)]
		if !ok {
			return 0, fmt.Errorf("unknown buffer usage %q", n)
		}
		u |= bit
	}
	return u, nil
}
