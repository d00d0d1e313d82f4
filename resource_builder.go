package framegraph

import "github.com/gogpu/gputypes"

// ResourceBuilder assembles a Descriptor and Lifetime with chained setters.
//
// Defaults: color resources are RGBA8UnormSrgb, 1x1, usable as render
// attachment and sampled texture; depth resources are Depth32Float
// render attachments; buffers are 256 bytes with Storage|CopyDst usage.
// All resources default to Transient.
//
// Example:
//
//	depth, err := framegraph.NewDepth("depth").
//	    Size(1920, 1080).
//	    ClearDepth(1.0).
//	    Register(g)
type ResourceBuilder struct {
	desc     Descriptor
	lifetime Lifetime
}

// NewColor starts a color attachment description.
func NewColor(label string) *ResourceBuilder {
	return &ResourceBuilder{desc: Descriptor{
		Label:       label,
		Kind:        KindColor,
		Format:      gputypes.TextureFormatRGBA8UnormSrgb,
		Width:       1,
		Height:      1,
		SampleCount: 1,
		MipLevels:   1,
		Usage:       gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding,
	}}
}

// NewDepth starts a depth/stencil attachment description.
func NewDepth(label string) *ResourceBuilder {
	return &ResourceBuilder{desc: Descriptor{
		Label:       label,
		Kind:        KindDepth,
		Format:      gputypes.TextureFormatDepth32Float,
		Width:       1,
		Height:      1,
		SampleCount: 1,
		MipLevels:   1,
		Usage:       gputypes.TextureUsageRenderAttachment,
	}}
}

// NewBuffer starts a storage buffer description.
func NewBuffer(label string) *ResourceBuilder {
	return &ResourceBuilder{desc: Descriptor{
		Label:       label,
		Kind:        KindBuffer,
		Size:        256,
		BufferUsage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	}}
}

func (b *ResourceBuilder) Format(f gputypes.TextureFormat) *ResourceBuilder {
	b.desc.Format = f
	return b
}

func (b *ResourceBuilder) Size(width, height uint32) *ResourceBuilder {
	b.desc.Width, b.desc.Height = width, height
	return b
}

// Length sets the byte size of a buffer.
func (b *ResourceBuilder) Length(n uint64) *ResourceBuilder {
	b.desc.Size = n
	return b
}

func (b *ResourceBuilder) Usage(u gputypes.TextureUsage) *ResourceBuilder {
	b.desc.Usage = u
	return b
}

func (b *ResourceBuilder) BufferUsage(u gputypes.BufferUsage) *ResourceBuilder {
	b.desc.BufferUsage = u
	return b
}

func (b *ResourceBuilder) Samples(n uint32) *ResourceBuilder {
	b.desc.SampleCount = n
	return b
}

func (b *ResourceBuilder) Mips(n uint32) *ResourceBuilder {
	b.desc.MipLevels = n
	return b
}

func (b *ResourceBuilder) ClearColor(c gputypes.Color) *ResourceBuilder {
	b.clear().Color = c
	return b
}

func (b *ResourceBuilder) ClearDepth(d float32) *ResourceBuilder {
	b.clear().Depth = d
	return b
}

func (b *ResourceBuilder) ClearStencil(s uint32) *ResourceBuilder {
	b.clear().Stencil = s
	return b
}

func (b *ResourceBuilder) clear() *ClearValue {
	if b.desc.Clear == nil {
		b.desc.Clear = &ClearValue{}
	}
	return b.desc.Clear
}

func (b *ResourceBuilder) Transient() *ResourceBuilder {
	b.lifetime = Transient
	return b
}

func (b *ResourceBuilder) External() *ResourceBuilder {
	b.lifetime = External
	return b
}

func (b *ResourceBuilder) Imported() *ResourceBuilder {
	b.lifetime = Imported
	return b
}

// Descriptor returns a copy of the assembled descriptor and its lifetime.
func (b *ResourceBuilder) Descriptor() (Descriptor, Lifetime) {
	return b.desc.normalized(), b.lifetime
}

// Register registers the described resource with g.
func (b *ResourceBuilder) Register(g *Graph) (ResourceID, error) {
	desc, lt := b.Descriptor()
	return g.Register(desc, lt)
}
