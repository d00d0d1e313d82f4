package framegraph

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// ResourceID identifies a registered resource. IDs are never reused within
// one graph; the zero value is never issued.
type ResourceID uint32

// InvalidResource is the zero ResourceID.
const InvalidResource ResourceID = 0

func (id ResourceID) String() string { return fmt.Sprintf("resource#%d", uint32(id)) }

// ResourceKind distinguishes the attachment classes the graph manages.
type ResourceKind uint8

const (
	// KindColor is a color attachment texture.
	KindColor ResourceKind = iota
	// KindDepth is a depth and/or stencil attachment texture.
	KindDepth
	// KindBuffer is a storage buffer written by compute or render passes.
	KindBuffer
)

func (k ResourceKind) String() string {
	switch k {
	case KindColor:
		return "Color"
	case KindDepth:
		return "Depth"
	case KindBuffer:
		return "Buffer"
	default:
		return "Unknown"
	}
}

// IsTexture reports whether the kind is backed by a texture.
func (k ResourceKind) IsTexture() bool { return k == KindColor || k == KindDepth }

// Lifetime describes who owns a resource's backing memory.
type Lifetime uint8

const (
	// Transient resources are owned by the graph, which may alias their
	// memory with other transients whose lifetimes do not overlap.
	Transient Lifetime = iota
	// External resources are owned by the caller (e.g. the swapchain).
	// They are never aliased and always count as read after the frame.
	External
	// Imported resources are owned by the caller and take part in
	// dependency tracking but are never reallocated by the graph.
	Imported
)

func (l Lifetime) String() string {
	switch l {
	case Transient:
		return "Transient"
	case External:
		return "External"
	case Imported:
		return "Imported"
	default:
		return "Unknown"
	}
}

// ClearValue is the value a resource is cleared to on its first write.
// Color applies to color resources, Depth and Stencil to depth resources.
type ClearValue struct {
	Color   gputypes.Color
	Depth   float32
	Stencil uint32
}

// Descriptor describes a resource. Texture fields apply to KindColor and
// KindDepth, Size and BufferUsage to KindBuffer.
type Descriptor struct {
	Label string
	Kind  ResourceKind

	Format      gputypes.TextureFormat
	Width       uint32
	Height      uint32
	SampleCount uint32
	MipLevels   uint32
	Usage       gputypes.TextureUsage

	Size        uint64
	BufferUsage gputypes.BufferUsage

	// Clear, when set, makes the first write of each frame clear the
	// resource instead of loading or discarding its previous contents.
	Clear *ClearValue
}

// normalized fills defaulted texture fields.
func (d Descriptor) normalized() Descriptor {
	if d.Kind.IsTexture() {
		if d.SampleCount == 0 {
			d.SampleCount = 1
		}
		if d.MipLevels == 0 {
			d.MipLevels = 1
		}
	}
	if d.Clear != nil {
		c := *d.Clear
		d.Clear = &c
	}
	return d
}

// Equal reports whether two descriptors describe the same resource.
func (d Descriptor) Equal(o Descriptor) bool {
	if (d.Clear == nil) != (o.Clear == nil) {
		return false
	}
	if d.Clear != nil && *d.Clear != *o.Clear {
		return false
	}
	a, b := d, o
	a.Clear, b.Clear = nil, nil
	return a == b
}

// Bytes estimates the memory footprint of the resource, including the full
// mip chain and every sample.
func (d Descriptor) Bytes() uint64 {
	if d.Kind == KindBuffer {
		return d.Size
	}
	texel := uint64(bytesPerTexel(d.Format))
	samples := uint64(max(d.SampleCount, 1))
	w, h := uint64(d.Width), uint64(d.Height)
	var total uint64
	for range max(d.MipLevels, 1) {
		total += w * h * texel * samples
		w, h = max(w/2, 1), max(h/2, 1)
	}
	return total
}

// validate checks the descriptor for internal consistency.
func (d Descriptor) validate() error {
	fail := func(format string, args ...any) error {
		return &DescriptorError{Label: d.Label, Reason: fmt.Sprintf(format, args...)}
	}

	switch d.Kind {
	case KindColor, KindDepth:
		if d.Width == 0 || d.Height == 0 {
			return fail("zero-sized texture %dx%d", d.Width, d.Height)
		}
		if d.Format == gputypes.TextureFormatUndefined {
			return fail("undefined format")
		}
		if d.Format >= gputypes.TextureFormatBC1RGBAUnorm {
			return fail("compressed format %v cannot be an attachment", d.Format)
		}
		if d.Kind == KindColor && d.Format.IsDepthStencil() {
			return fail("color resource with depth format %v", d.Format)
		}
		if d.Kind == KindDepth && !d.Format.IsDepthStencil() {
			return fail("depth resource with color format %v", d.Format)
		}
		if d.Usage.ContainsUnknownBits() {
			return fail("unknown usage bits %#x", uint64(d.Usage))
		}
		const attachable = gputypes.TextureUsageRenderAttachment |
			gputypes.TextureUsageStorageBinding | gputypes.TextureUsageTextureBinding
		if d.Usage&attachable == 0 {
			return fail("usage %#x has no attachment, storage or sampled bit", uint64(d.Usage))
		}
		if d.Kind == KindDepth && d.Usage.Contains(gputypes.TextureUsageStorageBinding) {
			return fail("depth formats cannot be storage bound")
		}
		if d.SampleCount != 1 && d.SampleCount != 4 {
			return fail("sample count %d, want 1 or 4", d.SampleCount)
		}
		if d.MipLevels == 0 {
			return fail("zero mip levels")
		}
		if d.SampleCount > 1 && d.MipLevels > 1 {
			return fail("multisampled textures cannot have mips")
		}
		if d.Clear != nil && d.Kind == KindDepth && (d.Clear.Depth < 0 || d.Clear.Depth > 1) {
			return fail("depth clear %v outside [0, 1]", d.Clear.Depth)
		}
	case KindBuffer:
		if d.Size == 0 {
			return fail("zero-sized buffer")
		}
		if d.Size%4 != 0 {
			return fail("buffer size %d is not 4-byte aligned", d.Size)
		}
		if d.BufferUsage == gputypes.BufferUsageNone {
			return fail("buffer without usage")
		}
		if d.BufferUsage.ContainsUnknownBits() {
			return fail("unknown buffer usage bits %#x", uint64(d.BufferUsage))
		}
		if d.Clear != nil {
			return fail("buffers have no clear value")
		}
	default:
		return fail("unknown kind %d", d.Kind)
	}
	return nil
}

// bytesPerTexel covers the uncompressed formats accepted by validate.
func bytesPerTexel(f gputypes.TextureFormat) uint32 {
	switch f {
	case gputypes.TextureFormatR8Unorm, gputypes.TextureFormatR8Snorm,
		gputypes.TextureFormatR8Uint, gputypes.TextureFormatR8Sint,
		gputypes.TextureFormatStencil8:
		return 1
	case gputypes.TextureFormatR16Unorm, gputypes.TextureFormatR16Snorm,
		gputypes.TextureFormatR16Uint, gputypes.TextureFormatR16Sint,
		gputypes.TextureFormatR16Float, gputypes.TextureFormatRG8Unorm,
		gputypes.TextureFormatRG8Snorm, gputypes.TextureFormatRG8Uint,
		gputypes.TextureFormatRG8Sint, gputypes.TextureFormatDepth16Unorm:
		return 2
	case gputypes.TextureFormatRG32Float, gputypes.TextureFormatRG32Uint,
		gputypes.TextureFormatRG32Sint, gputypes.TextureFormatRGBA16Unorm,
		gputypes.TextureFormatRGBA16Snorm, gputypes.TextureFormatRGBA16Uint,
		gputypes.TextureFormatRGBA16Sint, gputypes.TextureFormatRGBA16Float,
		gputypes.TextureFormatDepth32FloatStencil8:
		return 8
	case gputypes.TextureFormatRGBA32Float, gputypes.TextureFormatRGBA32Uint,
		gputypes.TextureFormatRGBA32Sint:
		return 16
	default:
		return 4
	}
}
