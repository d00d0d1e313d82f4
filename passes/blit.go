package passes

import (
	"fmt"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// BlitPass copies mip 0 of Source into Target. Both textures need copy
// usage and the same format; the copied region is the overlap of their
// sizes.
type BlitPass struct {
	Label  string
	Source framegraph.ResourceID
	Target framegraph.ResourceID
}

func (p *BlitPass) Name() string { return p.Label }

func (p *BlitPass) Reads() []framegraph.ResourceID {
	return []framegraph.ResourceID{p.Source}
}

func (p *BlitPass) Writes() []framegraph.ResourceID {
	return []framegraph.ResourceID{p.Target}
}

func (p *BlitPass) Execute(ctx *framegraph.PassContext) error {
	src, err := ctx.Descriptor(p.Source)
	if err != nil {
		return err
	}
	dst, err := ctx.Descriptor(p.Target)
	if err != nil {
		return err
	}
	if err := checkBlit(src, dst); err != nil {
		return fmt.Errorf("passes: %s: %w", p.Label, err)
	}
	srcTex, err := ctx.Texture(p.Source)
	if err != nil {
		return err
	}
	dstTex, err := ctx.Texture(p.Target)
	if err != nil {
		return err
	}

	ctx.Encoder().CopyTextureToTexture(srcTex, dstTex, []hal.TextureCopy{{
		SrcBase: hal.ImageCopyTexture{Texture: srcTex, Aspect: gputypes.TextureAspectAll},
		DstBase: hal.ImageCopyTexture{Texture: dstTex, Aspect: gputypes.TextureAspectAll},
		Size: hal.Extent3D{
			Width:              min(src.Width, dst.Width),
			Height:             min(src.Height, dst.Height),
			DepthOrArrayLayers: 1,
		},
	}})
	return nil
}

func checkBlit(src, dst framegraph.Descriptor) error {
	switch {
	case !src.Kind.IsTexture() || !dst.Kind.IsTexture():
		return fmt.Errorf("blit needs textures, got %s and %s", src.Kind, dst.Kind)
	case !src.Usage.Contains(gputypes.TextureUsageCopySrc):
		return fmt.Errorf("source %q lacks CopySrc usage", src.Label)
	case !dst.Usage.Contains(gputypes.TextureUsageCopyDst):
		return fmt.Errorf("target %q lacks CopyDst usage", dst.Label)
	case src.Format != dst.Format:
		return fmt.Errorf("format mismatch %v -> %v", src.Format, dst.Format)
	case src.SampleCount != dst.SampleCount:
		return fmt.Errorf("sample count mismatch %d -> %d", src.SampleCount, dst.SampleCount)
	}
	return nil
}
