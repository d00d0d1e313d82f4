package framegraph

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// Caller-owned objects with distinct identities. The noop types are
// zero-sized, so two of them may compare equal.
type (
	fakeTexture struct {
		noop.Texture
		n int
	}
	fakeView struct {
		noop.Resource
		n int
	}
	fakeBuffer struct {
		noop.Resource
		n int
	}
)

// testPass is a configurable pass that records what the executor did to it.
type testPass struct {
	name     string
	reads    []ResourceID
	writes   []ResourceID
	rw       []ResourceID
	typ      PassType
	disabled bool

	exec     func(ctx *PassContext) error
	prepare  func(ctx *PrepareContext) error
	executed int
	prepared int
}

func (p *testPass) Name() string             { return p.name }
func (p *testPass) Reads() []ResourceID      { return p.reads }
func (p *testPass) Writes() []ResourceID     { return p.writes }
func (p *testPass) ReadWrites() []ResourceID { return p.rw }
func (p *testPass) Type() PassType           { return p.typ }
func (p *testPass) Enabled() bool            { return !p.disabled }

func (p *testPass) Prepare(ctx *PrepareContext) error {
	p.prepared++
	if p.prepare != nil {
		return p.prepare(ctx)
	}
	return nil
}

func (p *testPass) Execute(ctx *PassContext) error {
	p.executed++
	if p.exec != nil {
		return p.exec(ctx)
	}
	return nil
}

func mustRegister(t testing.TB, g *Graph, b *ResourceBuilder) ResourceID {
	t.Helper()
	id, err := b.Register(g)
	if err != nil {
		t.Fatalf("Register(%q) = %v", b.desc.Label, err)
	}
	return id
}

func mustCompile(t testing.TB, g *Graph) *CompiledGraph {
	t.Helper()
	if err := g.Compile(); err != nil {
		t.Fatalf("Compile() = %v", err)
	}
	return g.Compiled()
}

// newNoopDevice opens the noop backend and closes it when the test ends.
func newNoopDevice(t testing.TB) *Device {
	t.Helper()
	dev, err := OpenNoopDevice()
	if err != nil {
		t.Fatalf("OpenNoopDevice() = %v", err)
	}
	t.Cleanup(dev.Close)
	return dev
}

// bindSwapchain registers an External color target and binds a texture
// created on dev to it.
func bindSwapchain(t testing.TB, g *Graph, dev *Device, w, h uint32) ResourceID {
	t.Helper()
	id := mustRegister(t, g, NewColor("swapchain").
		Format(gputypes.TextureFormatBGRA8Unorm).
		Size(w, h).
		External())
	tex, view := createTexture(t, dev, w, h)
	if err := g.BindTexture(id, tex, view); err != nil {
		t.Fatalf("BindTexture() = %v", err)
	}
	return id
}

func createTexture(t testing.TB, dev *Device, w, h uint32) (hal.Texture, hal.TextureView) {
	t.Helper()
	tex, err := dev.HAL().CreateTexture(&hal.TextureDescriptor{
		Label:         "test-target",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		t.Fatalf("CreateTexture() = %v", err)
	}
	view, err := dev.HAL().CreateTextureView(tex, &hal.TextureViewDescriptor{Label: "test-target"})
	if err != nil {
		t.Fatalf("CreateTextureView() = %v", err)
	}
	return tex, view
}
