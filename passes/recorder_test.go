package passes

import (
	"fmt"
	"strings"
	"testing"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// recorder wraps the noop device and logs what passes record, since the
// noop encoders keep nothing.
type recorder struct {
	hal.Device
	log        []string
	pipelines  int
	bindGroups int
	destroyed  int
}

func (r *recorder) logf(format string, args ...any) {
	r.log = append(r.log, fmt.Sprintf(format, args...))
}

// take returns the log recorded since the last call.
func (r *recorder) take() []string {
	l := r.log
	r.log = nil
	return l
}

func (r *recorder) CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	r.pipelines++
	return r.Device.CreateRenderPipeline(desc)
}

func (r *recorder) CreateComputePipeline(desc *hal.ComputePipelineDescriptor) (hal.ComputePipeline, error) {
	r.pipelines++
	return r.Device.CreateComputePipeline(desc)
}

func (r *recorder) CreateBindGroup(desc *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	r.bindGroups++
	return r.Device.CreateBindGroup(desc)
}

func (r *recorder) DestroyBindGroup(bg hal.BindGroup) {
	r.destroyed++
	r.Device.DestroyBindGroup(bg)
}

func (r *recorder) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	enc, err := r.Device.CreateCommandEncoder(desc)
	if err != nil {
		return nil, err
	}
	return &recEncoder{CommandEncoder: enc, r: r}, nil
}

type recEncoder struct {
	hal.CommandEncoder
	r *recorder
}

func (e *recEncoder) BeginRenderPass(desc *hal.RenderPassDescriptor) hal.RenderPassEncoder {
	var b strings.Builder
	fmt.Fprintf(&b, "render %s", desc.Label)
	for _, c := range desc.ColorAttachments {
		fmt.Fprintf(&b, " color=%v/%v", c.LoadOp, c.StoreOp)
	}
	if d := desc.DepthStencilAttachment; d != nil {
		fmt.Fprintf(&b, " depth=%v/%v", d.DepthLoadOp, d.DepthStoreOp)
	}
	e.r.log = append(e.r.log, b.String())
	return &recRenderPass{RenderPassEncoder: e.CommandEncoder.BeginRenderPass(desc), r: e.r}
}

func (e *recEncoder) BeginComputePass(desc *hal.ComputePassDescriptor) hal.ComputePassEncoder {
	e.r.logf("compute %s", desc.Label)
	return &recComputePass{ComputePassEncoder: e.CommandEncoder.BeginComputePass(desc), r: e.r}
}

func (e *recEncoder) ClearBuffer(buf hal.Buffer, offset, size uint64) {
	e.r.logf("clear %d", size)
	e.CommandEncoder.ClearBuffer(buf, offset, size)
}

func (e *recEncoder) CopyTextureToTexture(src, dst hal.Texture, regions []hal.TextureCopy) {
	for _, rg := range regions {
		e.r.logf("copy %dx%d", rg.Size.Width, rg.Size.Height)
	}
	e.CommandEncoder.CopyTextureToTexture(src, dst, regions)
}

type recRenderPass struct {
	hal.RenderPassEncoder
	r *recorder
}

func (p *recRenderPass) Draw(vertices, instances, firstVertex, firstInstance uint32) {
	p.r.logf("draw %d", vertices)
	p.RenderPassEncoder.Draw(vertices, instances, firstVertex, firstInstance)
}

type recComputePass struct {
	hal.ComputePassEncoder
	r *recorder
}

func (p *recComputePass) Dispatch(x, y, z uint32) {
	p.r.logf("dispatch %d %d %d", x, y, z)
	p.ComputePassEncoder.Dispatch(x, y, z)
}

// recQueue keeps every uniform upload.
type recQueue struct {
	hal.Queue
	writes [][]byte
}

func (q *recQueue) WriteBuffer(buf hal.Buffer, offset uint64, data []byte) error {
	q.writes = append(q.writes, append([]byte(nil), data...))
	return q.Queue.WriteBuffer(buf, offset, data)
}

// rig is a graph on a recording noop device with a bound 64x32 swapchain.
type rig struct {
	g         *framegraph.Graph
	dev       *framegraph.Device
	rec       *recorder
	queue     *recQueue
	swapchain framegraph.ResourceID
}

func newRig(t *testing.T, swapchainUsage gputypes.TextureUsage) *rig {
	t.Helper()
	base, err := framegraph.OpenNoopDevice()
	if err != nil {
		t.Fatalf("OpenNoopDevice() = %v", err)
	}
	t.Cleanup(base.Close)

	r := &rig{
		g:     framegraph.New(),
		rec:   &recorder{Device: base.HAL()},
		queue: &recQueue{Queue: base.Queue()},
	}
	if r.dev, err = framegraph.NewDevice(r.rec, r.queue); err != nil {
		t.Fatal(err)
	}
	r.swapchain = r.register(t, framegraph.NewColor("swapchain").
		Format(gputypes.TextureFormatBGRA8Unorm).
		Size(64, 32).
		Usage(swapchainUsage).
		External())
	tex, err := base.HAL().CreateTexture(&hal.TextureDescriptor{
		Label:         "swapchain",
		Size:          hal.Extent3D{Width: 64, Height: 32, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Usage:         swapchainUsage,
	})
	if err != nil {
		t.Fatal(err)
	}
	view, err := base.HAL().CreateTextureView(tex, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.g.BindTexture(r.swapchain, tex, view); err != nil {
		t.Fatal(err)
	}
	return r
}

func (r *rig) register(t *testing.T, b *framegraph.ResourceBuilder) framegraph.ResourceID {
	t.Helper()
	id, err := b.Register(r.g)
	if err != nil {
		t.Fatalf("Register() = %v", err)
	}
	return id
}

// hdr registers a 64x32 RGBA16Float color target cleared to black.
func (r *rig) hdr(t *testing.T, label string) framegraph.ResourceID {
	t.Helper()
	return r.register(t, framegraph.NewColor(label).
		Format(gputypes.TextureFormatRGBA16Float).
		Size(64, 32).
		ClearColor(gputypes.Color{A: 1}))
}

// render executes one frame and returns what was recorded.
func (r *rig) render(t *testing.T) []string {
	t.Helper()
	r.rec.take()
	cmds, err := r.g.Render(r.dev)
	if err != nil {
		t.Fatalf("Render() = %v", err)
	}
	if _, err := r.dev.Submit(cmds); err != nil {
		t.Fatal(err)
	}
	r.dev.Release(cmds)
	return r.rec.take()
}

// lastWrite returns the most recent uniform upload.
func (r *rig) lastWrite(t *testing.T) []byte {
	t.Helper()
	if len(r.queue.writes) == 0 {
		t.Fatal("no uniform uploads")
	}
	return r.queue.writes[len(r.queue.writes)-1]
}

func containsAll(t *testing.T, log []string, want ...string) {
	t.Helper()
	for _, w := range want {
		found := false
		for _, l := range log {
			if l == w {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("recorded %q missing from:\n%s", w, strings.Join(log, "\n"))
		}
	}
}
