package passes

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/internal/shader"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/histogram.wgsl
var histogramShaderSource string

const (
	// HistogramBins is the number of luminance buckets.
	HistogramBins = 256
	// HistogramSize is the minimum size in bytes of a histogram buffer.
	HistogramSize = HistogramBins * 4

	histogramWorkgroup = 16
)

// HistogramPass counts the luminance of every texel of Source into Bins, a
// storage buffer of HistogramBins uint32 counters. Bins is cleared before
// each dispatch.
type HistogramPass struct {
	Label  string
	Source framegraph.ResourceID
	Bins   framegraph.ResourceID

	disabled bool
	objs     shader.Objects
	layout   hal.BindGroupLayout
	groups   *framegraph.DerivedCache[histogramKey, hal.BindGroup]
}

type histogramKey struct {
	source, bins framegraph.DerivedKey
}

// NewHistogram creates an enabled histogram pass.
func NewHistogram(label string, source, bins framegraph.ResourceID) *HistogramPass {
	return &HistogramPass{Label: label, Source: source, Bins: bins}
}

func (p *HistogramPass) Name() string { return p.Label }

func (p *HistogramPass) Reads() []framegraph.ResourceID {
	return []framegraph.ResourceID{p.Source}
}

func (p *HistogramPass) Writes() []framegraph.ResourceID {
	return []framegraph.ResourceID{p.Bins}
}

func (p *HistogramPass) Type() framegraph.PassType { return framegraph.PassCompute }

// Enabled reports whether the pass takes part in the next compile.
func (p *HistogramPass) Enabled() bool { return !p.disabled }

// SetEnabled switches the pass on or off.
func (p *HistogramPass) SetEnabled(on bool) { p.disabled = !on }

func (p *HistogramPass) init(device hal.Device) error {
	if p.objs.Device == device && p.objs.ComputePipeline != nil {
		return nil
	}
	p.Release()

	objs := shader.Objects{Device: device}
	if err := p.create(&objs); err != nil {
		objs.Destroy()
		return fmt.Errorf("histogram: %w", err)
	}
	p.objs = objs
	p.layout = objs.BindLayouts[0]
	p.groups = framegraph.NewDerivedCache(4, func(_ histogramKey, bg hal.BindGroup) {
		device.DestroyBindGroup(bg)
	})
	return nil
}

func (p *HistogramPass) create(objs *shader.Objects) error {
	module, err := shader.Module(objs.Device, "histogram_shader", histogramShaderSource)
	if err != nil {
		return err
	}
	objs.Module = module

	layout, err := objs.Device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "histogram_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageCompute,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeUnfilterableFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	objs.BindLayouts = append(objs.BindLayouts, layout)

	pipeLayout, err := objs.Device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "histogram_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{layout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	objs.Layout = pipeLayout

	pipeline, err := objs.Device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   "histogram_pipeline",
		Layout:  pipeLayout,
		Compute: hal.ComputeState{Module: module, EntryPoint: "cs_main"},
	})
	if err != nil {
		return fmt.Errorf("create compute pipeline: %w", err)
	}
	objs.ComputePipeline = pipeline
	return nil
}

func (p *HistogramPass) Execute(ctx *framegraph.PassContext) error {
	if err := p.init(ctx.Device().HAL()); err != nil {
		return err
	}
	src, err := ctx.Descriptor(p.Source)
	if err != nil {
		return err
	}
	bins, err := ctx.Descriptor(p.Bins)
	if err != nil {
		return err
	}
	if bins.Kind != framegraph.KindBuffer || bins.Size < HistogramSize {
		return fmt.Errorf("passes: %s: bins %q must be a buffer of at least %d bytes", p.Label, bins.Label, HistogramSize)
	}
	buf, err := ctx.Buffer(p.Bins)
	if err != nil {
		return err
	}

	key := histogramKey{source: ctx.Key(p.Source), bins: ctx.Key(p.Bins)}
	bg, err := p.groups.GetOrCreate(key, func() (hal.BindGroup, error) {
		view, err := ctx.TextureView(p.Source)
		if err != nil {
			return nil, err
		}
		return p.objs.Device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:  p.Label + "_bind_group",
			Layout: p.layout,
			Entries: []gputypes.BindGroupEntry{
				{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()}},
				{Binding: 1, Resource: gputypes.BufferBinding{Buffer: buf.NativeHandle(), Size: HistogramSize}},
			},
		})
	})
	if err != nil {
		return err
	}

	enc := ctx.Encoder()
	enc.ClearBuffer(buf, 0, HistogramSize)
	cp := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: p.Label})
	cp.SetPipeline(p.objs.ComputePipeline)
	cp.SetBindGroup(0, bg, nil)
	cp.Dispatch(workgroups(src.Width), workgroups(src.Height), 1)
	cp.End()
	return nil
}

func workgroups(n uint32) uint32 {
	return (n + histogramWorkgroup - 1) / histogramWorkgroup
}

// Release destroys the pass's GPU objects.
func (p *HistogramPass) Release() {
	if p.groups != nil {
		p.groups.Clear()
		p.groups = nil
	}
	p.objs.Destroy()
	p.layout = nil
}
