package passes

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/internal/shader"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// fullscreenVertexCount draws one triangle covering the viewport.
const fullscreenVertexCount = 3

// pipelineKey selects a render pipeline built from a program.
type pipelineKey struct {
	entry  string
	format gputypes.TextureFormat
}

// program owns the objects shared by every pipeline built from one WGSL
// source: the shader module, bind group and pipeline layouts, a linear
// sampler and one uniform buffer. Pipelines are built per fragment entry
// point and target format.
type program struct {
	label       string
	source      string
	entries     []gputypes.BindGroupLayoutEntry
	uniformSize uint64

	device     hal.Device
	objs       shader.Objects
	bindLayout hal.BindGroupLayout
	sampler    hal.Sampler
	uniform    hal.Buffer
	pipelines  *framegraph.DerivedCache[pipelineKey, hal.RenderPipeline]
}

func newProgram(label, source string, uniformSize uint64, entries []gputypes.BindGroupLayoutEntry) *program {
	return &program{label: label, source: source, entries: entries, uniformSize: uniformSize}
}

// ensure builds the shared objects on device. A program moved to another
// device drops everything it built on the old one first.
func (p *program) ensure(device hal.Device) error {
	if p.device == device && p.pipelines != nil {
		return nil
	}
	p.release()

	objs := shader.Objects{Device: device}
	if err := p.create(&objs); err != nil {
		objs.Destroy()
		return fmt.Errorf("%s: %w", p.label, err)
	}
	p.objs = objs
	p.device = device
	p.pipelines = framegraph.NewDerivedCache(8, func(k pipelineKey, rp hal.RenderPipeline) {
		framegraph.Logger().Debug("passes: pipeline released", "program", p.label, "entry", k.entry)
		device.DestroyRenderPipeline(rp)
	})
	return nil
}

func (p *program) create(objs *shader.Objects) error {
	module, err := shader.Module(objs.Device, p.label+"_shader", p.source)
	if err != nil {
		return err
	}
	objs.Module = module

	bindLayout, err := objs.Device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   p.label + "_bind_layout",
		Entries: p.entries,
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	objs.BindLayouts = append(objs.BindLayouts, bindLayout)
	p.bindLayout = bindLayout

	layout, err := objs.Device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            p.label + "_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	objs.Layout = layout

	sampler, err := objs.Device.CreateSampler(&hal.SamplerDescriptor{
		Label:        p.label + "_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
		LodMaxClamp:  32,
	})
	if err != nil {
		return fmt.Errorf("create sampler: %w", err)
	}
	objs.Samplers = append(objs.Samplers, sampler)
	p.sampler = sampler

	uniform, err := objs.Device.CreateBuffer(&hal.BufferDescriptor{
		Label: p.label + "_uniforms",
		Size:  p.uniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create uniform buffer: %w", err)
	}
	objs.Buffers = append(objs.Buffers, uniform)
	p.uniform = uniform
	return nil
}

// pipeline returns the render pipeline drawing entry into format targets.
func (p *program) pipeline(entry string, format gputypes.TextureFormat) (hal.RenderPipeline, error) {
	return p.pipelines.GetOrCreate(pipelineKey{entry: entry, format: format}, func() (hal.RenderPipeline, error) {
		rp, err := p.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
			Label:  p.label + "_" + entry,
			Layout: p.objs.Layout,
			Vertex: hal.VertexState{
				Module:     p.objs.Module,
				EntryPoint: "vs_main",
			},
			Primitive: gputypes.PrimitiveState{
				Topology: gputypes.PrimitiveTopologyTriangleList,
				CullMode: gputypes.CullModeNone,
			},
			Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
			Fragment: &hal.FragmentState{
				Module:     p.objs.Module,
				EntryPoint: entry,
				Targets: []gputypes.ColorTargetState{{
					Format:    format,
					WriteMask: gputypes.ColorWriteMaskAll,
				}},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("create %s pipeline %s: %w", p.label, entry, err)
		}
		framegraph.Logger().Debug("passes: pipeline created", "program", p.label, "entry", entry, "format", format)
		return rp, nil
	})
}

// upload writes uniform data at the start of the buffer.
func (p *program) upload(queue hal.Queue, data []byte) error {
	if err := queue.WriteBuffer(p.uniform, 0, data); err != nil {
		return fmt.Errorf("%s: write uniforms: %w", p.label, err)
	}
	return nil
}

// bindGroup creates a bind group from texture views followed by the
// sampler and the uniform buffer, the layout every fullscreen shader here
// shares.
func (p *program) bindGroup(label string, views ...hal.TextureView) (hal.BindGroup, error) {
	entries := make([]gputypes.BindGroupEntry, 0, len(views)+2)
	for i, v := range views {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  uint32(i),
			Resource: gputypes.TextureViewBinding{TextureView: v.NativeHandle()},
		})
	}
	n := uint32(len(views))
	entries = append(entries,
		gputypes.BindGroupEntry{Binding: n, Resource: gputypes.SamplerBinding{Sampler: p.sampler.NativeHandle()}},
		gputypes.BindGroupEntry{Binding: n + 1, Resource: gputypes.BufferBinding{
			Buffer: p.uniform.NativeHandle(),
			Size:   p.uniformSize,
		}},
	)
	bg, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   label,
		Layout:  p.bindLayout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group %s: %w", label, err)
	}
	return bg, nil
}

// destroyBindGroup returns a release callback for bind group caches.
func (p *program) destroyBindGroup(bg hal.BindGroup) {
	if p.device != nil {
		p.device.DestroyBindGroup(bg)
	}
}

// draw records one fullscreen draw into a render pass on ctx's encoder.
func (p *program) draw(ctx *framegraph.PassContext, label string, rp hal.RenderPipeline, bg hal.BindGroup, att hal.RenderPassColorAttachment) {
	pass := ctx.Encoder().BeginRenderPass(&hal.RenderPassDescriptor{
		Label:            label,
		ColorAttachments: []hal.RenderPassColorAttachment{att},
	})
	pass.SetPipeline(rp)
	pass.SetBindGroup(0, bg, nil)
	pass.Draw(fullscreenVertexCount, 1, 0, 0)
	pass.End()
}

func (p *program) release() {
	if p.pipelines != nil {
		p.pipelines.Clear()
		p.pipelines = nil
	}
	p.objs.Destroy()
	p.device = nil
	p.bindLayout = nil
	p.sampler = nil
	p.uniform = nil
}

// sampledTextures returns layout entries for n filterable 2D textures
// followed by a filtering sampler and a uniform buffer.
func sampledTextures(n int) []gputypes.BindGroupLayoutEntry {
	const stages = gputypes.ShaderStageFragment
	entries := make([]gputypes.BindGroupLayoutEntry, 0, n+2)
	for i := range n {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: stages,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		})
	}
	return append(entries,
		gputypes.BindGroupLayoutEntry{
			Binding:    uint32(n),
			Visibility: stages,
			Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
		},
		gputypes.BindGroupLayoutEntry{
			Binding:    uint32(n + 1),
			Visibility: stages,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		},
	)
}

// packFloats lays out float32 uniforms for WGSL structs made of f32 and
// vec2<f32> fields, which pack without padding.
func packFloats(vals ...float32) []byte {
	buf := make([]byte, 0, 4*len(vals))
	for _, v := range vals {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}

// texelSize returns the size of one texel in UV units.
func texelSize(d framegraph.Descriptor) (float32, float32) {
	return 1 / float32(max(d.Width, 1)), 1 / float32(max(d.Height, 1))
}
