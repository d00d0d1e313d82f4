// Package shader compiles the WGSL sources of the stock passes and owns the
// HAL objects built from them.
package shader

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/framegraph/internal/cache"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// compiled memoizes SPIR-V by WGSL source. Each stock pass compiles the
// same few sources, and naga is the slow part of pipeline creation.
var compiled = cache.New[string, []uint32](32, nil)

// Compile translates WGSL to SPIR-V words. Results are memoized per source
// text; a failed compile is not cached.
func Compile(src string) ([]uint32, error) {
	return compiled.GetOrCreate(src, func() ([]uint32, error) {
		b, err := naga.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("compile shader: %w", err)
		}
		if len(b)%4 != 0 {
			return nil, fmt.Errorf("compile shader: SPIR-V length %d is not a word multiple", len(b))
		}
		// SPIR-V is a stream of little-endian 32-bit words.
		words := make([]uint32, len(b)/4)
		for i := range words {
			words[i] = binary.LittleEndian.Uint32(b[i*4:])
		}
		return words, nil
	})
}

// Module compiles src and creates a shader module carrying both the WGSL
// text and its SPIR-V, so backends can pick whichever they consume.
func Module(device hal.Device, label, src string) (hal.ShaderModule, error) {
	spirv, err := Compile(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	m, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{WGSL: src, SPIRV: spirv},
	})
	if err != nil {
		return nil, fmt.Errorf("create shader module %s: %w", label, err)
	}
	return m, nil
}

// Objects collects the HAL objects shared by the pipelines built from one
// shader so they can be destroyed together. Render pipelines live in caches
// and are destroyed by their owners before Destroy runs.
type Objects struct {
	Device          hal.Device
	Module          hal.ShaderModule
	Layout          hal.PipelineLayout
	BindLayouts     []hal.BindGroupLayout
	ComputePipeline hal.ComputePipeline
	Samplers        []hal.Sampler
	Buffers         []hal.Buffer
}

// Destroy releases everything in dependency order, pipeline before layouts
// and layouts before the shader module. It is safe to call twice.
func (o *Objects) Destroy() {
	if o.Device == nil {
		return
	}
	if o.ComputePipeline != nil {
		o.Device.DestroyComputePipeline(o.ComputePipeline)
	}
	if o.Layout != nil {
		o.Device.DestroyPipelineLayout(o.Layout)
	}
	for _, l := range o.BindLayouts {
		if l != nil {
			o.Device.DestroyBindGroupLayout(l)
		}
	}
	if o.Module != nil {
		o.Device.DestroyShaderModule(o.Module)
	}
	for _, s := range o.Samplers {
		if s != nil {
			o.Device.DestroySampler(s)
		}
	}
	for _, b := range o.Buffers {
		if b != nil {
			o.Device.DestroyBuffer(b)
		}
	}
	*o = Objects{}
}
