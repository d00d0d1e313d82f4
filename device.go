package framegraph

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// Device is the GPU device and queue a graph executes against.
// The graph creates pool allocations and command encoders on it; it never
// submits. Submission is the caller's decision.
type Device struct {
	device hal.Device
	queue  hal.Queue
	name   string

	// instance is set when the Device opened its own backend.
	instance hal.Instance
}

// NewDevice wraps an already opened HAL device and queue.
func NewDevice(device hal.Device, queue hal.Queue) (*Device, error) {
	if device == nil || queue == nil {
		return nil, errors.New("framegraph: nil device or queue")
	}
	return &Device{device: device, queue: queue}, nil
}

// DeviceFromProvider adopts the device shared by a host application.
// The provider must expose HAL handles, either through HalDevice/HalQueue
// accessors or by returning hal types from Device and Queue.
func DeviceFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	if provider == nil {
		return nil, errors.New("framegraph: nil device provider")
	}
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}

	var dev, queue any = provider.Device(), provider.Queue()
	if hp, ok := provider.(halProvider); ok {
		dev, queue = hp.HalDevice(), hp.HalQueue()
	}
	d, ok := dev.(hal.Device)
	if !ok || d == nil {
		return nil, fmt.Errorf("framegraph: provider device %T is not hal.Device", dev)
	}
	q, ok := queue.(hal.Queue)
	if !ok || q == nil {
		return nil, fmt.Errorf("framegraph: provider queue %T is not hal.Queue", queue)
	}
	return &Device{device: d, queue: q, name: provider.AdapterInfo().Name}, nil
}

// OpenNoopDevice opens the headless noop backend. Every call succeeds and
// records nothing; it is used for planning, validation and tests.
func OpenNoopDevice() (*Device, error) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("framegraph: create noop instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, errors.New("framegraph: noop backend exposes no adapter")
	}
	open, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("framegraph: open noop device: %w", err)
	}
	return &Device{
		device:   open.Device,
		queue:    open.Queue,
		name:     adapters[0].Info.Name,
		instance: instance,
	}, nil
}

// HAL returns the underlying device.
func (d *Device) HAL() hal.Device { return d.device }

// Queue returns the underlying queue.
func (d *Device) Queue() hal.Queue { return d.queue }

// Name returns the adapter name when known.
func (d *Device) Name() string { return d.name }

// Submit submits command buffers in order and returns the submission index.
func (d *Device) Submit(cmds []hal.CommandBuffer) (uint64, error) {
	if len(cmds) == 0 {
		return 0, nil
	}
	idx, err := d.queue.Submit(cmds)
	if err != nil {
		return 0, fmt.Errorf("framegraph: submit: %w", err)
	}
	return idx, nil
}

// Release frees command buffers that will not be (or have finished being)
// executed.
func (d *Device) Release(cmds []hal.CommandBuffer) {
	for _, cb := range cmds {
		if cb != nil {
			d.device.FreeCommandBuffer(cb)
		}
	}
}

// Close destroys the device if this Device opened it. Devices wrapped with
// NewDevice or DeviceFromProvider belong to the caller and are left alone.
func (d *Device) Close() {
	if d.instance == nil {
		return
	}
	d.device.Destroy()
	d.instance.Destroy()
	d.instance = nil
}
