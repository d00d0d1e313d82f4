package framegraph

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"
)

// resourceEntry is the registry's record of one resource.
type resourceEntry struct {
	id       ResourceID
	desc     Descriptor
	lifetime Lifetime
	version  uint64

	// Caller-owned objects for External and Imported resources.
	texture hal.Texture
	view    hal.TextureView
	buffer  hal.Buffer
	bindGen uint64
}

func (e *resourceEntry) label() string {
	if e.desc.Label != "" {
		return e.desc.Label
	}
	return e.id.String()
}

func (e *resourceEntry) bound() bool {
	if e.desc.Kind == KindBuffer {
		return e.buffer != nil
	}
	return e.view != nil
}

// registry owns resource descriptors, identities and versions.
// It never touches the GPU.
type registry struct {
	next    ResourceID
	entries map[ResourceID]*resourceEntry
}

func newRegistry() *registry {
	return &registry{entries: make(map[ResourceID]*resourceEntry)}
}

func (r *registry) register(desc Descriptor, lt Lifetime) (ResourceID, error) {
	if lt > Imported {
		return InvalidResource, &DescriptorError{Label: desc.Label, Reason: fmt.Sprintf("unknown lifetime %d", lt)}
	}
	desc = desc.normalized()
	if err := desc.validate(); err != nil {
		return InvalidResource, err
	}
	r.next++
	e := &resourceEntry{id: r.next, desc: desc, lifetime: lt, version: 1}
	r.entries[e.id] = e
	return e.id, nil
}

func (r *registry) get(id ResourceID) (*resourceEntry, error) {
	e, ok := r.entries[id]
	if !ok {
		return nil, &UnknownResourceError{Resource: id}
	}
	return e, nil
}

// update replaces a descriptor. It reports whether the version changed.
func (r *registry) update(id ResourceID, desc Descriptor) (bool, error) {
	e, err := r.get(id)
	if err != nil {
		return false, err
	}
	desc = desc.normalized()
	if desc.Kind != e.desc.Kind {
		return false, &DescriptorError{
			Label:  e.label(),
			Reason: fmt.Sprintf("kind change %v -> %v", e.desc.Kind, desc.Kind),
		}
	}
	if err := desc.validate(); err != nil {
		return false, err
	}
	if desc.Equal(e.desc) {
		return false, nil
	}
	e.desc = desc
	e.version++
	return true, nil
}

func (r *registry) recreate(id ResourceID) error {
	e, err := r.get(id)
	if err != nil {
		return err
	}
	e.version++
	return nil
}

func (r *registry) unregister(id ResourceID) error {
	if _, err := r.get(id); err != nil {
		return err
	}
	delete(r.entries, id)
	return nil
}

func (r *registry) bindTexture(id ResourceID, tex hal.Texture, view hal.TextureView) error {
	e, err := r.bindable(id)
	if err != nil {
		return err
	}
	if !e.desc.Kind.IsTexture() {
		return fmt.Errorf("framegraph: bind texture to %v resource %q", e.desc.Kind, e.label())
	}
	if e.texture != tex || e.view != view {
		e.bindGen++
	}
	e.texture, e.view = tex, view
	return nil
}

func (r *registry) bindBuffer(id ResourceID, buf hal.Buffer) error {
	e, err := r.bindable(id)
	if err != nil {
		return err
	}
	if e.desc.Kind != KindBuffer {
		return fmt.Errorf("framegraph: bind buffer to %v resource %q", e.desc.Kind, e.label())
	}
	if e.buffer != buf {
		e.bindGen++
	}
	e.buffer = buf
	return nil
}

func (r *registry) bindable(id ResourceID) (*resourceEntry, error) {
	e, err := r.get(id)
	if err != nil {
		return nil, err
	}
	if e.lifetime == Transient {
		return nil, fmt.Errorf("framegraph: %q is transient and owned by the graph", e.label())
	}
	return e, nil
}
