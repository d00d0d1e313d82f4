package framegraph

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"
)

// Interval is a half-open range [Start, End) of compiled-order indices.
type Interval struct {
	Start int
	End   int
}

// Overlaps reports whether the two intervals share at least one index.
func (iv Interval) Overlaps(o Interval) bool {
	return iv.Start < o.End && o.Start < iv.End
}

func (iv Interval) String() string { return fmt.Sprintf("[%d, %d)", iv.Start, iv.End) }

// usage is how one access touches a resource on the GPU.
type usage struct {
	texture gputypes.TextureUsage
	buffer  gputypes.BufferUsage
}

// accessUsage maps a declared access to the usage the GPU sees. A depth
// resource without TextureBinding usage is read as a read-only attachment.
func accessUsage(d Descriptor, typ PassType, a access) usage {
	if d.Kind == KindBuffer {
		return usage{buffer: gputypes.BufferUsageStorage}
	}
	switch {
	case a.write && typ == PassCompute:
		return usage{texture: gputypes.TextureUsageStorageBinding}
	case a.write:
		return usage{texture: gputypes.TextureUsageRenderAttachment}
	case d.Kind == KindDepth && !d.Usage.Contains(gputypes.TextureUsageTextureBinding):
		return usage{texture: gputypes.TextureUsageRenderAttachment}
	default:
		return usage{texture: gputypes.TextureUsageTextureBinding}
	}
}

// liveness holds per-resource intervals over the compiled order together
// with the usages at the interval boundaries, which alias barriers need.
type liveness struct {
	intervals  map[ResourceID]Interval
	firstUse   map[ResourceID]usage
	lastUse    map[ResourceID]usage
	transients []ResourceID // sorted by (Start, id)
}

func computeLiveness(order []int, decls []passDecl, reg *registry) (*liveness, error) {
	lv := &liveness{
		intervals: make(map[ResourceID]Interval),
		firstUse:  make(map[ResourceID]usage),
		lastUse:   make(map[ResourceID]usage),
	}
	for oi, di := range order {
		d := decls[di]
		for _, a := range d.access {
			e := reg.entries[a.res]
			u := accessUsage(e.desc, d.typ, a)
			if err := checkUsage(d.name, e, u, a); err != nil {
				return nil, err
			}
			iv, seen := lv.intervals[a.res]
			if !seen {
				iv.Start = oi
				lv.firstUse[a.res] = u
				if e.lifetime == Transient {
					lv.transients = append(lv.transients, a.res)
				}
			}
			iv.End = oi + 1
			lv.intervals[a.res] = iv
			lv.lastUse[a.res] = u
		}
	}

	// External resources are read after the frame ends.
	for id, iv := range lv.intervals {
		if reg.entries[id].lifetime == External {
			iv.End = len(order)
			lv.intervals[id] = iv
		}
	}

	slices.SortFunc(lv.transients, func(a, b ResourceID) int {
		return cmp.Or(cmp.Compare(lv.intervals[a].Start, lv.intervals[b].Start), cmp.Compare(a, b))
	})
	return lv, nil
}

// checkUsage rejects accesses the resource's declared usage cannot serve.
func checkUsage(pass string, e *resourceEntry, u usage, a access) error {
	d := e.desc
	if d.Kind == KindBuffer {
		if a.write && d.BufferUsage&(gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst) == 0 {
			return &DescriptorError{Label: e.label(), Reason: fmt.Sprintf("written by %q without Storage or CopyDst usage", pass)}
		}
		return nil
	}
	if a.write || u.texture == gputypes.TextureUsageRenderAttachment {
		if !d.Usage.Contains(u.texture) {
			return &DescriptorError{Label: e.label(), Reason: fmt.Sprintf("accessed by %q without %s usage", pass, usageName(u.texture))}
		}
		return nil
	}
	if d.Usage&(gputypes.TextureUsageTextureBinding|gputypes.TextureUsageStorageBinding) == 0 {
		return &DescriptorError{Label: e.label(), Reason: fmt.Sprintf("read by %q without TextureBinding or StorageBinding usage", pass)}
	}
	return nil
}

func usageName(u gputypes.TextureUsage) string {
	switch u {
	case gputypes.TextureUsageRenderAttachment:
		return "RenderAttachment"
	case gputypes.TextureUsageStorageBinding:
		return "StorageBinding"
	case gputypes.TextureUsageTextureBinding:
		return "TextureBinding"
	default:
		return fmt.Sprintf("%#x", uint64(u))
	}
}
