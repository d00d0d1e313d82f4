package framegraph

import "github.com/gogpu/gputypes"

// LoadOp says how an attachment's previous contents are initialized when a
// pass begins writing it.
type LoadOp uint8

const (
	// LoadLoad preserves the previous contents.
	LoadLoad LoadOp = iota
	// LoadClear fills the attachment with its clear value.
	LoadClear
	// LoadDontCare leaves the contents undefined; the pass overwrites them.
	LoadDontCare
)

func (op LoadOp) String() string {
	switch op {
	case LoadLoad:
		return "Load"
	case LoadClear:
		return "Clear"
	case LoadDontCare:
		return "DontCare"
	default:
		return "Unknown"
	}
}

// StoreOp says whether an attachment's contents survive the pass.
type StoreOp uint8

const (
	// StoreStore keeps the written contents.
	StoreStore StoreOp = iota
	// StoreDiscard lets the contents be dropped after the pass.
	StoreDiscard
)

func (op StoreOp) String() string {
	switch op {
	case StoreStore:
		return "Store"
	case StoreDiscard:
		return "Discard"
	default:
		return "Unknown"
	}
}

// AttachmentOps are the load and store decisions for one pass writing one
// texture resource.
type AttachmentOps struct {
	Load  LoadOp
	Store StoreOp
	Clear ClearValue
}

// GPULoad maps the decision onto the WebGPU load op. WebGPU has no
// don't-care load; clearing to the zero value is the cheapest legal choice
// on tiled GPUs.
func (o AttachmentOps) GPULoad() gputypes.LoadOp {
	if o.Load == LoadLoad {
		return gputypes.LoadOpLoad
	}
	return gputypes.LoadOpClear
}

func (o AttachmentOps) GPUStore() gputypes.StoreOp {
	if o.Store == StoreDiscard {
		return gputypes.StoreOpDiscard
	}
	return gputypes.StoreOpStore
}

type opKey struct {
	pass PassID
	res  ResourceID
}

// computeOps decides load and store ops for every texture write of the
// surviving passes. Store is per version: a write whose value no surviving
// pass reads is discarded unless the caller owns the resource.
func computeOps(order []int, decls []passDecl, producers []map[ResourceID]int, reg *registry) map[opKey]AttachmentOps {
	type version struct {
		writer int
		res    ResourceID
	}
	consumed := make(map[version]bool)
	for _, di := range order {
		for res, w := range producers[di] {
			consumed[version{writer: w, res: res}] = true
		}
	}

	ops := make(map[opKey]AttachmentOps)
	written := make(map[ResourceID]bool)
	for _, di := range order {
		d := decls[di]
		for _, a := range d.access {
			e := reg.entries[a.res]
			if !a.write || !e.desc.Kind.IsTexture() {
				continue
			}
			first := !written[a.res]
			written[a.res] = true

			var op AttachmentOps
			switch {
			case a.read:
				op.Load = LoadLoad
			case first && e.desc.Clear != nil:
				op.Load = LoadClear
				op.Clear = *e.desc.Clear
			case first && e.lifetime == Transient:
				op.Load = LoadDontCare
			default:
				op.Load = LoadLoad
			}

			op.Store = StoreDiscard
			if e.lifetime != Transient || consumed[version{writer: di, res: a.res}] {
				op.Store = StoreStore
			}
			ops[opKey{pass: d.id, res: a.res}] = op
		}
	}
	return ops
}
