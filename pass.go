package framegraph

import "fmt"

// PassID identifies a pass within one graph. IDs are issued in declaration
// order and never reused, even after RemovePass.
type PassID uint32

func (id PassID) String() string { return fmt.Sprintf("pass#%d", uint32(id)) }

// Pass is a unit of GPU work. Reads and Writes are queried at the start of
// every compile and must reflect the pass's current state; a pass that
// stops reading a resource (for example because a feature is toggled off)
// lets the compiler cull that resource's producer.
//
// Execute records the pass's commands into ctx.Encoder(). It must not
// touch resources it did not declare.
type Pass interface {
	Name() string
	Reads() []ResourceID
	Writes() []ResourceID
	Execute(ctx *PassContext) error
}

// ReadWriter is implemented by passes that modify a resource in place,
// e.g. blending over the swapchain. Each returned id counts as both read
// and written, and its attachment is always loaded.
type ReadWriter interface {
	ReadWrites() []ResourceID
}

// Preparer is implemented by passes that need per-frame setup before any
// command is recorded, such as uploading uniforms through the queue.
type Preparer interface {
	Prepare(ctx *PrepareContext) error
}

// Toggler is implemented by passes that can be switched off. A disabled
// pass declares nothing for that compile and is culled.
type Toggler interface {
	Enabled() bool
}

// PassType tells which queue family a pass targets.
type PassType uint8

const (
	PassRender PassType = iota
	PassCompute
)

func (t PassType) String() string {
	if t == PassCompute {
		return "Compute"
	}
	return "Render"
}

// Typed is implemented by passes that are not render passes.
type Typed interface {
	Type() PassType
}

func passType(p Pass) PassType {
	if t, ok := p.(Typed); ok {
		return t.Type()
	}
	return PassRender
}

// passArena owns every registered pass. Index = PassID, nil = removed.
type passArena struct {
	slots []Pass
	live  int
}

func (a *passArena) add(p Pass) PassID {
	a.slots = append(a.slots, p)
	a.live++
	return PassID(len(a.slots) - 1)
}

func (a *passArena) get(id PassID) (Pass, bool) {
	if int(id) >= len(a.slots) || a.slots[id] == nil {
		return nil, false
	}
	return a.slots[id], true
}

func (a *passArena) remove(id PassID) bool {
	if _, ok := a.get(id); !ok {
		return false
	}
	a.slots[id] = nil
	a.live--
	return true
}

// PassAs returns the pass registered under id as its concrete type.
// It reports false if the id is unknown or the pass is of another type.
//
// Example:
//
//	if bloom, ok := framegraph.PassAs[*passes.BloomPass](g, bloomID); ok {
//	    bloom.Threshold = 1.2
//	}
func PassAs[T Pass](g *Graph, id PassID) (T, bool) {
	var zero T
	p, ok := g.passes.get(id)
	if !ok {
		return zero, false
	}
	t, ok := p.(T)
	return t, ok
}

// FuncPass adapts a closure and static declarations to Pass.
// Mutating ReadIDs or WriteIDs between compiles changes the graph.
type FuncPass struct {
	Label    string
	ReadIDs  []ResourceID
	WriteIDs []ResourceID
	RWIDs    []ResourceID
	Kind     PassType
	Fn       func(ctx *PassContext) error
}

func (p *FuncPass) Name() string             { return p.Label }
func (p *FuncPass) Reads() []ResourceID      { return p.ReadIDs }
func (p *FuncPass) Writes() []ResourceID     { return p.WriteIDs }
func (p *FuncPass) ReadWrites() []ResourceID { return p.RWIDs }
func (p *FuncPass) Type() PassType           { return p.Kind }

func (p *FuncPass) Execute(ctx *PassContext) error {
	if p.Fn == nil {
		return nil
	}
	return p.Fn(ctx)
}
