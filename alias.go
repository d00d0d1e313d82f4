package framegraph

import (
	"container/heap"
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"
)

// Slot is one physical allocation of the transient pool together with the
// resources that take turns occupying it.
type Slot struct {
	Index int

	// Desc is compatible with every occupant: same class, usage is the
	// union of occupant usages, buffer size is the largest occupant size.
	Desc Descriptor

	// Occupants in order of first use, with their liveness intervals.
	Occupants []ResourceID
	Intervals []Interval
}

// aliasClass groups descriptors that may share one physical allocation.
type aliasClass struct {
	kind    ResourceKind
	format  gputypes.TextureFormat
	width   uint32
	height  uint32
	samples uint32
	mips    uint32
}

func classOf(d Descriptor) aliasClass {
	if d.Kind == KindBuffer {
		return aliasClass{kind: KindBuffer}
	}
	return aliasClass{
		kind:    d.Kind,
		format:  d.Format,
		width:   d.Width,
		height:  d.Height,
		samples: d.SampleCount,
		mips:    d.MipLevels,
	}
}

// assignSlots colors the interval graph of transient resources greedily:
// each resource, in order of first use, takes the lowest-indexed free slot
// of its class whose occupant has ended, or opens a new slot.
func assignSlots(lv *liveness, reg *registry, aliasing bool) ([]Slot, map[ResourceID]int) {
	var slots []Slot
	slotOf := make(map[ResourceID]int, len(lv.transients))
	free := make(map[aliasClass][]int)
	busy := &slotHeap{}

	for _, id := range lv.transients {
		iv := lv.intervals[id]
		desc := reg.entries[id].desc

		for busy.Len() > 0 && (*busy)[0].end <= iv.Start {
			s := heap.Pop(busy).(slotEnd).slot
			cls := classOf(slots[s].Desc)
			i, _ := slices.BinarySearch(free[cls], s)
			free[cls] = slices.Insert(free[cls], i, s)
		}

		cls := classOf(desc)
		var s int
		if list := free[cls]; aliasing && len(list) > 0 {
			s, free[cls] = list[0], list[1:]
			slots[s].Desc = mergeSlotDesc(slots[s].Desc, desc)
		} else {
			s = len(slots)
			sd := desc
			sd.Label = fmt.Sprintf("slot%d", s)
			sd.Clear = nil
			slots = append(slots, Slot{Index: s, Desc: sd})
		}
		slots[s].Occupants = append(slots[s].Occupants, id)
		slots[s].Intervals = append(slots[s].Intervals, iv)
		slotOf[id] = s
		heap.Push(busy, slotEnd{slot: s, end: iv.End})
	}
	return slots, slotOf
}

func mergeSlotDesc(slot, d Descriptor) Descriptor {
	if d.Kind == KindBuffer {
		slot.Size = max(slot.Size, d.Size)
		slot.BufferUsage |= d.BufferUsage
		return slot
	}
	slot.Usage |= d.Usage
	return slot
}

// verifySlots re-checks the aliasing invariants independently of how the
// slots were built.
func verifySlots(slots []Slot, reg *registry) error {
	for _, s := range slots {
		cls := classOf(s.Desc)
		for k, id := range s.Occupants {
			d := reg.entries[id].desc
			switch {
			case classOf(d) != cls:
				return fmt.Errorf("%w: %q does not match slot %d class", ErrIncompatibleAlias, d.Label, s.Index)
			case d.Kind == KindBuffer && (d.Size > s.Desc.Size || d.BufferUsage&^s.Desc.BufferUsage != 0):
				return fmt.Errorf("%w: buffer %q exceeds slot %d", ErrIncompatibleAlias, d.Label, s.Index)
			case d.Kind.IsTexture() && d.Usage&^s.Desc.Usage != 0:
				return fmt.Errorf("%w: %q usage exceeds slot %d", ErrIncompatibleAlias, d.Label, s.Index)
			}
			for j := range k {
				if s.Intervals[j].Overlaps(s.Intervals[k]) {
					return fmt.Errorf("%w: %q %v overlaps %q %v in slot %d", ErrIncompatibleAlias,
						reg.entries[s.Occupants[j]].label(), s.Intervals[j],
						reg.entries[id].label(), s.Intervals[k], s.Index)
				}
			}
		}
	}
	return nil
}

// AliasBarrier is a transition recorded before a pass whose access is the
// first use of a new occupant of a reused slot.
type AliasBarrier struct {
	Slot int
	From ResourceID
	To   ResourceID
	Kind ResourceKind

	OldUsage       gputypes.TextureUsage
	NewUsage       gputypes.TextureUsage
	OldBufferUsage gputypes.BufferUsage
	NewBufferUsage gputypes.BufferUsage
}

func aliasBarriers(slots []Slot, order []PassID, lv *liveness) map[PassID][]AliasBarrier {
	out := make(map[PassID][]AliasBarrier)
	for _, s := range slots {
		for k := 1; k < len(s.Occupants); k++ {
			from, to := s.Occupants[k-1], s.Occupants[k]
			old, next := lv.lastUse[from], lv.firstUse[to]
			pass := order[s.Intervals[k].Start]
			out[pass] = append(out[pass], AliasBarrier{
				Slot:           s.Index,
				From:           from,
				To:             to,
				Kind:           s.Desc.Kind,
				OldUsage:       old.texture,
				NewUsage:       next.texture,
				OldBufferUsage: old.buffer,
				NewBufferUsage: next.buffer,
			})
		}
	}
	return out
}

type slotEnd struct {
	slot int
	end  int
}

// slotHeap orders busy slots by the end of their current occupant.
type slotHeap []slotEnd

func (h slotHeap) Len() int { return len(h) }
func (h slotHeap) Less(i, j int) bool {
	if h[i].end != h[j].end {
		return h[i].end < h[j].end
	}
	return h[i].slot < h[j].slot
}
func (h slotHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *slotHeap) Push(x any)   { *h = append(*h, x.(slotEnd)) }

func (h *slotHeap) Pop() any {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}
