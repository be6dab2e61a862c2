// Package layers keeps ground-texture layer to splat channel assignments
// stable across compositing cycles.
package layers

// ID identifies a ground-texture layer.
type ID string

// ChannelsPerBuffer is the number of layers packed into one splat buffer.
const ChannelsPerBuffer = 4

// Allocator owns the layer slot array. A slot's index is baked into
// already rendered splat data, so only added or removed layers may move.
type Allocator struct {
	slots []ID
}

// NewAllocator creates an allocator seeded with an existing slot array,
// for example one restored from a saved scene.
func NewAllocator(slots ...ID) *Allocator {
	return &Allocator{slots: append([]ID(nil), slots...)}
}

// Allocate updates the slots for the referenced layers, given in
// first-reference order. Duplicates and empty IDs are ignored.
func (a *Allocator) Allocate(referenced []ID) []ID {
	set := make([]ID, 0, len(referenced))
	seen := make(map[ID]bool, len(referenced))
	for _, id := range referenced {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		set = append(set, id)
	}

	if len(a.slots) != len(set) {
		a.slots = set
		return a.Slots()
	}

	// Same size: keep surviving slots in place, then fill the vacated
	// ones in array order from what is left.
	var vacant []int
	for i, id := range a.slots {
		if seen[id] {
			delete(seen, id)
			continue
		}
		a.slots[i] = ""
		vacant = append(vacant, i)
	}
	next := 0
	for _, id := range set {
		if !seen[id] {
			continue
		}
		a.slots[vacant[next]] = id
		next++
	}
	return a.Slots()
}

// Slots returns a copy of the slot array.
func (a *Allocator) Slots() []ID {
	return append([]ID(nil), a.slots...)
}

// Index returns the slot of id, or -1.
func (a *Allocator) Index(id ID) int {
	for i, s := range a.slots {
		if s == id {
			return i
		}
	}
	return -1
}

// BufferCount returns how many splat buffers the slots need.
func (a *Allocator) BufferCount() int {
	return (len(a.slots) + ChannelsPerBuffer - 1) / ChannelsPerBuffer
}

// Channel splits a slot index into its buffer and channel.
func Channel(index int) (buffer, channel int) {
	return index / ChannelsPerBuffer, index % ChannelsPerBuffer
}
