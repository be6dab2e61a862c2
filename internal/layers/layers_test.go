package layers

import (
	"slices"
	"testing"
)

func TestAllocate_KeepsSurvivingIndices(t *testing.T) {
	a := NewAllocator("A", "B", "C")
	got := a.Allocate([]ID{"A", "C", "D"})
	want := []ID{"A", "D", "C"}
	if !slices.Equal(got, want) {
		t.Errorf("Allocate = %v, want %v", got, want)
	}
	if a.Index("C") != 2 {
		t.Errorf("Index(C) = %d, want 2", a.Index("C"))
	}
	if a.Index("B") != -1 {
		t.Errorf("Index(B) = %d, want -1", a.Index("B"))
	}
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		name       string
		slots      []ID
		referenced []ID
		want       []ID
	}{
		{"empty", nil, nil, []ID{}},
		{"fresh build in reference order", nil, []ID{"grass", "rock", "grass", "sand"}, []ID{"grass", "rock", "sand"}},
		{"size change rebuilds", []ID{"A", "B"}, []ID{"C", "A", "B"}, []ID{"C", "A", "B"}},
		{"unchanged set keeps order", []ID{"B", "A"}, []ID{"A", "B"}, []ID{"B", "A"}},
		{"two replaced fill in array order", []ID{"A", "B", "C", "D"}, []ID{"E", "B", "F", "D"}, []ID{"E", "B", "F", "D"}},
		{"empty ids ignored", []ID{"A"}, []ID{"", "A", ""}, []ID{"A"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewAllocator(tt.slots...).Allocate(tt.referenced)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Allocate(%v) from %v = %v, want %v", tt.referenced, tt.slots, got, tt.want)
			}
		})
	}
}

func TestAllocate_RepeatedCyclesStable(t *testing.T) {
	a := NewAllocator()
	first := a.Allocate([]ID{"x", "y", "z"})
	for i := 0; i < 3; i++ {
		if got := a.Allocate([]ID{"z", "y", "x"}); !slices.Equal(got, first) {
			t.Fatalf("cycle %d: %v, want %v", i, got, first)
		}
	}
}

func TestBufferCountAndChannel(t *testing.T) {
	a := NewAllocator("a", "b", "c", "d", "e")
	if a.BufferCount() != 2 {
		t.Errorf("BufferCount = %d, want 2", a.BufferCount())
	}
	if b, c := Channel(5); b != 1 || c != 1 {
		t.Errorf("Channel(5) = (%d, %d), want (1, 1)", b, c)
	}
}
