package vegetation

import (
	"errors"
	"testing"
)

func TestBatch_RegisterDeduplicates(t *testing.T) {
	b := NewBatch("main")
	b.Register(Prototype{ID: "oak", Kind: Tree})
	b.Register(Prototype{ID: "grass", Kind: Detail})
	b.Register(Prototype{ID: "oak", Kind: Detail})

	got := b.Prototypes()
	if len(got) != 2 {
		t.Fatalf("got %d prototypes, want 2", len(got))
	}
	if got[0].Kind != Tree {
		t.Errorf("first registration should win, got %v", got[0].Kind)
	}
}

func TestBatch_UnknownPrototype(t *testing.T) {
	b := NewBatch("main")
	if err := b.AddTree(TreeInstance{Prototype: "pine"}); !errors.Is(err, ErrUnknownPrototype) {
		t.Errorf("expected ErrUnknownPrototype, got %v", err)
	}
	if _, err := b.Detail("fern", 8); !errors.Is(err, ErrUnknownPrototype) {
		t.Errorf("expected ErrUnknownPrototype, got %v", err)
	}
}

func TestBatch_DetailReused(t *testing.T) {
	b := NewBatch("main")
	b.Register(Prototype{ID: "grass", Kind: Detail})
	d1, err := b.Detail("grass", 4)
	if err != nil {
		t.Fatal(err)
	}
	d1.Density[3] = 0.5
	d2, _ := b.Detail("grass", 16)
	if d2 != d1 || d2.Resolution != 4 {
		t.Error("second lookup should return the existing patch")
	}
	if len(b.Details()) != 1 {
		t.Errorf("Details() = %d patches, want 1", len(b.Details()))
	}
}

func TestStore_Flush(t *testing.T) {
	s := NewStore()
	b := NewBatch("north")
	if err := s.Flush(b); err != nil {
		t.Fatal(err)
	}
	if got, ok := s.Latest("north"); !ok || got != b {
		t.Error("Latest should return the flushed batch")
	}
	if s.Flushes() != 1 {
		t.Errorf("Flushes = %d, want 1", s.Flushes())
	}
}

func TestConstraint_Accept(t *testing.T) {
	c := Constraint{MinMask: 0.2, MinHeight: 5, MaxHeight: 50, MaxSlope: 30, NoiseThreshold: 0.4}
	tests := []struct {
		name string
		s    Sample
		want bool
	}{
		{"ok", Sample{Mask: 0.5, Noise: 0.6, Height: 10, Slope: 10}, true},
		{"outside mask", Sample{Mask: 0, Noise: 1, Height: 10}, false},
		{"weak mask", Sample{Mask: 0.1, Noise: 1, Height: 10}, false},
		{"too low", Sample{Mask: 1, Noise: 1, Height: 1}, false},
		{"too high", Sample{Mask: 1, Noise: 1, Height: 60}, false},
		{"too steep", Sample{Mask: 1, Noise: 1, Height: 10, Slope: 45}, false},
		{"noise rejects", Sample{Mask: 1, Noise: 0.1, Height: 10}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Accept(tt.s); got != tt.want {
				t.Errorf("Accept(%+v) = %v, want %v", tt.s, got, tt.want)
			}
		})
	}

	if !(Constraint{}).Accept(Sample{Mask: 0.01}) {
		t.Error("zero constraint should accept any covered sample")
	}
}
