// Package vegetation stages trees and detail patches written by stamps and
// hands them to the placement subsystem once per cycle.
package vegetation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Faultbox/terrastamp/pkg/math"
)

// ErrUnknownPrototype is returned when an instance references a prototype
// that was not registered this cycle.
var ErrUnknownPrototype = errors.New("vegetation: unknown prototype")

// Kind distinguishes scattered meshes from density-painted details.
type Kind int

// Prototype kinds.
const (
	Tree Kind = iota
	Detail
)

func (k Kind) String() string {
	if k == Detail {
		return "detail"
	}
	return "tree"
}

// ParseKind parses "tree" or "detail".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tree":
		return Tree, nil
	case "detail":
		return Detail, nil
	}
	return Tree, fmt.Errorf("unknown vegetation kind %q", s)
}

// Prototype is a placeable vegetation asset.
type Prototype struct {
	ID   string
	Kind Kind
}

// TreeInstance is one placed tree. Position is in normalized terrain UV
// on X/Z with Y holding the normalized height.
type TreeInstance struct {
	Prototype string
	Position  math.Vec3
	Scale     float32
}

// DetailPatch is a density layer over the terrain's detail grid.
type DetailPatch struct {
	Prototype  string
	Resolution int
	Density    []float32
}

// Batch collects one terrain's vegetation for a cycle.
type Batch struct {
	Terrain    string
	prototypes []Prototype
	index      map[string]int
	trees      []TreeInstance
	details    map[string]*DetailPatch
}

// NewBatch creates an empty batch for a terrain.
func NewBatch(terrain string) *Batch {
	return &Batch{
		Terrain: terrain,
		index:   make(map[string]int),
		details: make(map[string]*DetailPatch),
	}
}

// Register adds a prototype. Registering an ID twice keeps the first.
func (b *Batch) Register(p Prototype) {
	if _, ok := b.index[p.ID]; ok {
		return
	}
	b.index[p.ID] = len(b.prototypes)
	b.prototypes = append(b.prototypes, p)
}

// Prototypes returns the registered prototypes in registration order.
func (b *Batch) Prototypes() []Prototype {
	return append([]Prototype(nil), b.prototypes...)
}

// AddTree stages a tree instance.
func (b *Batch) AddTree(t TreeInstance) error {
	if _, ok := b.index[t.Prototype]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPrototype, t.Prototype)
	}
	b.trees = append(b.trees, t)
	return nil
}

// Trees returns the staged tree instances.
func (b *Batch) Trees() []TreeInstance {
	return b.trees
}

// Detail returns the density patch of a detail prototype, allocating it
// at resolution on first use.
func (b *Batch) Detail(prototype string, resolution int) (*DetailPatch, error) {
	if _, ok := b.index[prototype]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPrototype, prototype)
	}
	if d, ok := b.details[prototype]; ok {
		return d, nil
	}
	d := &DetailPatch{
		Prototype:  prototype,
		Resolution: resolution,
		Density:    make([]float32, resolution*resolution),
	}
	b.details[prototype] = d
	return d, nil
}

// Details returns the staged detail patches in registration order.
func (b *Batch) Details() []*DetailPatch {
	out := make([]*DetailPatch, 0, len(b.details))
	for _, p := range b.prototypes {
		if d, ok := b.details[p.ID]; ok {
			out = append(out, d)
		}
	}
	return out
}

// Sink receives a flushed batch.
type Sink interface {
	Flush(b *Batch) error
}

// Store is an in-memory Sink keeping the latest batch per terrain.
type Store struct {
	batches map[string]*Batch
	flushes int
	mu      sync.Mutex
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{batches: make(map[string]*Batch)}
}

// Flush implements Sink.
func (s *Store) Flush(b *Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[b.Terrain] = b
	s.flushes++
	return nil
}

// Latest returns the last flushed batch for a terrain.
func (s *Store) Latest(terrain string) (*Batch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[terrain]
	return b, ok
}

// Flushes returns the number of Flush calls.
func (s *Store) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

// Sample is the constraint context at a queried position.
type Sample struct {
	Mask   float32
	Noise  float32
	Height float32 // world units
	Slope  float32 // degrees
}

// Constraint filters candidate positions. Zero-valued limits are ignored.
type Constraint struct {
	MinMask   float32 `yaml:"min_mask"`
	MinHeight float32 `yaml:"min_height"`
	MaxHeight float32 `yaml:"max_height"`
	MaxSlope  float32 `yaml:"max_slope"`
	// NoiseThreshold rejects samples whose noise is below it.
	NoiseThreshold float32 `yaml:"noise_threshold"`
}

// Accept reports whether s passes every configured limit.
func (c Constraint) Accept(s Sample) bool {
	switch {
	case s.Mask <= 0 || s.Mask < c.MinMask:
		return false
	case c.MinHeight != 0 && s.Height < c.MinHeight:
		return false
	case c.MaxHeight != 0 && s.Height > c.MaxHeight:
		return false
	case c.MaxSlope != 0 && s.Slope > c.MaxSlope:
		return false
	case s.Noise < c.NoiseThreshold:
		return false
	}
	return true
}
