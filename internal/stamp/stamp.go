// Package stamp defines placed stamps, their modifiers and the per-cycle
// world-building context modifiers write into.
package stamp

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Faultbox/terrastamp/internal/layers"
	"github.com/Faultbox/terrastamp/internal/mask"
	"github.com/Faultbox/terrastamp/internal/raster"
	"github.com/Faultbox/terrastamp/internal/shape"
	"github.com/Faultbox/terrastamp/internal/vegetation"
	"github.com/Faultbox/terrastamp/pkg/math"
)

// ErrNoShape is returned by Validate for stamps without geometry.
var ErrNoShape = errors.New("stamp: no shape")

// Pass orders modifier application within a cycle.
type Pass int

// Passes, in execution order.
const (
	PassHeight Pass = iota
	PassSplat
	PassVegetation
)

func (p Pass) String() string {
	switch p {
	case PassHeight:
		return "height"
	case PassSplat:
		return "splat"
	case PassVegetation:
		return "vegetation"
	}
	return fmt.Sprintf("Pass(%d)", int(p))
}

// Target is what a modifier draws with: the stamp's world bounds, mask
// and placement on the context's terrain.
type Target struct {
	Stamp     *Stamp
	World     math.Bounds
	Mask      *mask.Mask
	Placement raster.Placement
}

// Modifier applies a stamp's mask to one kind of terrain buffer.
type Modifier interface {
	Pass() Pass
	Enabled() bool
	Apply(ctx context.Context, wc *Context, t Target) error
}

// LayerUser is implemented by modifiers that reference splat layers.
type LayerUser interface {
	Layers() []layers.ID
}

// PrototypeUser is implemented by modifiers that place vegetation.
type PrototypeUser interface {
	Prototypes() []vegetation.Prototype
}

// Stamp is one placed unit of terrain influence.
type Stamp struct {
	ID        string
	Priority  int
	Transform math.Transform
	Shape     shape.Shape
	Modifiers []Modifier
	// MaintainAspect keeps the shape's own aspect ratio when drawing.
	MaintainAspect bool
}

// New creates a stamp with an identity transform that keeps its aspect.
func New(id string, priority int, s shape.Shape, mods ...Modifier) *Stamp {
	return &Stamp{
		ID:             id,
		Priority:       priority,
		Transform:      math.IdentityTransform(),
		Shape:          s,
		Modifiers:      mods,
		MaintainAspect: true,
	}
}

// Validate checks the stamp can take part in a cycle.
func (s *Stamp) Validate() error {
	if s.ID == "" {
		return errors.New("stamp: empty id")
	}
	if s.Shape == nil {
		return fmt.Errorf("%w: %q", ErrNoShape, s.ID)
	}
	return nil
}

// WorldBounds places the shape's recorded bounds with the stamp transform.
func (s *Stamp) WorldBounds(terrains []math.Bounds) math.Bounds {
	return s.Shape.WorldBounds(s.Transform, terrains)
}

// Placement returns where the stamp lands on a terrain.
func (s *Stamp) Placement(world, terrain math.Bounds) raster.Placement {
	return raster.Placement{
		World:          world,
		Terrain:        terrain,
		Rotation:       s.Transform.Rotation,
		Oriented:       s.Shape.Oriented(),
		MaintainAspect: s.MaintainAspect,
	}
}

// ModifiersFor returns the enabled modifiers of one pass in stamp order.
func (s *Stamp) ModifiersFor(p Pass) []Modifier {
	var out []Modifier
	for _, m := range s.Modifiers {
		if m.Enabled() && m.Pass() == p {
			out = append(out, m)
		}
	}
	return out
}

// Layers returns the layers referenced by enabled modifiers, in order.
func (s *Stamp) Layers() []layers.ID {
	var out []layers.ID
	for _, m := range s.Modifiers {
		if u, ok := m.(LayerUser); ok && m.Enabled() {
			out = append(out, u.Layers()...)
		}
	}
	return out
}

// Prototypes returns the vegetation prototypes of enabled modifiers.
func (s *Stamp) Prototypes() []vegetation.Prototype {
	var out []vegetation.Prototype
	for _, m := range s.Modifiers {
		if u, ok := m.(PrototypeUser); ok && m.Enabled() {
			out = append(out, u.Prototypes()...)
		}
	}
	return out
}

// SortByPriority returns stamps stably ordered by ascending priority.
func SortByPriority(stamps []*Stamp) []*Stamp {
	out := append([]*Stamp(nil), stamps...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}
