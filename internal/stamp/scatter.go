package stamp

import (
	"context"
	"hash/fnv"
	"math/rand/v2"

	"github.com/Faultbox/terrastamp/internal/falloff"
	"github.com/Faultbox/terrastamp/internal/field"
	"github.com/Faultbox/terrastamp/internal/vegetation"
	"github.com/Faultbox/terrastamp/pkg/math"
)

// maxTreesPerRule bounds the candidate count of one tree rule.
const maxTreesPerRule = 100_000

// TreeRule scatters instances of one tree prototype.
type TreeRule struct {
	Prototype string
	// Density is instances per 100 square world units at full intensity.
	Density    float32
	MinScale   float32
	MaxScale   float32
	Constraint vegetation.Constraint
}

// DetailRule paints the density of one detail prototype.
type DetailRule struct {
	Prototype  string
	Resolution int
	Density    float32
	Constraint vegetation.Constraint
}

// VegetationModifier places trees and details inside the stamp's mask.
type VegetationModifier struct {
	Disabled bool
	Falloff  falloff.Config
	Trees    []TreeRule
	Details  []DetailRule
	// Noise feeds the constraint context; the zero value disables it.
	Noise field.Noise
	Seed  uint64
}

func (m *VegetationModifier) Pass() Pass    { return PassVegetation }
func (m *VegetationModifier) Enabled() bool { return !m.Disabled }

// Prototypes lists tree then detail prototypes, in rule order.
func (m *VegetationModifier) Prototypes() []vegetation.Prototype {
	out := make([]vegetation.Prototype, 0, len(m.Trees)+len(m.Details))
	for _, r := range m.Trees {
		out = append(out, vegetation.Prototype{ID: r.Prototype, Kind: vegetation.Tree})
	}
	for _, r := range m.Details {
		out = append(out, vegetation.Prototype{ID: r.Prototype, Kind: vegetation.Detail})
	}
	return out
}

// Apply writes tree instances and detail densities into the context's
// vegetation batch. Placement is deterministic per stamp ID and seed.
func (m *VegetationModifier) Apply(_ context.Context, wc *Context, t Target) error {
	if wc.Released() {
		return ErrReleased
	}
	quad := t.Placement.Quad()
	if !quad.Valid() || t.Mask == nil {
		return nil
	}
	cfg := m.Falloff.Normalized()
	rng := rand.New(rand.NewPCG(stampSeed(t.Stamp), m.Seed))

	sample := func(local, uv math.Vec2) vegetation.Sample {
		s := vegetation.Sample{
			Mask:   cfg.Evaluate(t.Mask.Sample(local.X, local.Y)),
			Noise:  1,
			Height: wc.HeightAt(uv),
			Slope:  wc.SlopeAt(uv),
		}
		if m.Noise.Octaves > 0 {
			s.Noise = m.Noise.Sample(uv.X, uv.Y)
		}
		return s
	}

	area := t.World.HorizontalArea()
	for _, rule := range m.Trees {
		count := min(int(rule.Density*area/100), maxTreesPerRule)
		for i := 0; i < count; i++ {
			local := math.Vec2{X: rng.Float32(), Y: rng.Float32()}
			keep := rng.Float32()
			scale := math.Lerp(rule.MinScale, rule.MaxScale, rng.Float32())

			p := quad.Matrix.TransformPoint(math.Vec3{X: local.X - 0.5, Z: local.Y - 0.5})
			uv := math.Vec2{X: p.X + 0.5, Y: p.Z + 0.5}
			if uv.X < 0 || uv.X > 1 || uv.Y < 0 || uv.Y > 1 {
				continue
			}
			s := sample(local, uv)
			if keep >= s.Mask || !rule.Constraint.Accept(s) {
				continue
			}
			err := wc.Vegetation.AddTree(vegetation.TreeInstance{
				Prototype: rule.Prototype,
				Position:  math.Vec3{X: uv.X, Y: s.Height / math.NonZero(wc.Terrain.MaxHeight()), Z: uv.Y},
				Scale:     scale,
			})
			if err != nil {
				return err
			}
		}
	}

	for _, rule := range m.Details {
		res := rule.Resolution
		if res <= 0 {
			res = wc.Terrain.SplatResolution()
		}
		patch, err := wc.Vegetation.Detail(rule.Prototype, res)
		if err != nil {
			return err
		}
		res = patch.Resolution
		for y := 0; y < res; y++ {
			for x := 0; x < res; x++ {
				uv := math.Vec2{X: (float32(x) + 0.5) / float32(res), Y: (float32(y) + 0.5) / float32(res)}
				local, ok := quad.Local(uv)
				if !ok {
					continue
				}
				s := sample(local, uv)
				if !rule.Constraint.Accept(s) {
					continue
				}
				i := y*res + x
				patch.Density[i] = max(patch.Density[i], s.Mask*rule.Density)
			}
		}
	}
	return nil
}

func stampSeed(s *Stamp) uint64 {
	h := fnv.New64a()
	if s != nil {
		h.Write([]byte(s.ID))
	}
	return h.Sum64()
}
