package scene

import (
	"fmt"

	"github.com/Faultbox/terrastamp/internal/falloff"
	"github.com/Faultbox/terrastamp/internal/field"
	"github.com/Faultbox/terrastamp/internal/layers"
	"github.com/Faultbox/terrastamp/internal/vegetation"
	"github.com/Faultbox/terrastamp/pkg/math"
)

type document struct {
	Terrains []terrainDoc `yaml:"terrains"`
	Stamps   []stampDoc   `yaml:"stamps"`
}

type terrainDoc struct {
	Name             string `yaml:"name"`
	Origin           vec    `yaml:"origin"`
	Size             vec    `yaml:"size"`
	HeightResolution int    `yaml:"height_resolution"`
	SplatResolution  int    `yaml:"splat_resolution"`
}

type stampDoc struct {
	ID       string `yaml:"id"`
	Priority int    `yaml:"priority"`
	Position vec    `yaml:"position"`
	// Rotation is the yaw in degrees.
	Rotation       float32       `yaml:"rotation"`
	Scale          vec           `yaml:"scale"`
	MaintainAspect *bool         `yaml:"maintain_aspect"`
	Shape          shapeDoc      `yaml:"shape"`
	Modifiers      []modifierDoc `yaml:"modifiers"`
}

type shapeDoc struct {
	Type       string      `yaml:"type"`
	Radius     float32     `yaml:"radius"`
	Width      float32     `yaml:"width"`
	Depth      float32     `yaml:"depth"`
	Points     []vec       `yaml:"points"`
	Closed     bool        `yaml:"closed"`
	WidthCurve [][]float32 `yaml:"width_curve"`
}

type modifierDoc struct {
	Type    string      `yaml:"type"`
	Enabled *bool       `yaml:"enabled"`
	Blend   string      `yaml:"blend"`
	Falloff *falloffDoc `yaml:"falloff"`

	// height
	Field *fieldDoc `yaml:"field"`
	Min   float32   `yaml:"min"`
	Max   float32   `yaml:"max"`

	// splat
	Layer  layers.ID `yaml:"layer"`
	Weight *float32  `yaml:"weight"`

	// vegetation
	Seed    uint64      `yaml:"seed"`
	Noise   *fieldDoc   `yaml:"noise"`
	Trees   []treeDoc   `yaml:"trees"`
	Details []detailDoc `yaml:"details"`
}

// falloffDoc overlays the set keys on falloff.Default.
type falloffDoc struct {
	MinIntensity *float32 `yaml:"min_intensity"`
	MaxIntensity *float32 `yaml:"max_intensity"`
	MaskMin      *float32 `yaml:"mask_min"`
	MaskMax      *float32 `yaml:"mask_max"`
	InnerFalloff float32  `yaml:"inner_falloff"`
	Curve        string   `yaml:"curve"`
}

// config returns the default linear falloff when d is nil.
func (d *falloffDoc) config() (falloff.Config, error) {
	c := falloff.Default()
	if d == nil {
		return c, nil
	}
	for _, o := range []struct {
		src *float32
		dst *float32
	}{
		{d.MinIntensity, &c.MinIntensity},
		{d.MaxIntensity, &c.MaxIntensity},
		{d.MaskMin, &c.MaskMin},
		{d.MaskMax, &c.MaskMax},
	} {
		if o.src != nil {
			*o.dst = *o.src
		}
	}
	c.InnerFalloff = d.InnerFalloff

	curve, err := falloff.ParseCurve(d.Curve)
	if err != nil {
		return c, fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}
	c.Curve = curve
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}
	return c, nil
}

type fieldDoc struct {
	Type        string  `yaml:"type"`
	Seed        int64   `yaml:"seed"`
	Frequency   float64 `yaml:"frequency"`
	Octaves     int     `yaml:"octaves"`
	Persistence float64 `yaml:"persistence"`
	Lacunarity  float64 `yaml:"lacunarity"`
	Path        string  `yaml:"path"`
	Resolution  int     `yaml:"resolution"`
}

// noise overlays the set keys on DefaultNoise.
func (d *fieldDoc) noise() field.Noise {
	n := field.DefaultNoise(d.Seed)
	if d.Frequency > 0 {
		n.Frequency = d.Frequency
	}
	if d.Octaves > 0 {
		n.Octaves = d.Octaves
	}
	if d.Persistence > 0 {
		n.Persistence = d.Persistence
	}
	if d.Lacunarity > 0 {
		n.Lacunarity = d.Lacunarity
	}
	return n
}

type treeDoc struct {
	Prototype  string                `yaml:"prototype"`
	Density    float32               `yaml:"density"`
	MinScale   float32               `yaml:"min_scale"`
	MaxScale   float32               `yaml:"max_scale"`
	Constraint vegetation.Constraint `yaml:"constraint"`
}

type detailDoc struct {
	Prototype  string                `yaml:"prototype"`
	Resolution int                   `yaml:"resolution"`
	Density    float32               `yaml:"density"`
	Constraint vegetation.Constraint `yaml:"constraint"`
}

// vec is a flow-style [x, y, z] list.
type vec []float32

func (v vec) vec3(def math.Vec3) (math.Vec3, error) {
	switch len(v) {
	case 0:
		return def, nil
	case 2:
		return math.Vec3{X: v[0], Z: v[1]}, nil
	case 3:
		return math.Vec3{X: v[0], Y: v[1], Z: v[2]}, nil
	}
	return def, fmt.Errorf("%w: vector needs 2 or 3 components, got %d", ErrInvalidScene, len(v))
}
