// Package scene loads terrains and stamps from a YAML description.
package scene

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/png" // heightmap fields may be PNG
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/terrastamp/internal/field"
	"github.com/Faultbox/terrastamp/internal/raster"
	"github.com/Faultbox/terrastamp/internal/shape"
	"github.com/Faultbox/terrastamp/internal/spline"
	"github.com/Faultbox/terrastamp/internal/stamp"
	"github.com/Faultbox/terrastamp/internal/terrain"
	"github.com/Faultbox/terrastamp/pkg/formats"
	"github.com/Faultbox/terrastamp/pkg/math"
)

// ErrInvalidScene wraps every validation failure.
var ErrInvalidScene = errors.New("invalid scene")

// Scene is a loaded description ready to hand to a compositor.
type Scene struct {
	Terrains []*terrain.Terrain
	Stamps   []*stamp.Stamp
}

// Load reads a scene file. Relative asset paths resolve against the
// file's directory.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scene: %w", err)
	}
	sc, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes a scene. Unknown keys are errors.
func Parse(data []byte, baseDir string) (*Scene, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}
	if len(doc.Terrains) == 0 {
		return nil, fmt.Errorf("%w: no terrains", ErrInvalidScene)
	}

	b := &builder{baseDir: baseDir}
	sc := &Scene{}
	names := make(map[string]bool)
	for i, td := range doc.Terrains {
		if td.Name == "" {
			td.Name = fmt.Sprintf("terrain%d", i)
		}
		if names[td.Name] {
			return nil, fmt.Errorf("%w: duplicate terrain %q", ErrInvalidScene, td.Name)
		}
		names[td.Name] = true
		t, err := b.terrain(td)
		if err != nil {
			return nil, fmt.Errorf("terrain %q: %w", td.Name, err)
		}
		sc.Terrains = append(sc.Terrains, t)
	}

	ids := make(map[string]bool)
	for _, sd := range doc.Stamps {
		if ids[sd.ID] {
			return nil, fmt.Errorf("%w: duplicate stamp %q", ErrInvalidScene, sd.ID)
		}
		ids[sd.ID] = true
		s, err := b.stamp(sd)
		if err != nil {
			return nil, fmt.Errorf("stamp %q: %w", sd.ID, err)
		}
		sc.Stamps = append(sc.Stamps, s)
	}
	return sc, nil
}

type builder struct {
	baseDir string
}

func (b *builder) terrain(td terrainDoc) (*terrain.Terrain, error) {
	origin, err := td.Origin.vec3(math.Vec3{})
	if err != nil {
		return nil, err
	}
	size, err := td.Size.vec3(math.Vec3{})
	if err != nil {
		return nil, err
	}
	return terrain.New(terrain.Config{
		Name:             td.Name,
		Origin:           origin,
		Size:             size,
		HeightResolution: td.HeightResolution,
		SplatResolution:  td.SplatResolution,
	})
}

func (b *builder) stamp(sd stampDoc) (*stamp.Stamp, error) {
	sh, err := b.shape(sd.Shape)
	if err != nil {
		return nil, err
	}
	s := stamp.New(sd.ID, sd.Priority, sh)
	if sd.MaintainAspect != nil {
		s.MaintainAspect = *sd.MaintainAspect
	}

	if s.Transform.Position, err = sd.Position.vec3(math.Vec3{}); err != nil {
		return nil, err
	}
	if s.Transform.Scale, err = sd.Scale.vec3(math.Vec3{X: 1, Y: 1, Z: 1}); err != nil {
		return nil, err
	}
	s.Transform.Rotation = math.QuatFromYaw(sd.Rotation)

	for i, md := range sd.Modifiers {
		m, err := b.modifier(md)
		if err != nil {
			return nil, fmt.Errorf("modifier %d (%s): %w", i, md.Type, err)
		}
		s.Modifiers = append(s.Modifiers, m)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}
	return s, nil
}

func (b *builder) shape(d shapeDoc) (shape.Shape, error) {
	kind, err := shape.ParseKind(d.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}
	switch kind {
	case shape.KindCircle:
		return shape.NewCircle(d.Radius), nil
	case shape.KindRectangle:
		return shape.NewRectangle(d.Width, d.Depth), nil
	case shape.KindGlobal:
		return shape.NewGlobal(), nil
	}

	curve := &spline.Curve{Closed: d.Closed}
	for _, p := range d.Points {
		v, err := p.vec3(math.Vec3{})
		if err != nil {
			return nil, err
		}
		curve.Knots = append(curve.Knots, v)
	}
	if kind == shape.KindRegion {
		return shape.NewRegion(curve), nil
	}

	r := shape.NewRibbon(curve, d.Width)
	for _, k := range d.WidthCurve {
		if len(k) != 2 {
			return nil, fmt.Errorf("%w: width curve key needs [t, value], got %v", ErrInvalidScene, k)
		}
		r.WidthCurve = append(r.WidthCurve, spline.Key{T: k[0], Value: k[1]})
	}
	return r, nil
}

func (b *builder) modifier(d modifierDoc) (stamp.Modifier, error) {
	fo, err := d.Falloff.config()
	if err != nil {
		return nil, err
	}
	blend := raster.Add
	if d.Blend != "" {
		blend, err = raster.ParseBlendMode(d.Blend)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}
	disabled := d.Enabled != nil && !*d.Enabled

	switch strings.ToLower(d.Type) {
	case "height":
		f, err := b.field(d.Field)
		if err != nil {
			return nil, err
		}
		return &stamp.HeightModifier{
			Disabled: disabled,
			Falloff:  fo,
			Blend:    blend,
			Field:    f,
			MinValue: d.Min,
			MaxValue: d.Max,
		}, nil
	case "splat":
		if d.Layer == "" {
			return nil, fmt.Errorf("%w: splat modifier without layer", ErrInvalidScene)
		}
		w := float32(1)
		if d.Weight != nil {
			w = *d.Weight
		}
		return &stamp.SplatModifier{
			Disabled: disabled,
			Layer:    d.Layer,
			Falloff:  fo,
			Blend:    blend,
			Weight:   w,
		}, nil
	case "vegetation":
		m := &stamp.VegetationModifier{
			Disabled: disabled,
			Falloff:  fo,
			Seed:     d.Seed,
		}
		if d.Noise != nil {
			m.Noise = d.Noise.noise()
		}
		for _, t := range d.Trees {
			m.Trees = append(m.Trees, stamp.TreeRule{
				Prototype:  t.Prototype,
				Density:    t.Density,
				MinScale:   orDefault(t.MinScale, 1),
				MaxScale:   orDefault(t.MaxScale, 1),
				Constraint: t.Constraint,
			})
		}
		for _, dt := range d.Details {
			m.Details = append(m.Details, stamp.DetailRule{
				Prototype:  dt.Prototype,
				Resolution: dt.Resolution,
				Density:    dt.Density,
				Constraint: dt.Constraint,
			})
		}
		return m, nil
	}
	return nil, fmt.Errorf("%w: unknown modifier type %q", ErrInvalidScene, d.Type)
}

func (b *builder) field(d *fieldDoc) (field.Field, error) {
	if d == nil {
		return nil, nil
	}
	switch strings.ToLower(d.Type) {
	case "", "flat":
		return field.Flat{}, nil
	case "noise":
		return d.noise(), nil
	case "heightmap":
		return b.heightmap(d)
	}
	return nil, fmt.Errorf("%w: unknown field type %q", ErrInvalidScene, d.Type)
}

// heightmap loads a RAW16 file or any registered image format.
func (b *builder) heightmap(d *fieldDoc) (field.Field, error) {
	if d.Path == "" {
		return nil, fmt.Errorf("%w: heightmap field without path", ErrInvalidScene)
	}
	path := d.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(b.baseDir, path)
	}

	var hm *field.Heightmap
	switch strings.ToLower(filepath.Ext(path)) {
	case ".r16", ".raw":
		raw, err := formats.ParseRAW16File(path)
		if err != nil {
			return nil, err
		}
		if hm, err = field.NewHeightmap(raw.Resolution, raw.Resolution, raw.Heights()); err != nil {
			return nil, err
		}
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening heightmap: %w", err)
		}
		defer f.Close()
		img, _, err := image.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("decoding heightmap %s: %w", path, err)
		}
		size := img.Bounds().Size()
		if hm, err = field.HeightmapFromImage(img, size.X, size.Y); err != nil {
			return nil, err
		}
	}

	if d.Resolution > 0 && (d.Resolution != hm.Width || d.Resolution != hm.Height) {
		resampled, err := hm.Resample(d.Resolution, d.Resolution)
		if err != nil {
			return nil, err
		}
		hm = resampled
	}
	return hm, nil
}

func orDefault(v, def float32) float32 {
	if v == 0 {
		return def
	}
	return v
}
