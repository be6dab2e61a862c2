package scene

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/terrastamp/internal/falloff"
	"github.com/Faultbox/terrastamp/internal/field"
	"github.com/Faultbox/terrastamp/internal/raster"
	"github.com/Faultbox/terrastamp/internal/shape"
	"github.com/Faultbox/terrastamp/internal/stamp"
	"github.com/Faultbox/terrastamp/pkg/formats"
)

func TestLoad_Valley(t *testing.T) {
	sc, err := Load(filepath.Join("testdata", "valley.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(sc.Terrains) != 1 {
		t.Fatalf("expected 1 terrain, got %d", len(sc.Terrains))
	}
	tr := sc.Terrains[0]
	if tr.Name() != "valley" || tr.MaxHeight() != 80 || tr.HeightResolution() != 129 {
		t.Errorf("terrain config = %+v", tr.Config())
	}

	if len(sc.Stamps) != 5 {
		t.Fatalf("expected 5 stamps, got %d", len(sc.Stamps))
	}
	wantKinds := []shape.Kind{shape.KindGlobal, shape.KindRectangle, shape.KindRegion, shape.KindRibbon, shape.KindCircle}
	for i, s := range sc.Stamps {
		if s.Shape.Kind() != wantKinds[i] {
			t.Errorf("stamp %s kind = %v, want %v", s.ID, s.Shape.Kind(), wantKinds[i])
		}
	}
}

func TestLoad_StampDetails(t *testing.T) {
	sc, err := Load(filepath.Join("testdata", "valley.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	byID := make(map[string]*stamp.Stamp)
	for _, s := range sc.Stamps {
		byID[s.ID] = s
	}

	base := byID["base"]
	h, ok := base.Modifiers[0].(*stamp.HeightModifier)
	if !ok {
		t.Fatalf("base modifier 0 is %T", base.Modifiers[0])
	}
	if n, ok := h.Field.(field.Noise); !ok || n.Seed != 11 || n.Octaves != 5 || n.Frequency != 4 {
		t.Errorf("base field = %#v", h.Field)
	}
	sp := base.Modifiers[1].(*stamp.SplatModifier)
	if sp.Weight != 1 || sp.Blend != raster.Add {
		t.Errorf("splat defaults: weight %v blend %v", sp.Weight, sp.Blend)
	}

	hill := byID["hill"]
	if hill.Transform.Position.X != 80 || hill.Transform.Position.Z != 90 {
		t.Errorf("hill position = %v", hill.Transform.Position)
	}
	if hill.Transform.Scale.X != 1 {
		t.Errorf("hill scale defaults to 1, got %v", hill.Transform.Scale)
	}
	hh := hill.Modifiers[0].(*stamp.HeightModifier)
	if hh.Falloff.Curve != falloff.Smoothstep || hh.Falloff.MaxIntensity != 1 || hh.Falloff.InnerFalloff != 0.2 {
		t.Errorf("hill falloff = %+v", hh.Falloff)
	}
	if hh.Field != nil {
		t.Errorf("hill field should be nil, got %T", hh.Field)
	}

	lake := byID["lake"].Modifiers[1].(*stamp.SplatModifier)
	if lake.Falloff.MaxIntensity != 0.8 || lake.Falloff.MaskMax != 1 {
		t.Errorf("lake falloff = %+v", lake.Falloff)
	}

	road := byID["road"].Shape.(*shape.Ribbon)
	if len(road.WidthCurve) != 2 || road.WidthCurve[1].Value != 8 {
		t.Errorf("road width curve = %v", road.WidthCurve)
	}

	veg := byID["forest"].Modifiers[0].(*stamp.VegetationModifier)
	if len(veg.Trees) != 1 || veg.Trees[0].Constraint.MaxSlope != 35 || veg.Trees[0].MaxScale != 1.3 {
		t.Errorf("forest trees = %+v", veg.Trees)
	}
	if veg.Noise.Frequency != 8 || veg.Noise.Octaves != 4 {
		t.Errorf("forest noise = %+v", veg.Noise)
	}
	if len(veg.Details) != 1 || veg.Details[0].Constraint.MinMask != 0.2 {
		t.Errorf("forest details = %+v", veg.Details)
	}
}

func TestParse_Errors(t *testing.T) {
	const terrain = "terrains: [{name: t, size: [10, 5, 10], height_resolution: 8, splat_resolution: 8}]\n"
	tests := []struct {
		name string
		yaml string
	}{
		{"no terrains", "stamps: []\n"},
		{"unknown key", terrain + "bogus: 1\n"},
		{"unknown shape", terrain + "stamps: [{id: a, shape: {type: star}}]\n"},
		{"unknown modifier", terrain + "stamps: [{id: a, shape: {type: global}, modifiers: [{type: paint}]}]\n"},
		{"unknown blend", terrain + "stamps: [{id: a, shape: {type: global}, modifiers: [{type: height, blend: mix}]}]\n"},
		{"unknown curve", terrain + "stamps: [{id: a, shape: {type: global}, modifiers: [{type: height, falloff: {curve: zigzag}}]}]\n"},
		{"inverted falloff", terrain + "stamps: [{id: a, shape: {type: global}, modifiers: [{type: height, falloff: {min_intensity: 1, max_intensity: 0}}]}]\n"},
		{"splat without layer", terrain + "stamps: [{id: a, shape: {type: global}, modifiers: [{type: splat}]}]\n"},
		{"bad vector", terrain + "stamps: [{id: a, position: [1], shape: {type: global}}]\n"},
		{"duplicate stamp", terrain + "stamps: [{id: a, shape: {type: global}}, {id: a, shape: {type: global}}]\n"},
		{"empty id", terrain + "stamps: [{shape: {type: global}}]\n"},
		{"heightmap without path", terrain + "stamps: [{id: a, shape: {type: global}, modifiers: [{type: height, field: {type: heightmap}}]}]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), t.TempDir())
			if !errors.Is(err, ErrInvalidScene) {
				t.Errorf("expected ErrInvalidScene, got %v", err)
			}
		})
	}
}

func TestParse_InvalidTerrain(t *testing.T) {
	_, err := Parse([]byte("terrains: [{name: t, size: [10, 5, 10]}]\n"), "")
	if err == nil {
		t.Error("expected error for zero resolution")
	}
}

func TestParse_HeightmapField(t *testing.T) {
	dir := t.TempDir()
	raw, err := formats.RAW16FromHeights([]float32{0, 1, 1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := formats.WriteRAW16File(filepath.Join(dir, "dune.r16"), raw); err != nil {
		t.Fatal(err)
	}

	doc := `
terrains: [{name: t, size: [10, 5, 10], height_resolution: 8, splat_resolution: 8}]
stamps:
  - id: dune
    shape: {type: circle, radius: 3}
    modifiers:
      - type: height
        max: 4
        field: {type: heightmap, path: dune.r16, resolution: 4}
`
	sc, err := Parse([]byte(doc), dir)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	h := sc.Stamps[0].Modifiers[0].(*stamp.HeightModifier)
	hm, ok := h.Field.(*field.Heightmap)
	if !ok {
		t.Fatalf("field = %T, want *field.Heightmap", h.Field)
	}
	if hm.Width != 4 || hm.Height != 4 {
		t.Errorf("heightmap resampled to %dx%d, want 4x4", hm.Width, hm.Height)
	}

	if err := os.Remove(filepath.Join(dir, "dune.r16")); err != nil {
		t.Fatal(err)
	}
	if _, err := Parse([]byte(doc), dir); err == nil {
		t.Error("expected error for missing heightmap file")
	}
}

func TestParse_DisabledModifier(t *testing.T) {
	doc := `
terrains: [{name: t, size: [10, 5, 10], height_resolution: 8, splat_resolution: 8}]
stamps:
  - id: a
    maintain_aspect: false
    shape: {type: global}
    modifiers: [{type: height, enabled: false}]
`
	sc, err := Parse([]byte(doc), "")
	if err != nil {
		t.Fatal(err)
	}
	s := sc.Stamps[0]
	if s.MaintainAspect {
		t.Error("maintain_aspect: false should be honored")
	}
	if s.Modifiers[0].Enabled() {
		t.Error("enabled: false should disable the modifier")
	}
}
