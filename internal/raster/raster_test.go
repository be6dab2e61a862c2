package raster

import (
	"context"
	"testing"

	"github.com/Faultbox/terrastamp/internal/compute"
	"github.com/Faultbox/terrastamp/internal/falloff"
	"github.com/Faultbox/terrastamp/internal/field"
	"github.com/Faultbox/terrastamp/internal/mask"
	"github.com/Faultbox/terrastamp/pkg/math"
)

var terrainBounds = math.BoundsFromMinMax(math.Vec3{}, math.Vec3{X: 100, Y: 100, Z: 100})

func fullQuad() Quad {
	return Placement{World: terrainBounds, Terrain: terrainBounds}.Quad()
}

func filled(w, h, channels int, values ...float32) *Target {
	t := NewTarget(w, h, channels)
	for i := range t.Data {
		t.Data[i] = values[i%len(values)]
	}
	return t
}

func TestBlend(t *testing.T) {
	tests := []struct {
		name                 string
		mode                 BlendMode
		dst, src, alpha, out float32
	}{
		{"add", Add, 0.25, 0.5, 0.5, 0.5},
		{"add clamps", Add, 0.9, 1, 1, 1},
		{"subtract", Subtract, 0.75, 0.5, 0.5, 0.5},
		{"subtract clamps at zero", Subtract, 0.1, 1, 1, 0},
		{"replace full", Replace, 0.8, 0.3, 1, 0.3},
		{"replace none", Replace, 0.8, 0.3, 0, 0.8},
		{"replace half", Replace, 0, 1, 0.5, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Blend(tt.mode, tt.dst, tt.src, tt.alpha); got != tt.out {
				t.Errorf("Blend(%v, %v, %v, %v) = %v, want %v", tt.mode, tt.dst, tt.src, tt.alpha, got, tt.out)
			}
		})
	}
}

func TestDraw_ReplaceFullAlphaWritesSource(t *testing.T) {
	dst := filled(32, 32, 1, 0.7, 0.1, 0.95)
	d := &Draw{
		Quad:      fullQuad(),
		Mask:      mask.NewConstant(4, 4, 1),
		Falloff:   falloff.Default(),
		Blend:     Replace,
		Source:    &field.Source{MinValue: 0, MaxValue: 30},
		MaxHeight: 100,
	}
	if err := d.Execute(context.Background(), nil, dst); err != nil {
		t.Fatal(err)
	}
	want := float32(30) / 100
	for i, v := range dst.Data {
		if v != want {
			t.Fatalf("texel %d = %v, want %v", i, v, want)
		}
	}
}

func TestDraw_ReplaceZeroAlphaKeepsDestination(t *testing.T) {
	dst := filled(16, 16, 1, 0.7, 0.1, 0.95)
	before := append([]float32(nil), dst.Data...)

	cfg := falloff.Default()
	cfg.MaxIntensity = 0
	d := &Draw{
		Quad:      fullQuad(),
		Mask:      mask.NewConstant(4, 4, 1),
		Falloff:   cfg,
		Blend:     Replace,
		Source:    &field.Source{MaxValue: 100},
		MaxHeight: 100,
	}
	if err := d.Execute(context.Background(), compute.NewCPU(3), dst); err != nil {
		t.Fatal(err)
	}
	for i := range before {
		if dst.Data[i] != before[i] {
			t.Fatalf("texel %d changed from %v to %v", i, before[i], dst.Data[i])
		}
	}
}

func TestDraw_OneHotSplatChannel(t *testing.T) {
	dst := filled(8, 8, 4, 0.1, 0.2, 0.3, 0.4)
	d := &Draw{
		Quad:     fullQuad(),
		Mask:     mask.NewConstant(2, 2, 1),
		Falloff:  falloff.Default(),
		Blend:    Replace,
		Channels: [4]float32{0, 0, 1, 0},
	}
	if err := d.Execute(context.Background(), nil, dst); err != nil {
		t.Fatal(err)
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			got := [4]float32{dst.At(x, y, 0), dst.At(x, y, 1), dst.At(x, y, 2), dst.At(x, y, 3)}
			want := [4]float32{0.1, 0.2, 1, 0.4}
			if got != want {
				t.Fatalf("texel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestDraw_FootprintOnly(t *testing.T) {
	dst := NewTarget(64, 64, 1)
	place := Placement{
		World:   math.Bounds{Center: math.Vec3{X: 25, Z: 25}, Size: math.Vec3{X: 50, Z: 50}},
		Terrain: terrainBounds,
	}
	d := &Draw{Quad: place.Quad(), Mask: mask.NewConstant(1, 1, 1), Falloff: falloff.Default(), Blend: Add}
	if err := d.Execute(context.Background(), nil, dst); err != nil {
		t.Fatal(err)
	}
	if v := dst.At(10, 10, 0); v != 1 {
		t.Errorf("inside footprint = %v, want 1", v)
	}
	if v := dst.At(40, 40, 0); v != 0 {
		t.Errorf("outside footprint = %v, want 0", v)
	}
	if v := dst.At(40, 10, 0); v != 0 {
		t.Errorf("outside footprint = %v, want 0", v)
	}
}

func TestPlacement_Rotation(t *testing.T) {
	place := Placement{
		World:    math.Bounds{Center: math.Vec3{X: 50, Z: 50}, Size: math.Vec3{X: 80, Z: 20}},
		Terrain:  terrainBounds,
		Rotation: math.QuatFromYaw(90),
		Oriented: true,
	}
	q := place.Quad()
	if _, ok := q.Local(math.Vec2{X: 0.5, Y: 0.85}); !ok {
		t.Error("rotated quad should cover (0.5, 0.85)")
	}
	if _, ok := q.Local(math.Vec2{X: 0.85, Y: 0.5}); ok {
		t.Error("rotated quad should not cover (0.85, 0.5)")
	}

	place.Oriented = false
	q = place.Quad()
	if _, ok := q.Local(math.Vec2{X: 0.85, Y: 0.5}); !ok {
		t.Error("unoriented quad should ignore rotation")
	}
}

func TestQuad_OverlapsTerrain(t *testing.T) {
	strip := math.Bounds{Center: math.Vec3{X: 50, Z: 115}, Size: math.Vec3{X: 100, Z: 10}}
	tests := []struct {
		name  string
		world math.Bounds
		yaw   float32
		want  bool
	}{
		{"inside", math.Bounds{Center: math.Vec3{X: 50, Z: 50}, Size: math.Vec3{X: 10, Z: 10}}, 0, true},
		{"strip past the edge", strip, 0, false},
		{"rotated strip reaching in", strip, 90, true},
		{"far away rotated", math.Bounds{Center: math.Vec3{X: 300, Z: 300}, Size: math.Vec3{X: 100, Z: 10}}, 45, false},
		{"zero size", math.Bounds{Center: math.Vec3{X: 50, Z: 50}}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			place := Placement{
				World:          tt.world,
				Terrain:        terrainBounds,
				Rotation:       math.QuatFromYaw(tt.yaw),
				Oriented:       true,
				MaintainAspect: true,
			}
			if got := place.Quad().OverlapsTerrain(); got != tt.want {
				t.Errorf("OverlapsTerrain = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlacement_AspectCorrection(t *testing.T) {
	place := Placement{
		World:          math.Bounds{Center: math.Vec3{X: 50, Z: 50}, Size: math.Vec3{X: 40, Z: 10}},
		Terrain:        terrainBounds,
		MaintainAspect: true,
	}
	sample := math.Vec2{X: 0.5, Y: 0.32}
	if _, ok := place.Quad().Local(sample); ok {
		t.Error("aspect-preserving quad should be 0.1 deep")
	}

	place.MaintainAspect = false
	local, ok := place.Quad().Local(sample)
	if !ok {
		t.Fatal("stretched quad should be square")
	}
	if local.Y > 0.1 {
		t.Errorf("local v = %v, want near the quad's edge", local.Y)
	}
}

func TestParseBlendMode(t *testing.T) {
	for _, m := range []BlendMode{Add, Subtract, Replace} {
		got, err := ParseBlendMode(m.String())
		if err != nil || got != m {
			t.Errorf("ParseBlendMode(%q) = (%v, %v)", m.String(), got, err)
		}
	}
	if _, err := ParseBlendMode("multiply"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
