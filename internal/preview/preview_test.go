package preview

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/terrastamp/internal/assets"
	"github.com/Faultbox/terrastamp/internal/mask"
	"github.com/Faultbox/terrastamp/internal/shape"
	"github.com/Faultbox/terrastamp/internal/stamp"
	"github.com/Faultbox/terrastamp/pkg/math"
)

func TestHeightImage(t *testing.T) {
	img, err := HeightImage([]float32{0, 1, 0.5, 2}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.RGBAAt(0, 0); got != heightRamp[0] {
		t.Errorf("lowest = %v, want %v", got, heightRamp[0])
	}
	top := heightRamp[len(heightRamp)-1]
	if got := img.RGBAAt(1, 0); got != top {
		t.Errorf("highest = %v, want %v", got, top)
	}
	if got := img.RGBAAt(1, 1); got != top {
		t.Errorf("clamped = %v, want %v", got, top)
	}
	if got := img.RGBAAt(0, 1); got != heightRamp[2] {
		t.Errorf("middle = %v, want %v", got, heightRamp[2])
	}

	if _, err := HeightImage(nil, 4); !errors.Is(err, ErrEmptyBuffer) {
		t.Errorf("expected ErrEmptyBuffer, got %v", err)
	}
}

func TestSplatImage(t *testing.T) {
	first := make([]float32, 2*2*4)
	second := make([]float32, 2*2*4)
	first[0] = 1            // pixel 0, slot 0
	second[(1*2+1)*4+1] = 1 // pixel 3, slot 5

	img, err := SplatImage([][]float32{first, second}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.RGBAAt(0, 0); got != LayerPalette[0] {
		t.Errorf("slot 0 pixel = %v, want %v", got, LayerPalette[0])
	}
	if got := img.RGBAAt(1, 1); got != LayerPalette[5] {
		t.Errorf("slot 5 pixel = %v, want %v", got, LayerPalette[5])
	}
	if got := img.RGBAAt(1, 0); got != (color.RGBA{A: 255}) {
		t.Errorf("unpainted pixel = %v, want black", got)
	}
}

func TestMaskImage(t *testing.T) {
	m := mask.New(3, 1)
	m.Set(0, 0, 0)
	m.Set(1, 0, 0.5)
	m.Set(2, 0, 1)

	img, err := MaskImage(m)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint8{0, 128, 255}
	for x, w := range want {
		if got := img.GrayAt(x, 0).Y; got != w {
			t.Errorf("pixel %d = %d, want %d", x, got, w)
		}
	}
	if _, err := MaskImage(nil); !errors.Is(err, ErrEmptyBuffer) {
		t.Errorf("expected ErrEmptyBuffer, got %v", err)
	}
}

func TestWritePNG_Outline(t *testing.T) {
	base := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for i := 3; i < len(base.Pix); i += 4 {
		base.Pix[i] = 255
	}
	outline := Outline{Label: "box", Corners: [4]math.Vec2{
		{X: 0.25, Y: 0.25}, {X: 0.75, Y: 0.25}, {X: 0.75, Y: 0.75}, {X: 0.25, Y: 0.75},
	}}

	var buf bytes.Buffer
	if err := WritePNG(&buf, base, 4, []Outline{outline}); err != nil {
		t.Fatalf("WritePNG failed: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decoding PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 64 {
		t.Fatalf("size = %v, want 64x64", b)
	}

	// Midpoint of the top edge is stroked; the centre is not.
	r, g, _, _ := img.At(32, 16).RGBA()
	if r <= g || r < 0x4000 {
		t.Errorf("edge pixel r=%x g=%x, want red stroke", r, g)
	}
	if r, _, _, _ := img.At(32, 32).RGBA(); r != 0 {
		t.Errorf("centre pixel r=%x, want untouched", r)
	}
}

func TestSavePNG(t *testing.T) {
	img, err := HeightImage(make([]float32, 4), 2)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "nested", "height.png")
	if err := SavePNG(path, img, 1, nil); err != nil {
		t.Fatalf("SavePNG failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("preview not written: %v", err)
	}
}

func TestStampOutline(t *testing.T) {
	terrain := math.Bounds{Center: math.Vec3{X: 50, Z: 50}, Size: math.Vec3{X: 100, Y: 10, Z: 100}}
	terrains := []math.Bounds{terrain}

	s := stamp.New("r", 0, shape.NewRectangle(20, 10))
	s.Transform.Position = math.Vec3{X: 50, Z: 50}
	if err := s.Shape.GenerateMask(t.Context(), shape.NewEnv(assets.NewDefaultManager(16))); err != nil {
		t.Fatal(err)
	}

	o, ok := StampOutline(s, terrains, terrain)
	if !ok {
		t.Fatal("expected an outline for an oriented shape")
	}
	if o.Label != "r" {
		t.Errorf("label = %q", o.Label)
	}
	lo, hi := o.Corners[0], o.Corners[2]
	if !near(lo.X, 0.4) || !near(lo.Y, 0.45) || !near(hi.X, 0.6) || !near(hi.Y, 0.55) {
		t.Errorf("corners = %v", o.Corners)
	}

	if _, ok := StampOutline(stamp.New("g", 0, shape.NewGlobal()), terrains, terrain); ok {
		t.Error("global stamps have no outline")
	}
}

func near(a, b float32) bool {
	return math.Abs(a-b) < 1e-4
}
