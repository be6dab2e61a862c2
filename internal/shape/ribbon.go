package shape

import (
	"context"
	"fmt"
	"image"
	stdmath "math"

	"go.uber.org/zap"
	"golang.org/x/image/vector"

	"github.com/Faultbox/terrastamp/internal/assets"
	"github.com/Faultbox/terrastamp/internal/mask"
	"github.com/Faultbox/terrastamp/internal/spline"
	"github.com/Faultbox/terrastamp/pkg/math"
)

const (
	minRibbonSegments = 16
	maxRibbonSegments = 256

	shortCurveLength = 50
	longCurveLength  = 500
)

// Ribbon is a strip swept along an open curve.
type Ribbon struct {
	state
	Curve *spline.Curve
	Width float32
	// WidthCurve overrides Width when set, keyed by normalized arc length.
	WidthCurve spline.Keyframes
}

// NewRibbon creates a constant-width ribbon.
func NewRibbon(curve *spline.Curve, width float32) *Ribbon {
	return &Ribbon{Curve: curve, Width: width}
}

func (r *Ribbon) Kind() Kind { return KindRibbon }

// Segments returns the adaptive step count for a curve of the given
// length and total turning angle.
func Segments(length, turning, segmentLength float32) int {
	n := int(length/math.NonZero(segmentLength)) + int(turning*8/stdmath.Pi)
	return min(max(n, minRibbonSegments), maxRibbonSegments)
}

// BlurPasses returns 3 passes for short or curvy ribbons, 1 for long and
// straight ones, 2 otherwise.
func BlurPasses(length, turning float32) int {
	switch {
	case length < shortCurveLength || turning > stdmath.Pi:
		return 3
	case length > longCurveLength && turning < stdmath.Pi/4:
		return 1
	default:
		return 2
	}
}

// GenerateMask rasterizes the strip top-down and softens it.
func (r *Ribbon) GenerateMask(ctx context.Context, env *Env) error {
	if r.Curve == nil || r.Curve.Segments() == 0 {
		return ErrDegenerateShape
	}
	length := r.Curve.Length()
	if length < math.Epsilon || r.WidthCurve.MaxValue(r.Width) <= 0 {
		return ErrDegenerateShape
	}
	if err := env.Assets.RequirePrograms(assets.ProgramRibbonRaster); err != nil {
		return err
	}

	key := newFingerprint(KindRibbon).
		knots(r.Curve.Knots).flag(r.Curve.Closed).
		floats(r.Width).keyframes(r.WidthCurve).
		settings(env.Settings).key()
	if e, ok := env.Assets.Cache().Get(key); ok {
		r.commit(e.Mask, e.Bounds)
		return nil
	}

	turning := r.Curve.TurningAngle()
	segments := Segments(length, turning, env.Settings.SegmentLength)
	samples := r.Curve.SampleEven(segments + 1)
	left, right := r.strip(samples, length)

	bounds := r.Curve.Bounds().Union(math.BoundsOf(left)).Union(math.BoundsOf(right))
	res := env.Settings.Resolution(length)

	m, err := rasterizeStrip(ctx, env, left, right, bounds, res)
	if err != nil {
		return err
	}
	m = env.blurOrKeep(ctx, KindRibbon, m, BlurPasses(length, turning))

	env.log().Debug("ribbon mask generated",
		zap.Int("segments", segments),
		zap.Int("resolution", res),
		zap.Float32("length", length))

	env.Assets.Cache().Set(key, assets.Entry{Mask: m, Bounds: bounds})
	r.commit(m, bounds)
	return nil
}

// strip emits the left and right edge vertices, both at the sample's height.
func (r *Ribbon) strip(samples []spline.Sample, length float32) (left, right []math.Vec3) {
	left = make([]math.Vec3, len(samples))
	right = make([]math.Vec3, len(samples))
	perp := math.Vec3{Z: 1}
	for i, s := range samples {
		if p := (math.Vec3{X: -s.Tangent.Z, Z: s.Tangent.X}); p.Length() > math.Epsilon {
			perp = p.Normalize()
		}
		half := r.WidthCurve.Evaluate(s.Distance/length, r.Width) / 2
		left[i] = s.Position.Add(perp.Scale(half))
		right[i] = s.Position.Sub(perp.Scale(half))
	}
	return left, right
}

// rasterizeStrip fills the triangulated strip into a res x res mask whose
// pixels span bounds on X/Z.
func rasterizeStrip(ctx context.Context, env *Env, left, right []math.Vec3, bounds math.Bounds, res int) (*mask.Mask, error) {
	toPixel := pixelMapper(bounds, res)

	z := vector.NewRasterizer(res, res)
	for i := 0; i+1 < len(left); i++ {
		l0, r0 := toPixel(left[i]), toPixel(right[i])
		l1, r1 := toPixel(left[i+1]), toPixel(right[i+1])
		addTriangle(z, l0, r0, r1)
		addTriangle(z, l0, r1, l1)
	}
	alpha := image.NewAlpha(image.Rect(0, 0, res, res))

	m := mask.New(res, res)
	_, err := env.Device.Dispatch(ctx, assets.ProgramRibbonRaster, 1, func(_, _ int) error {
		z.Draw(alpha, alpha.Bounds(), image.Opaque, image.Point{})
		for i, a := range alpha.Pix {
			m.Data[i] = float32(a) / 255
		}
		return nil
	}).Wait()
	if err != nil {
		return nil, fmt.Errorf("ribbon raster: %w", err)
	}
	return m, nil
}

// addTriangle winds every triangle the same way so coverage accumulates
// instead of cancelling where the strip folds.
func addTriangle(z *vector.Rasterizer, a, b, c math.Vec2) {
	cross := (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
	if math.Abs(cross) < math.Epsilon {
		return
	}
	if cross < 0 {
		b, c = c, b
	}
	z.MoveTo(a.X, a.Y)
	z.LineTo(b.X, b.Y)
	z.LineTo(c.X, c.Y)
	z.ClosePath()
}

// pixelMapper maps world X/Z inside bounds to pixel space of a res x res
// mask. Row index grows with Z.
func pixelMapper(bounds math.Bounds, res int) func(math.Vec3) math.Vec2 {
	lo := bounds.Min()
	sx := float32(res) / math.NonZero(bounds.Size.X)
	sz := float32(res) / math.NonZero(bounds.Size.Z)
	return func(p math.Vec3) math.Vec2 {
		return math.Vec2{X: (p.X - lo.X) * sx, Y: (p.Z - lo.Z) * sz}
	}
}
