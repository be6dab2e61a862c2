package shape

import (
	"context"
	"fmt"
	"image"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/image/vector"

	"github.com/Faultbox/terrastamp/internal/assets"
	"github.com/Faultbox/terrastamp/internal/compute"
	"github.com/Faultbox/terrastamp/internal/mask"
	"github.com/Faultbox/terrastamp/internal/spline"
	"github.com/Faultbox/terrastamp/pkg/math"
)

// GroupSize is the boundary sample granularity of the distance passes.
const GroupSize = 64

const regionBlurPasses = 1

// Region is the area enclosed by a curve, filled with a distance field that
// reads 0 on and outside the boundary and 1 at the deepest interior point.
type Region struct {
	state
	Curve *spline.Curve
}

// NewRegion creates a region shape. The curve is treated as closed.
func NewRegion(curve *spline.Curve) *Region {
	return &Region{Curve: curve}
}

func (r *Region) Kind() Kind { return KindRegion }

// field is the pixel-space input shared by both distance paths.
type field struct {
	res      int
	boundary []math.Vec2
	inside   []bool
}

func (f *field) center(x, y int) math.Vec2 {
	return math.Vec2{X: float32(x) + 0.5, Y: float32(y) + 0.5}
}

// GenerateMask builds the distance field, by jump flooding when its
// programs are available and by a single brute-force pass otherwise.
func (r *Region) GenerateMask(ctx context.Context, env *Env) error {
	if r.Curve == nil || len(r.Curve.Knots) < 3 {
		return ErrDegenerateShape
	}
	closed := r.Curve.Closed
	r.Curve.Closed = true
	defer func() { r.Curve.Closed = closed }()

	length := r.Curve.Length()
	if length < math.Epsilon {
		return ErrDegenerateShape
	}
	count := roundUp(max(int(length*env.Settings.BoundarySamplesPerUnit), 1), GroupSize)
	samples := r.Curve.SampleEven(count)
	points := make([]math.Vec3, len(samples))
	for i, s := range samples {
		points[i] = s.Position
	}
	if math.Abs(polygonArea(points)) < math.Epsilon {
		return ErrDegenerateShape
	}

	bounds := r.Curve.Bounds().Union(math.BoundsOf(points)).SquareXZ()
	if bounds.HorizontalArea() < math.Epsilon {
		return ErrDegenerateShape
	}

	key := newFingerprint(KindRegion).knots(r.Curve.Knots).settings(env.Settings).key()
	if e, ok := env.Assets.Cache().Get(key); ok {
		r.commit(e.Mask, e.Bounds)
		return nil
	}

	res := env.Settings.Resolution(max(bounds.Size.X, bounds.Size.Z))
	f := &field{res: res}
	toPixel := pixelMapper(bounds, res)
	f.boundary = make([]math.Vec2, len(points))
	for i, p := range points {
		f.boundary[i] = toPixel(p)
	}
	f.inside = insideMask(f.boundary, res)

	m, err := r.distance(ctx, env, f)
	if err != nil {
		return err
	}
	m = env.blurOrKeep(ctx, KindRegion, m, regionBlurPasses)

	env.Assets.Cache().Set(key, assets.Entry{Mask: m, Bounds: bounds})
	r.commit(m, bounds)
	return nil
}

func (r *Region) distance(ctx context.Context, env *Env, f *field) (*mask.Mask, error) {
	if env.Settings.JumpFlood {
		err := env.Assets.RequirePrograms(assets.ProgramJFASeed, assets.ProgramJFAStep, assets.ProgramJFAResolve)
		if err == nil {
			m, jerr := jumpFlood(ctx, env.Device, f)
			if jerr == nil {
				return m, nil
			}
			err = jerr
		}
		env.log().Warn("jump flooding unavailable, using single-pass distance",
			zap.Int("resolution", f.res),
			zap.Error(err))
	}

	if err := env.Assets.RequirePrograms(assets.ProgramDistanceSeed, assets.ProgramNormalize); err != nil {
		return nil, err
	}
	return bruteForce(ctx, env.Device, f)
}

// jumpFlood runs the seed pass, log2(res) propagation passes with halving
// step, and an atomic-max resolve followed by normalization.
func jumpFlood(ctx context.Context, dev compute.Device, f *field) (*mask.Mask, error) {
	res := f.res
	seeds := make([]atomic.Int32, res*res)
	for i := range seeds {
		seeds[i].Store(-1)
	}

	n := len(f.boundary)
	_, err := dev.Dispatch(ctx, assets.ProgramJFASeed, n, func(i0, i1 int) error {
		for i := i0; i < i1; i++ {
			p := f.boundary[i]
			x := min(max(int(p.X), 0), res-1)
			y := min(max(int(p.Y), 0), res-1)
			slot := &seeds[y*res+x]
			for {
				old := slot.Load()
				if old != -1 && old <= int32(i) {
					break
				}
				if slot.CompareAndSwap(old, int32(i)) {
					break
				}
			}
		}
		return nil
	}).Wait()
	if err != nil {
		return nil, err
	}

	src := make([]int32, res*res)
	dst := make([]int32, res*res)
	for i := range seeds {
		src[i] = seeds[i].Load()
	}

	for step := res / 2; step >= 1; step /= 2 {
		_, err := dev.Dispatch(ctx, assets.ProgramJFAStep, res, func(y0, y1 int) error {
			for y := y0; y < y1; y++ {
				for x := 0; x < res; x++ {
					c := f.center(x, y)
					best := src[y*res+x]
					bestD := float32(-1)
					if best >= 0 {
						bestD = c.Distance(f.boundary[best])
					}
					for dy := -1; dy <= 1; dy++ {
						ny := y + dy*step
						if ny < 0 || ny >= res {
							continue
						}
						for dx := -1; dx <= 1; dx++ {
							nx := x + dx*step
							if nx < 0 || nx >= res {
								continue
							}
							s := src[ny*res+nx]
							if s < 0 {
								continue
							}
							if d := c.Distance(f.boundary[s]); bestD < 0 || d < bestD {
								best, bestD = s, d
							}
						}
					}
					dst[y*res+x] = best
				}
			}
			return nil
		}).Wait()
		if err != nil {
			return nil, err
		}
		src, dst = dst, src
	}

	m := mask.New(res, res)
	var peak compute.MaxFloat32
	_, err = dev.Dispatch(ctx, assets.ProgramJFAResolve, res, func(y0, y1 int) error {
		for y := y0; y < y1; y++ {
			for x := 0; x < res; x++ {
				i := y*res + x
				if !f.inside[i] || src[i] < 0 {
					continue
				}
				d := f.center(x, y).Distance(f.boundary[src[i]])
				m.Data[i] = d
				peak.Observe(d)
			}
		}
		return nil
	}).Wait()
	if err != nil {
		return nil, err
	}

	if err := normalize(ctx, dev, assets.ProgramJFAResolve, m, peak.Load()); err != nil {
		return nil, err
	}
	return m, nil
}

// bruteForce computes every interior pixel's distance to every boundary
// sample in one pass.
func bruteForce(ctx context.Context, dev compute.Device, f *field) (*mask.Mask, error) {
	res := f.res
	m := mask.New(res, res)
	var peak compute.MaxFloat32
	_, err := dev.Dispatch(ctx, assets.ProgramDistanceSeed, res, func(y0, y1 int) error {
		for y := y0; y < y1; y++ {
			for x := 0; x < res; x++ {
				i := y*res + x
				if !f.inside[i] {
					continue
				}
				c := f.center(x, y)
				best := float32(-1)
				for _, b := range f.boundary {
					if d := c.Distance(b); best < 0 || d < best {
						best = d
					}
				}
				m.Data[i] = best
				peak.Observe(best)
			}
		}
		return nil
	}).Wait()
	if err != nil {
		return nil, err
	}

	if err := normalize(ctx, dev, assets.ProgramNormalize, m, peak.Load()); err != nil {
		return nil, err
	}
	return m, nil
}

// normalize divides m by peak. The peak is the joined result of the
// previous dispatch, consumed here.
func normalize(ctx context.Context, dev compute.Device, name string, m *mask.Mask, peak float32) error {
	inv := 1 / max(peak, math.Epsilon)
	_, err := dev.Dispatch(ctx, name, m.Height, func(y0, y1 int) error {
		for i := y0 * m.Width; i < y1*m.Width; i++ {
			m.Data[i] = math.Clamp01(m.Data[i] * inv)
		}
		return nil
	}).Wait()
	if err != nil {
		return fmt.Errorf("normalize: %w", err)
	}
	return nil
}

// insideMask fills the boundary polygon and reports pixels whose centre
// coverage is at least one half.
func insideMask(boundary []math.Vec2, res int) []bool {
	z := vector.NewRasterizer(res, res)
	z.MoveTo(boundary[0].X, boundary[0].Y)
	for _, p := range boundary[1:] {
		z.LineTo(p.X, p.Y)
	}
	z.ClosePath()

	alpha := image.NewAlpha(image.Rect(0, 0, res, res))
	z.Draw(alpha, alpha.Bounds(), image.Opaque, image.Point{})

	inside := make([]bool, res*res)
	for i, a := range alpha.Pix {
		inside[i] = a >= 128
	}
	return inside
}

// polygonArea returns the signed XZ area of a closed polyline.
func polygonArea(points []math.Vec3) float32 {
	var area float32
	for i, p := range points {
		q := points[(i+1)%len(points)]
		area += p.X*q.Z - q.X*p.Z
	}
	return area / 2
}

func roundUp(n, multiple int) int {
	return (n + multiple - 1) / multiple * multiple
}

