// Package spline provides the Catmull-Rom curves used by ribbon and region
// shapes.
package spline

import (
	stdmath "math"
	"sort"

	"github.com/Faultbox/terrastamp/pkg/math"
)

// tableStepsPerSegment controls the density of the arc-length table.
const tableStepsPerSegment = 48

// Curve is a uniform Catmull-Rom spline through its knots.
type Curve struct {
	Knots  []math.Vec3
	Closed bool
}

// Sample is a point on the curve at a known arc length.
type Sample struct {
	Position math.Vec3
	Tangent  math.Vec3 // unit length
	Distance float32   // arc length from the start
}

// Segments returns the number of spans between knots.
func (c *Curve) Segments() int {
	n := len(c.Knots)
	if n < 2 {
		return 0
	}
	if c.Closed {
		return n
	}
	return n - 1
}

func (c *Curve) knot(i int) math.Vec3 {
	n := len(c.Knots)
	if c.Closed {
		i %= n
		if i < 0 {
			i += n
		}
		return c.Knots[i]
	}
	if i < 0 {
		i = 0
	}
	if i >= n {
		i = n - 1
	}
	return c.Knots[i]
}

// locate maps t in [0, 1] onto a segment index and local parameter.
func (c *Curve) locate(t float32) (int, float32) {
	segs := c.Segments()
	t = math.Clamp01(t)
	f := t * float32(segs)
	i := int(f)
	if i >= segs {
		i = segs - 1
	}
	return i, f - float32(i)
}

// Evaluate returns the position at normalized parameter t.
func (c *Curve) Evaluate(t float32) math.Vec3 {
	switch len(c.Knots) {
	case 0:
		return math.Vec3{}
	case 1:
		return c.Knots[0]
	}
	i, u := c.locate(t)
	p0, p1, p2, p3 := c.knot(i-1), c.knot(i), c.knot(i+1), c.knot(i+2)

	u2 := u * u
	u3 := u2 * u
	a := -0.5*u3 + u2 - 0.5*u
	b := 1.5*u3 - 2.5*u2 + 1
	cc := -1.5*u3 + 2*u2 + 0.5*u
	d := 0.5*u3 - 0.5*u2
	return p0.Scale(a).Add(p1.Scale(b)).Add(p2.Scale(cc)).Add(p3.Scale(d))
}

// Derivative returns dP/du of the segment containing t.
func (c *Curve) Derivative(t float32) math.Vec3 {
	if len(c.Knots) < 2 {
		return math.Vec3{}
	}
	i, u := c.locate(t)
	p0, p1, p2, p3 := c.knot(i-1), c.knot(i), c.knot(i+1), c.knot(i+2)

	u2 := u * u
	a := -1.5*u2 + 2*u - 0.5
	b := 4.5*u2 - 5*u
	cc := -4.5*u2 + 4*u + 0.5
	d := 1.5*u2 - u
	return p0.Scale(a).Add(p1.Scale(b)).Add(p2.Scale(cc)).Add(p3.Scale(d))
}

// table is the dense (t, distance) lookup used for arc-length sampling.
type table struct {
	params    []float32
	distances []float32
}

func (c *Curve) buildTable() table {
	steps := c.Segments() * tableStepsPerSegment
	tb := table{
		params:    make([]float32, steps+1),
		distances: make([]float32, steps+1),
	}
	prev := c.Evaluate(0)
	for i := 1; i <= steps; i++ {
		t := float32(i) / float32(steps)
		p := c.Evaluate(t)
		tb.params[i] = t
		tb.distances[i] = tb.distances[i-1] + p.Distance(prev)
		prev = p
	}
	return tb
}

// Length returns the approximate arc length.
func (c *Curve) Length() float32 {
	if c.Segments() == 0 {
		return 0
	}
	tb := c.buildTable()
	return tb.distances[len(tb.distances)-1]
}

// Bounds returns the box around the curve, including interpolated
// overshoot between knots.
func (c *Curve) Bounds() math.Bounds {
	if len(c.Knots) == 0 {
		return math.Bounds{}
	}
	b := math.BoundsOf(c.Knots)
	steps := c.Segments() * tableStepsPerSegment
	for i := 0; i <= steps; i++ {
		b = b.Encapsulate(c.Evaluate(float32(i) / float32(steps)))
	}
	return b
}

// SampleEven returns count samples spaced evenly by arc length. Open
// curves include both endpoints; closed curves do not repeat the start.
func (c *Curve) SampleEven(count int) []Sample {
	if c.Segments() == 0 || count < 2 {
		return nil
	}
	tb := c.buildTable()
	total := tb.distances[len(tb.distances)-1]

	div := float32(count - 1)
	if c.Closed {
		div = float32(count)
	}

	out := make([]Sample, count)
	for i := range out {
		d := total * float32(i) / div
		t := tb.paramAt(d)
		out[i] = Sample{
			Position: c.Evaluate(t),
			Tangent:  c.Derivative(t).Normalize(),
			Distance: d,
		}
	}
	return out
}

func (tb table) paramAt(d float32) float32 {
	n := len(tb.distances)
	j := sort.Search(n, func(i int) bool { return tb.distances[i] >= d })
	if j <= 0 {
		return 0
	}
	if j >= n {
		return 1
	}
	d0, d1 := tb.distances[j-1], tb.distances[j]
	f := (d - d0) / math.NonZero(d1-d0)
	return math.Lerp(tb.params[j-1], tb.params[j], math.Clamp01(f))
}

// TurningAngle returns the total absolute change of horizontal heading in
// radians, a cheap measure of how curvy the path is.
func (c *Curve) TurningAngle() float32 {
	steps := c.Segments() * 8
	if steps == 0 {
		return 0
	}
	var total float64
	prev := headingAt(c, 0)
	for i := 1; i <= steps; i++ {
		h := headingAt(c, float32(i)/float32(steps))
		delta := h - prev
		for delta > stdmath.Pi {
			delta -= 2 * stdmath.Pi
		}
		for delta < -stdmath.Pi {
			delta += 2 * stdmath.Pi
		}
		total += stdmath.Abs(delta)
		prev = h
	}
	return float32(total)
}

func headingAt(c *Curve, t float32) float64 {
	d := c.Derivative(t)
	return stdmath.Atan2(float64(d.Z), float64(d.X))
}

// Key is one point of a Keyframes curve.
type Key struct {
	T     float32
	Value float32
}

// Keyframes is a piecewise linear function over [0, 1], sorted by T.
type Keyframes []Key

// Evaluate returns the interpolated value at t. Values outside the key
// range clamp to the first/last key. An empty curve evaluates to fallback.
func (k Keyframes) Evaluate(t, fallback float32) float32 {
	switch {
	case len(k) == 0:
		return fallback
	case t <= k[0].T:
		return k[0].Value
	case t >= k[len(k)-1].T:
		return k[len(k)-1].Value
	}
	j := sort.Search(len(k), func(i int) bool { return k[i].T >= t })
	a, b := k[j-1], k[j]
	f := (t - a.T) / math.NonZero(b.T-a.T)
	return math.Lerp(a.Value, b.Value, f)
}

// MaxValue returns the largest key value, or fallback for an empty curve.
func (k Keyframes) MaxValue(fallback float32) float32 {
	if len(k) == 0 {
		return fallback
	}
	hi := k[0].Value
	for _, key := range k[1:] {
		hi = max(hi, key.Value)
	}
	return hi
}
