package math

// Bounds is an axis-aligned box stored as centre and full size, the way
// stamps and shapes report their footprint.
type Bounds struct {
	Center Vec3
	Size   Vec3
}

// BoundsFromMinMax builds a box spanning lo..hi.
func BoundsFromMinMax(lo, hi Vec3) Bounds {
	lo, hi = lo.Min(hi), lo.Max(hi)
	return Bounds{
		Center: LerpVec3(lo, hi, 0.5),
		Size:   hi.Sub(lo),
	}
}

// Min returns the minimum corner.
func (b Bounds) Min() Vec3 {
	return b.Center.Sub(b.Size.Scale(0.5))
}

// Max returns the maximum corner.
func (b Bounds) Max() Vec3 {
	return b.Center.Add(b.Size.Scale(0.5))
}

// Extents returns half the size.
func (b Bounds) Extents() Vec3 {
	return b.Size.Scale(0.5)
}

// IsZero reports whether b is the zero box.
func (b Bounds) IsZero() bool {
	return b == Bounds{}
}

// Union returns the smallest box containing b and other.
func (b Bounds) Union(other Bounds) Bounds {
	return BoundsFromMinMax(b.Min().Min(other.Min()), b.Max().Max(other.Max()))
}

// Encapsulate grows b to contain p.
func (b Bounds) Encapsulate(p Vec3) Bounds {
	return BoundsFromMinMax(b.Min().Min(p), b.Max().Max(p))
}

// HorizontalArea returns the XZ footprint area.
func (b Bounds) HorizontalArea() float32 {
	return b.Size.X * b.Size.Z
}

// SquareXZ stretches the shorter of the X/Z sides to the longer one,
// keeping the centre.
func (b Bounds) SquareXZ() Bounds {
	side := max(b.Size.X, b.Size.Z)
	b.Size.X, b.Size.Z = side, side
	return b
}

// ContainsXZ reports whether p lies inside b on the horizontal plane.
func (b Bounds) ContainsXZ(p Vec3) bool {
	lo, hi := b.Min(), b.Max()
	return p.X >= lo.X && p.X <= hi.X && p.Z >= lo.Z && p.Z <= hi.Z
}

// BoundsOf returns the box around points. The zero box is returned for
// an empty slice.
func BoundsOf(points []Vec3) Bounds {
	if len(points) == 0 {
		return Bounds{}
	}
	lo, hi := points[0], points[0]
	for _, p := range points[1:] {
		lo = lo.Min(p)
		hi = hi.Max(p)
	}
	return BoundsFromMinMax(lo, hi)
}

// Transform is a placed object's position, orientation and scale.
type Transform struct {
	Position Vec3
	Rotation Quat
	Scale    Vec3
}

// IdentityTransform returns a transform at the origin with unit scale.
func IdentityTransform() Transform {
	return Transform{Rotation: QuatIdentity(), Scale: Vec3{1, 1, 1}}
}

// ApplyBounds maps a local box into world space. Rotation moves the centre
// but the size stays axis-aligned in the local frame; the rasterizer
// applies orientation separately.
func (t Transform) ApplyBounds(local Bounds) Bounds {
	s := t.scale()
	center := t.Rotation.Rotate(local.Center.Mul(s)).Add(t.Position)
	return Bounds{Center: center, Size: local.Size.Mul(s).Abs()}
}

func (t Transform) scale() Vec3 {
	if t.Scale == (Vec3{}) {
		return Vec3{1, 1, 1}
	}
	return t.Scale
}
