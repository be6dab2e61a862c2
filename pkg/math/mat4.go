package math

// Mat4 is a 4x4 column-major matrix. Element (row r, column c) lives at
// index c*4+r, so the translation occupies indices 12..14.
//
// Only affine transforms are built in this package; the bottom row is
// always (0, 0, 0, 1).
type Mat4 [16]float32

// Identity returns the identity matrix.
func Identity() Mat4 {
	var m Mat4
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
	return m
}

// Translate returns a translation by (x, y, z).
func Translate(x, y, z float32) Mat4 {
	m := Identity()
	m[12], m[13], m[14] = x, y, z
	return m
}

// Scale returns a per-axis scale.
func Scale(x, y, z float32) Mat4 {
	m := Identity()
	m[0], m[5], m[10] = x, y, z
	return m
}

func (m Mat4) at(row, col int) float32 {
	return m[col*4+row]
}

// Mul returns m * o, so o is applied first.
func (m Mat4) Mul(o Mat4) Mat4 {
	var out Mat4
	for c := range 4 {
		for r := range 4 {
			var sum float32
			for k := range 4 {
				sum += m.at(r, k) * o.at(k, c)
			}
			out[c*4+r] = sum
		}
	}
	return out
}

// TransformPoint applies m to p with w = 1.
func (m Mat4) TransformPoint(p Vec3) Vec3 {
	return m.TransformDirection(p).Add(m.Translation())
}

// TransformDirection applies the linear part of m to d.
func (m Mat4) TransformDirection(d Vec3) Vec3 {
	return Vec3{
		m[0]*d.X + m[4]*d.Y + m[8]*d.Z,
		m[1]*d.X + m[5]*d.Y + m[9]*d.Z,
		m[2]*d.X + m[6]*d.Y + m[10]*d.Z,
	}
}

// Translation returns the translation column.
func (m Mat4) Translation() Vec3 {
	return Vec3{m[12], m[13], m[14]}
}

// WithoutTranslation returns m with its translation column zeroed.
func (m Mat4) WithoutTranslation() Mat4 {
	m[12], m[13], m[14] = 0, 0, 0
	return m
}

// Inverse inverts an affine matrix. ok is false, and the identity is
// returned, when the linear part is singular.
func (m Mat4) Inverse() (inv Mat4, ok bool) {
	a, b, c := m[0], m[4], m[8]
	d, e, f := m[1], m[5], m[9]
	g, h, i := m[2], m[6], m[10]

	// Cofactors of the upper-left 3x3, laid out as the adjugate.
	co00, co01, co02 := e*i-f*h, c*h-b*i, b*f-c*e
	co10, co11, co12 := f*g-d*i, a*i-c*g, c*d-a*f
	co20, co21, co22 := d*h-e*g, b*g-a*h, a*e-b*d

	det := a*co00 + b*co10 + c*co20
	if Abs(det) < 1e-12 {
		return Identity(), false
	}
	k := 1 / det

	inv = Identity()
	inv[0], inv[4], inv[8] = co00*k, co01*k, co02*k
	inv[1], inv[5], inv[9] = co10*k, co11*k, co12*k
	inv[2], inv[6], inv[10] = co20*k, co21*k, co22*k

	t := inv.TransformDirection(m.Translation())
	inv[12], inv[13], inv[14] = -t.X, -t.Y, -t.Z
	return inv, true
}
