package mask

import (
	"testing"
)

func approx(a, b, tol float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func TestNewRadialGradient(t *testing.T) {
	m := NewRadialGradient(64)

	if c := m.Sample(0.5, 0.5); c < 0.97 {
		t.Errorf("centre = %v, want ~1", c)
	}
	if corner := m.At(0, 0); corner != 0 {
		t.Errorf("corner = %v, want 0", corner)
	}
	if edge := m.Sample(1, 0.5); edge > 0.05 {
		t.Errorf("edge = %v, want ~0", edge)
	}
	if hi := m.Max(); hi > 1 {
		t.Errorf("max = %v, want <= 1", hi)
	}
}

func TestSample_ClampsAndInterpolates(t *testing.T) {
	m := New(2, 1)
	m.Set(0, 0, 0)
	m.Set(1, 0, 1)

	tests := []struct {
		u, want float32
	}{
		{-1, 0},
		{0.25, 0},
		{0.5, 0.5},
		{0.75, 1},
		{2, 1},
	}
	for _, tt := range tests {
		if got := m.Sample(tt.u, 0.5); !approx(got, tt.want, 1e-6) {
			t.Errorf("Sample(%v) = %v, want %v", tt.u, got, tt.want)
		}
	}
}

func TestSet_IgnoresOutOfRange(t *testing.T) {
	m := New(2, 2)
	m.Set(-1, 0, 1)
	m.Set(2, 2, 1)
	for i, v := range m.Data {
		if v != 0 {
			t.Errorf("texel %d = %v, want 0", i, v)
		}
	}
}

func TestGaussianKernel_SumsToOne(t *testing.T) {
	for _, r := range []float32{0, 0.5, 1, 2, 4} {
		k := GaussianKernel(r)
		var sum float32
		for _, v := range k {
			sum += v
		}
		if !approx(sum, 1, 1e-5) {
			t.Errorf("radius %v: kernel sum = %v, want 1", r, sum)
		}
		if len(k)%2 != 1 {
			t.Errorf("radius %v: kernel length %d is even", r, len(k))
		}
	}
}

func TestBlur_ConstantFieldUnchanged(t *testing.T) {
	m := NewConstant(16, 16, 0.4)
	Blur(m, 2, 3)
	for i, v := range m.Data {
		if !approx(v, 0.4, 1e-5) {
			t.Fatalf("texel %d = %v, want 0.4", i, v)
		}
	}
}

func TestBlur_SoftensStep(t *testing.T) {
	m := New(32, 1)
	for x := 16; x < 32; x++ {
		m.Set(x, 0, 1)
	}
	Blur(m, 2, 1)

	if m.At(15, 0) <= 0 || m.At(16, 0) >= 1 {
		t.Errorf("step not softened: %v %v", m.At(15, 0), m.At(16, 0))
	}
	for x := 1; x < 32; x++ {
		if m.At(x, 0) < m.At(x-1, 0)-1e-6 {
			t.Errorf("blurred step not monotonic at %d", x)
		}
	}
}
