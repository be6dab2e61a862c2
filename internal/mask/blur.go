package mask

import (
	"math"
	"sync"
)

// GaussianKernel generates a normalized 1D Gaussian kernel using radius as
// sigma. The kernel spans 3 sigma on either side. radius <= 0 yields the
// identity kernel.
func GaussianKernel(radius float32) []float32 {
	if radius <= 0 {
		return []float32{1}
	}

	sigma := float64(radius)
	halfSize := int(math.Ceil(sigma * 3))
	size := halfSize*2 + 1
	kernel := make([]float32, size)

	twoSigmaSq := 2 * sigma * sigma
	sum := 0.0
	for i := 0; i < size; i++ {
		x := float64(i - halfSize)
		val := math.Exp(-(x * x) / twoSigmaSq)
		kernel[i] = float32(val)
		sum += val
	}

	invSum := float32(1 / sum)
	for i := range kernel {
		kernel[i] *= invSum
	}
	return kernel
}

var (
	kernelMu    sync.RWMutex
	kernelCache = map[float32][]float32{}
)

func cachedKernel(radius float32) []float32 {
	kernelMu.RLock()
	k, ok := kernelCache[radius]
	kernelMu.RUnlock()
	if ok {
		return k
	}
	k = GaussianKernel(radius)
	kernelMu.Lock()
	kernelCache[radius] = k
	kernelMu.Unlock()
	return k
}

// BlurRows convolves rows [y0, y1) of src horizontally into dst.
// Edges clamp. src and dst must have equal dimensions and must not alias.
func BlurRows(src, dst *Mask, radius float32, y0, y1 int) {
	kernel := cachedKernel(radius)
	half := len(kernel) / 2
	w := src.Width
	for y := y0; y < y1; y++ {
		row := src.Data[y*w : (y+1)*w]
		out := dst.Data[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			var acc float32
			for k, weight := range kernel {
				sx := clampInt(x+k-half, 0, w-1)
				acc += row[sx] * weight
			}
			out[x] = acc
		}
	}
}

// BlurColumns convolves rows [y0, y1) of dst from src vertically.
// Edges clamp. src and dst must have equal dimensions and must not alias.
func BlurColumns(src, dst *Mask, radius float32, y0, y1 int) {
	kernel := cachedKernel(radius)
	half := len(kernel) / 2
	w, h := src.Width, src.Height
	for y := y0; y < y1; y++ {
		out := dst.Data[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			var acc float32
			for k, weight := range kernel {
				sy := clampInt(y+k-half, 0, h-1)
				acc += src.Data[sy*w+x] * weight
			}
			out[x] = acc
		}
	}
}

// Blur runs passes separable Gaussian blurs in place, ping-ponging through
// one scratch buffer. It is the synchronous reference for the dispatched
// variant in package shape.
func Blur(m *Mask, radius float32, passes int) {
	if m.Empty() || passes <= 0 || radius <= 0 {
		return
	}
	scratch := New(m.Width, m.Height)
	for i := 0; i < passes; i++ {
		BlurRows(m, scratch, radius, 0, m.Height)
		BlurColumns(scratch, m, radius, 0, m.Height)
	}
}
