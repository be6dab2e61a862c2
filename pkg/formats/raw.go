package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// RAW format errors.
var (
	ErrTruncatedRAWData = errors.New("truncated RAW data")
	ErrNotSquare        = errors.New("RAW data is not square")
	ErrSizeMismatch     = errors.New("RAW buffer size mismatch")
)

// SplatChannels is the channel count of a splat RAW pixel (RGBA).
const SplatChannels = 4

// maxRAWResolution bounds parsed dimensions.
const maxRAWResolution = 8192

// RAW16 is a square heightmap of little-endian uint16 samples, row-major
// with row 0 at the terrain's minimum Z.
type RAW16 struct {
	Resolution int
	Samples    []uint16
}

// ParseRAW16 parses a RAW16 heightmap. The resolution is inferred from
// the sample count, which must be a perfect square.
func ParseRAW16(data []byte) (*RAW16, error) {
	if len(data) < 2 || len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncatedRAWData, len(data))
	}
	n := len(data) / 2
	res := int(math.Sqrt(float64(n)))
	for res*res < n {
		res++
	}
	if res*res != n {
		return nil, fmt.Errorf("%w: %d samples", ErrNotSquare, n)
	}
	if res > maxRAWResolution {
		return nil, fmt.Errorf("invalid RAW16 resolution: %d", res)
	}

	raw := &RAW16{Resolution: res, Samples: make([]uint16, n)}
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, raw.Samples); err != nil {
		return nil, fmt.Errorf("%w: reading samples", ErrTruncatedRAWData)
	}
	return raw, nil
}

// ParseRAW16File parses a RAW16 heightmap from disk.
func ParseRAW16File(path string) (*RAW16, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading RAW16 file: %w", err)
	}
	return ParseRAW16(data)
}

// RAW16FromHeights quantizes normalized heights. Values are clamped to [0,1].
func RAW16FromHeights(heights []float32, resolution int) (*RAW16, error) {
	if resolution <= 0 || len(heights) != resolution*resolution {
		return nil, fmt.Errorf("%w: %d heights for resolution %d", ErrSizeMismatch, len(heights), resolution)
	}
	raw := &RAW16{Resolution: resolution, Samples: make([]uint16, len(heights))}
	for i, h := range heights {
		raw.Samples[i] = quantize16(h)
	}
	return raw, nil
}

// Heights returns the samples normalized to [0,1].
func (r *RAW16) Heights() []float32 {
	out := make([]float32, len(r.Samples))
	for i, s := range r.Samples {
		out[i] = float32(s) / math.MaxUint16
	}
	return out
}

// WriteTo writes the samples in little-endian order.
func (r *RAW16) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, 2*len(r.Samples))
	for i, s := range r.Samples {
		binary.LittleEndian.PutUint16(buf[2*i:], s)
	}
	n, err := w.Write(buf)
	return int64(n), err
}

// WriteRAW16File writes a heightmap to disk.
func WriteRAW16File(path string, r *RAW16) error {
	var buf bytes.Buffer
	if _, err := r.WriteTo(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing RAW16 file: %w", err)
	}
	return nil
}

// SplatRAW is one splat buffer as 8-bit RGBA, one channel per layer.
type SplatRAW struct {
	Resolution int
	Pixels     []uint8
}

// ParseSplatRAW parses an RGBA8 splat buffer of the given resolution.
func ParseSplatRAW(data []byte, resolution int) (*SplatRAW, error) {
	if resolution <= 0 || resolution > maxRAWResolution {
		return nil, fmt.Errorf("invalid splat resolution: %d", resolution)
	}
	want := resolution * resolution * SplatChannels
	if len(data) < want {
		return nil, fmt.Errorf("%w: have %d bytes, want %d", ErrTruncatedRAWData, len(data), want)
	}
	if len(data) > want {
		return nil, fmt.Errorf("%w: have %d bytes, want %d", ErrSizeMismatch, len(data), want)
	}
	return &SplatRAW{Resolution: resolution, Pixels: bytes.Clone(data)}, nil
}

// SplatFromWeights quantizes interleaved RGBA weights.
func SplatFromWeights(weights []float32, resolution int) (*SplatRAW, error) {
	if resolution <= 0 || len(weights) != resolution*resolution*SplatChannels {
		return nil, fmt.Errorf("%w: %d weights for resolution %d", ErrSizeMismatch, len(weights), resolution)
	}
	s := &SplatRAW{Resolution: resolution, Pixels: make([]uint8, len(weights))}
	for i, w := range weights {
		s.Pixels[i] = quantize8(w)
	}
	return s, nil
}

// Weights returns the interleaved channel weights in [0,1].
func (s *SplatRAW) Weights() []float32 {
	out := make([]float32, len(s.Pixels))
	for i, p := range s.Pixels {
		out[i] = float32(p) / math.MaxUint8
	}
	return out
}

// Channel returns one channel as a resolution×resolution plane.
func (s *SplatRAW) Channel(c int) []float32 {
	if c < 0 || c >= SplatChannels {
		return nil
	}
	out := make([]float32, s.Resolution*s.Resolution)
	for i := range out {
		out[i] = float32(s.Pixels[i*SplatChannels+c]) / math.MaxUint8
	}
	return out
}

// WriteSplatRAWFile writes a splat buffer to disk.
func WriteSplatRAWFile(path string, s *SplatRAW) error {
	if err := os.WriteFile(path, s.Pixels, 0644); err != nil {
		return fmt.Errorf("writing splat RAW file: %w", err)
	}
	return nil
}

func quantize16(v float32) uint16 {
	return uint16(math.Round(float64(clamp01(v)) * math.MaxUint16))
}

func quantize8(v float32) uint8 {
	return uint8(math.Round(float64(clamp01(v)) * math.MaxUint8))
}

func clamp01(v float32) float32 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
