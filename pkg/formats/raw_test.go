package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"
)

// createTestRAW16 creates a RAW16 file of res×res samples.
func createTestRAW16(res int, sample func(i int) uint16) []byte {
	buf := new(bytes.Buffer)
	for i := 0; i < res*res; i++ {
		binary.Write(buf, binary.LittleEndian, sample(i))
	}
	return buf.Bytes()
}

func TestParseRAW16_ValidFile(t *testing.T) {
	data := createTestRAW16(4, func(i int) uint16 { return uint16(i * 1000) })

	raw, err := ParseRAW16(data)
	if err != nil {
		t.Fatalf("ParseRAW16 failed: %v", err)
	}
	if raw.Resolution != 4 {
		t.Errorf("expected resolution 4, got %d", raw.Resolution)
	}
	if raw.Samples[5] != 5000 {
		t.Errorf("expected sample 5 = 5000, got %d", raw.Samples[5])
	}
}

func TestParseRAW16_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrTruncatedRAWData},
		{"odd length", []byte{1, 2, 3}, ErrTruncatedRAWData},
		{"not square", make([]byte, 2*3), ErrNotSquare},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRAW16(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRAW16_Quantization(t *testing.T) {
	raw, err := RAW16FromHeights([]float32{0, 1, 0.5, 2, -1, 0.25, 0.75, 1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint16{0, 65535, 32768, 65535, 0, 16384, 49151, 65535, 0}
	for i, w := range want {
		if raw.Samples[i] != w {
			t.Errorf("sample %d = %d, want %d", i, raw.Samples[i], w)
		}
	}

	h := raw.Heights()
	if h[1] != 1 || h[0] != 0 {
		t.Errorf("heights = %v, want endpoints 0 and 1", h)
	}

	if _, err := RAW16FromHeights(make([]float32, 5), 2); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("expected ErrSizeMismatch, got %v", err)
	}
}

func TestRAW16_FileRoundTrip(t *testing.T) {
	raw := &RAW16{Resolution: 2, Samples: []uint16{1, 2, 0xBEEF, 0xFFFF}}
	path := filepath.Join(t.TempDir(), "height.r16")

	if err := WriteRAW16File(path, raw); err != nil {
		t.Fatalf("WriteRAW16File failed: %v", err)
	}
	got, err := ParseRAW16File(path)
	if err != nil {
		t.Fatalf("ParseRAW16File failed: %v", err)
	}
	if got.Resolution != 2 || got.Samples[2] != 0xBEEF {
		t.Errorf("round trip = %+v", got)
	}
}

func TestRAW16_LittleEndian(t *testing.T) {
	raw := &RAW16{Resolution: 1, Samples: []uint16{0x0102}}
	var buf bytes.Buffer
	n, err := raw.WriteTo(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || !bytes.Equal(buf.Bytes(), []byte{0x02, 0x01}) {
		t.Errorf("encoded = %x, want 0201", buf.Bytes())
	}
}

func TestParseRAW16File_Missing(t *testing.T) {
	if _, err := ParseRAW16File(filepath.Join(t.TempDir(), "nope.r16")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSplatRAW(t *testing.T) {
	weights := make([]float32, 2*2*SplatChannels)
	weights[0] = 1     // pixel 0, R
	weights[7] = 0.5   // pixel 1, A
	weights[13] = 0.25 // pixel 3, G

	s, err := SplatFromWeights(weights, 2)
	if err != nil {
		t.Fatal(err)
	}
	if s.Pixels[0] != 255 || s.Pixels[7] != 128 || s.Pixels[13] != 64 {
		t.Errorf("pixels = %v", s.Pixels)
	}

	g := s.Channel(1)
	if len(g) != 4 || g[3] != float32(64)/255 {
		t.Errorf("channel G = %v", g)
	}
	if s.Channel(4) != nil {
		t.Error("expected nil for out-of-range channel")
	}

	path := filepath.Join(t.TempDir(), "splat0.raw")
	if err := WriteSplatRAWFile(path, s); err != nil {
		t.Fatal(err)
	}
	parsed, err := ParseSplatRAW(s.Pixels, 2)
	if err != nil {
		t.Fatal(err)
	}
	if w := parsed.Weights(); w[0] != 1 {
		t.Errorf("weight 0 = %v, want 1", w[0])
	}
}

func TestParseSplatRAW_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		res  int
		want error
	}{
		{"short", make([]byte, 15), 2, ErrTruncatedRAWData},
		{"long", make([]byte, 17), 2, ErrSizeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSplatRAW(tt.data, tt.res); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if _, err := ParseSplatRAW(nil, 0); err == nil {
		t.Error("expected error for zero resolution")
	}
}
