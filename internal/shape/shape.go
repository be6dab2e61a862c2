// Package shape turns stamp geometry into influence masks.
//
// Every shape records the local bounding box it rasterized against; that
// box is the UV domain of its mask and is never recomputed elsewhere. A
// failed generation leaves the previous mask and bounds in place.
package shape

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/fnv"
	stdmath "math"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/terrastamp/internal/assets"
	"github.com/Faultbox/terrastamp/internal/compute"
	"github.com/Faultbox/terrastamp/internal/logger"
	"github.com/Faultbox/terrastamp/internal/mask"
	"github.com/Faultbox/terrastamp/internal/spline"
	"github.com/Faultbox/terrastamp/pkg/math"
)

// ErrDegenerateShape is returned when the geometry cannot produce a mask.
// Generation is a no-op in that case.
var ErrDegenerateShape = errors.New("shape: degenerate geometry")

// Kind identifies a shape variant.
type Kind int

// Shape kinds.
const (
	KindCircle Kind = iota
	KindRectangle
	KindGlobal
	KindRibbon
	KindRegion
)

var kindNames = map[Kind]string{
	KindCircle:    "circle",
	KindRectangle: "rectangle",
	KindGlobal:    "global",
	KindRibbon:    "ribbon",
	KindRegion:    "region",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind parses a shape kind name.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown shape kind %q", s)
}

// Shape is the capability set every stamp geometry provides.
type Shape interface {
	Kind() Kind
	// GenerateMask rebuilds the mask and local bounds.
	GenerateMask(ctx context.Context, env *Env) error
	// Mask returns the last generated mask, or nil before the first
	// successful generation.
	Mask() *mask.Mask
	// LocalBounds returns the box recorded by the last generation.
	LocalBounds() math.Bounds
	// WorldBounds places the local bounds with the stamp transform.
	// terrains lists the bounds of every active terrain.
	WorldBounds(t math.Transform, terrains []math.Bounds) math.Bounds
	// Oriented reports whether the stamp rotation applies when drawing.
	Oriented() bool
}

// Settings tunes mask resolution and smoothing.
type Settings struct {
	MinResolution          int
	MaxResolution          int
	PixelsPerUnit          float32
	BlurRadius             float32
	SegmentLength          float32
	BoundarySamplesPerUnit float32
	JumpFlood              bool
}

// DefaultSettings returns the settings used when no config is loaded.
func DefaultSettings() Settings {
	return Settings{
		MinResolution:          64,
		MaxResolution:          1024,
		PixelsPerUnit:          2,
		BlurRadius:             1.5,
		SegmentLength:          4,
		BoundarySamplesPerUnit: 2,
		JumpFlood:              true,
	}
}

// Resolution returns the power-of-two mask size for a world extent.
func (s Settings) Resolution(extent float32) int {
	res := math.NextPowerOfTwo(int(extent * s.PixelsPerUnit))
	return min(max(res, s.MinResolution), max(s.MaxResolution, s.MinResolution))
}

// Env carries what mask generation needs from the outside world.
type Env struct {
	Assets   *assets.Manager
	Device   compute.Device
	Settings Settings
	Log      *zap.Logger
}

// NewEnv returns an Env with a CPU device and default settings.
func NewEnv(a *assets.Manager) *Env {
	return &Env{
		Assets:   a,
		Device:   compute.NewCPU(0),
		Settings: DefaultSettings(),
		Log:      logger.Named("shape"),
	}
}

func (e *Env) log() *zap.Logger {
	if e.Log == nil {
		return logger.Named("shape")
	}
	return e.Log
}

// blur runs ping-ponged separable passes strictly in order, joining each
// dispatch before the next starts. On any failure it returns the input
// untouched together with the error.
func (e *Env) blur(ctx context.Context, m *mask.Mask, passes int) (*mask.Mask, error) {
	radius := e.Settings.BlurRadius
	if passes <= 0 || radius <= 0 || m.Empty() {
		return m, nil
	}
	if err := e.Assets.RequirePrograms(assets.ProgramBlur); err != nil {
		return m, err
	}

	ping := m.Clone()
	pong := mask.New(m.Width, m.Height)
	for i := 0; i < passes; i++ {
		_, err := e.Device.Dispatch(ctx, assets.ProgramBlur, m.Height, func(y0, y1 int) error {
			mask.BlurRows(ping, pong, radius, y0, y1)
			return nil
		}).Wait()
		if err != nil {
			return m, fmt.Errorf("blur pass %d rows: %w", i, err)
		}
		_, err = e.Device.Dispatch(ctx, assets.ProgramBlur, m.Height, func(y0, y1 int) error {
			mask.BlurColumns(pong, ping, radius, y0, y1)
			return nil
		}).Wait()
		if err != nil {
			return m, fmt.Errorf("blur pass %d columns: %w", i, err)
		}
	}
	return ping, nil
}

// blurOrKeep blurs m, logging and keeping the unblurred raster on failure.
func (e *Env) blurOrKeep(ctx context.Context, kind Kind, m *mask.Mask, passes int) *mask.Mask {
	out, err := e.blur(ctx, m, passes)
	if err != nil {
		e.log().Warn("blur unavailable, keeping unblurred mask",
			zap.Stringer("shape", kind),
			zap.Error(err))
	}
	return out
}

// state holds the generated mask and the bounds it was rasterized against.
type state struct {
	mask   *mask.Mask
	bounds math.Bounds
}

func (s *state) Mask() *mask.Mask         { return s.mask }
func (s *state) LocalBounds() math.Bounds { return s.bounds }
func (s *state) Oriented() bool           { return true }

func (s *state) WorldBounds(t math.Transform, _ []math.Bounds) math.Bounds {
	return t.ApplyBounds(s.bounds)
}

func (s *state) commit(m *mask.Mask, b math.Bounds) {
	s.mask = m
	s.bounds = b
}

// fingerprint hashes shape parameters into a mask cache key. Only plain
// numeric values are written, so the key depends on values and never on
// addresses.
type fingerprint struct {
	kind Kind
	h    hash.Hash64
	buf  [8]byte
}

func newFingerprint(kind Kind) *fingerprint {
	return &fingerprint{kind: kind, h: fnv.New64a()}
}

func (f *fingerprint) floats(vs ...float32) *fingerprint {
	for _, v := range vs {
		binary.LittleEndian.PutUint32(f.buf[:4], stdmath.Float32bits(v))
		f.h.Write(f.buf[:4])
	}
	return f
}

func (f *fingerprint) number(v int) *fingerprint {
	binary.LittleEndian.PutUint64(f.buf[:], uint64(v))
	f.h.Write(f.buf[:])
	return f
}

func (f *fingerprint) flag(v bool) *fingerprint {
	if v {
		return f.number(1)
	}
	return f.number(0)
}

// knots writes the count first so differently split lists never collide.
func (f *fingerprint) knots(ks []math.Vec3) *fingerprint {
	f.number(len(ks))
	for _, k := range ks {
		f.floats(k.X, k.Y, k.Z)
	}
	return f
}

func (f *fingerprint) keyframes(ks spline.Keyframes) *fingerprint {
	f.number(len(ks))
	for _, k := range ks {
		f.floats(k.T, k.Value)
	}
	return f
}

func (f *fingerprint) settings(s Settings) *fingerprint {
	return f.number(s.MinResolution).number(s.MaxResolution).
		floats(s.PixelsPerUnit, s.BlurRadius, s.SegmentLength, s.BoundarySamplesPerUnit).
		flag(s.JumpFlood)
}

func (f *fingerprint) key() string {
	return fmt.Sprintf("%s:%016x", f.kind, f.h.Sum64())
}
