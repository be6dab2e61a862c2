package assets

import (
	"errors"
	"testing"

	"github.com/Faultbox/terrastamp/internal/mask"
)

func TestNewDefaultManager(t *testing.T) {
	m := NewDefaultManager(32)

	if err := m.RequirePrograms(ProgramBlur, ProgramJFASeed, ProgramJFAStep, ProgramJFAResolve); err != nil {
		t.Errorf("expected default programs, got %v", err)
	}
	tex, err := m.Texture(TextureRadialGradient)
	if err != nil {
		t.Fatalf("expected radial gradient, got %v", err)
	}
	if tex.Width != 32 || tex.Height != 32 {
		t.Errorf("gradient size = %dx%d, want 32x32", tex.Width, tex.Height)
	}
}

func TestRequirePrograms_Missing(t *testing.T) {
	m := NewDefaultManager(8)
	m.RemoveProgram(ProgramBlur)

	err := m.RequirePrograms(ProgramJFASeed, ProgramBlur)
	if !errors.Is(err, ErrMissingResource) {
		t.Errorf("expected ErrMissingResource, got %v", err)
	}
	if m.HasProgram(ProgramBlur) {
		t.Error("blur should be unavailable")
	}
}

func TestTexture_Missing(t *testing.T) {
	m := NewManager()
	if _, err := m.Texture(TextureRadialGradient); !errors.Is(err, ErrMissingResource) {
		t.Errorf("expected ErrMissingResource, got %v", err)
	}

	m.SetTexture("t", mask.New(1, 1))
	m.SetTexture("t", nil)
	if _, err := m.Texture("t"); !errors.Is(err, ErrMissingResource) {
		t.Errorf("expected removed texture to be missing, got %v", err)
	}
}

func TestCacheStats(t *testing.T) {
	c := NewCache()
	c.Set("a", Entry{Mask: mask.New(1, 1)})

	if _, ok := c.Get("a"); !ok {
		t.Error("expected hit for a")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("expected miss for b")
	}
	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("stats = (%d, %d), want (1, 1)", hits, misses)
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", c.Len())
	}
}
