// Package assets tracks the compute programs and textures mask generation
// depends on, plus a cache of generated masks.
package assets

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Faultbox/terrastamp/internal/mask"
	"github.com/Faultbox/terrastamp/pkg/math"
)

// ErrMissingResource is returned when a program or texture is not registered.
var ErrMissingResource = errors.New("missing resource")

// Program names used by the shape generators.
const (
	ProgramRibbonRaster = "ribbon_raster"
	ProgramBlur         = "blur"
	ProgramJFASeed      = "jfa_seed"
	ProgramJFAStep      = "jfa_step"
	ProgramJFAResolve   = "jfa_resolve"
	ProgramDistanceSeed = "distance_seed"
	ProgramNormalize    = "distance_normalize"
)

// TextureRadialGradient is the shared falloff texture for analytic shapes.
const TextureRadialGradient = "radial_gradient"

// Manager is the registry of programs and textures.
type Manager struct {
	programs map[string]struct{}
	textures map[string]*mask.Mask
	cache    *Cache
	mu       sync.RWMutex
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		programs: make(map[string]struct{}),
		textures: make(map[string]*mask.Mask),
		cache:    NewCache(),
	}
}

// NewDefaultManager registers every built-in program and a radial gradient
// of the given resolution.
func NewDefaultManager(gradientResolution int) *Manager {
	m := NewManager()
	for _, name := range []string{
		ProgramRibbonRaster,
		ProgramBlur,
		ProgramJFASeed,
		ProgramJFAStep,
		ProgramJFAResolve,
		ProgramDistanceSeed,
		ProgramNormalize,
	} {
		m.RegisterProgram(name)
	}
	m.SetTexture(TextureRadialGradient, mask.NewRadialGradient(gradientResolution))
	return m
}

// RegisterProgram makes a program available.
func (m *Manager) RegisterProgram(name string) {
	m.mu.Lock()
	m.programs[name] = struct{}{}
	m.mu.Unlock()
}

// RemoveProgram makes a program unavailable.
func (m *Manager) RemoveProgram(name string) {
	m.mu.Lock()
	delete(m.programs, name)
	m.mu.Unlock()
}

// RequirePrograms returns ErrMissingResource naming the first absent program.
func (m *Manager) RequirePrograms(names ...string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, name := range names {
		if _, ok := m.programs[name]; !ok {
			return fmt.Errorf("%w: program %q", ErrMissingResource, name)
		}
	}
	return nil
}

// HasProgram reports whether a program is registered.
func (m *Manager) HasProgram(name string) bool {
	return m.RequirePrograms(name) == nil
}

// SetTexture registers a texture. A nil texture removes it.
func (m *Manager) SetTexture(name string, tex *mask.Mask) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tex == nil {
		delete(m.textures, name)
		return
	}
	m.textures[name] = tex
}

// Texture returns a registered texture. Textures are shared and must be
// treated as read-only.
func (m *Manager) Texture(name string) (*mask.Mask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tex, ok := m.textures[name]
	if !ok {
		return nil, fmt.Errorf("%w: texture %q", ErrMissingResource, name)
	}
	return tex, nil
}

// Cache returns the generated-mask cache.
func (m *Manager) Cache() *Cache {
	return m.cache
}

// Entry is a cached mask together with the exact bounds it was rasterized for.
type Entry struct {
	Mask   *mask.Mask
	Bounds math.Bounds
}

// Cache is an in-memory cache of generated masks keyed by shape fingerprint.
type Cache struct {
	data map[string]Entry
	mu   sync.RWMutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string]Entry),
	}
}

// Get retrieves an entry.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return e, ok
}

// Set stores an entry.
func (c *Cache) Set(key string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = e
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]Entry)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
