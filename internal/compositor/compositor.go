// Package compositor drives compositing cycles: it orders stamps,
// regenerates dirty masks and recomposes every terrain buffer from every
// stamp.
package compositor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/terrastamp/internal/assets"
	"github.com/Faultbox/terrastamp/internal/layers"
	"github.com/Faultbox/terrastamp/internal/logger"
	"github.com/Faultbox/terrastamp/internal/shape"
	"github.com/Faultbox/terrastamp/internal/stamp"
	"github.com/Faultbox/terrastamp/internal/terrain"
	"github.com/Faultbox/terrastamp/internal/vegetation"
	"github.com/Faultbox/terrastamp/pkg/math"
)

// Errors returned by the compositor.
var (
	ErrClosed         = errors.New("compositor: closed")
	ErrUnknownStamp   = errors.New("compositor: unknown stamp")
	ErrDuplicateStamp = errors.New("compositor: duplicate stamp id")
)

// State is the cycle state.
type State int

// States.
const (
	Idle State = iota
	Generating
)

func (s State) String() string {
	if s == Generating {
		return "generating"
	}
	return "idle"
}

// Options configures a Compositor.
type Options struct {
	// ResyncDelay debounces the post-cycle resync. Zero resyncs
	// immediately after each cycle.
	ResyncDelay time.Duration
	// Parallelism bounds concurrent mask regeneration. Zero uses GOMAXPROCS.
	Parallelism int
	// Sink receives each terrain's vegetation once per cycle.
	Sink vegetation.Sink
	// OnResync runs after the debounced resync fires.
	OnResync func(Stats)
	Log      *zap.Logger
}

// Stats counts compositor activity.
type Stats struct {
	Cycles           int
	MasksGenerated   int
	MaskFailures     int
	DegenerateShapes int
	ModifierFailures int
	Resyncs          int
	LastCycle        time.Duration
}

// Compositor owns the registered stamps, their dirty set and the terrains
// they compose onto.
type Compositor struct {
	env  *shape.Env
	opts Options
	log  *zap.Logger

	mu        sync.Mutex
	stamps    []*stamp.Stamp
	byID      map[string]*stamp.Stamp
	dirty     map[string]bool
	terrains  []terrain.Store
	allocator *layers.Allocator
	state     State
	pending   bool
	stats     Stats
	resync    *time.Timer
	closed    bool
}

// New creates a compositor generating masks with env.
func New(env *shape.Env, opts Options) *Compositor {
	log := opts.Log
	if log == nil {
		log = logger.Named("compositor")
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.GOMAXPROCS(0)
	}
	return &Compositor{
		env:       env,
		opts:      opts,
		log:       log,
		byID:      make(map[string]*stamp.Stamp),
		dirty:     make(map[string]bool),
		allocator: layers.NewAllocator(),
	}
}

// AddTerrain adds a terrain that every cycle composes onto.
func (c *Compositor) AddTerrain(t terrain.Store) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terrains = append(c.terrains, t)
}

// Terrains returns the active terrains.
func (c *Compositor) Terrains() []terrain.Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]terrain.Store(nil), c.terrains...)
}

// Register adds a stamp and marks it dirty.
func (c *Compositor) Register(s *stamp.Stamp) error {
	if err := s.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if _, ok := c.byID[s.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateStamp, s.ID)
	}
	c.stamps = append(c.stamps, s)
	c.byID[s.ID] = s
	c.dirty[s.ID] = true
	return nil
}

// Unregister removes a stamp. It reports whether the stamp was registered.
func (c *Compositor) Unregister(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.byID[id]
	if !ok {
		return false
	}
	delete(c.byID, id)
	delete(c.dirty, id)
	for i, other := range c.stamps {
		if other == s {
			c.stamps = append(c.stamps[:i], c.stamps[i+1:]...)
			break
		}
	}
	return true
}

// MarkDirty schedules a stamp's mask for regeneration on the next cycle.
// A stamp marked during a cycle is picked up by the following one.
func (c *Compositor) MarkDirty(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.byID[id]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStamp, id)
	}
	c.dirty[id] = true
	return nil
}

// MarkAllDirty schedules every stamp's mask for regeneration.
func (c *Compositor) MarkAllDirty() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.byID {
		c.dirty[id] = true
	}
}

// IsDirty reports whether a stamp awaits mask regeneration.
func (c *Compositor) IsDirty(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty[id]
}

// Stamp returns a registered stamp.
func (c *Compositor) Stamp(id string) (*stamp.Stamp, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.byID[id]
	return s, ok
}

// Stamps returns the stamps in registration order.
func (c *Compositor) Stamps() []*stamp.Stamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*stamp.Stamp(nil), c.stamps...)
}

// SortedStamps returns the stamps in compositing order.
func (c *Compositor) SortedStamps() []*stamp.Stamp {
	return stamp.SortByPriority(c.Stamps())
}

// Layers returns the current layer slot array.
func (c *Compositor) Layers() []layers.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.allocator.Slots()
}

// State returns the cycle state.
func (c *Compositor) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns a snapshot of the counters.
func (c *Compositor) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Close stops a pending resync. Later Generate calls fail with ErrClosed.
func (c *Compositor) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.resync != nil {
		c.resync.Stop()
	}
}

// Generate runs a compositing cycle. A call made while a cycle is in
// flight, from any goroutine or from inside the cycle itself, returns nil
// immediately and causes exactly one more cycle once the current one ends,
// even when the current one fails. The first cycle error is returned.
func (c *Compositor) Generate(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == Generating {
		c.pending = true
		c.mu.Unlock()
		return nil
	}
	c.state = Generating
	c.mu.Unlock()

	var firstErr error
	for {
		err := c.cycle(ctx)
		if err != nil && firstErr == nil {
			firstErr = err
		}

		c.mu.Lock()
		if !c.pending || c.closed {
			c.state = Idle
			c.pending = false
			c.mu.Unlock()
			if err == nil {
				c.scheduleResync()
			}
			return firstErr
		}
		c.pending = false
		c.mu.Unlock()

		if err != nil {
			// The pending request belongs to a caller that already got nil;
			// it must not inherit this caller's cancellation.
			ctx = context.WithoutCancel(ctx)
		}
	}
}

// cycle is one full recomposition.
func (c *Compositor) cycle(ctx context.Context) error {
	start := time.Now()

	c.mu.Lock()
	sorted := stamp.SortByPriority(c.stamps)
	dirty := c.dirty
	c.dirty = make(map[string]bool)
	terrains := append([]terrain.Store(nil), c.terrains...)

	var refs []layers.ID
	for _, s := range sorted {
		refs = append(refs, s.Layers()...)
	}
	c.allocator.Allocate(refs)
	c.mu.Unlock()

	c.log.Debug("cycle started",
		zap.Int("stamps", len(sorted)),
		zap.Int("dirty", len(dirty)),
		zap.Int("terrains", len(terrains)))

	regen, err := c.regenerate(ctx, sorted, dirty)
	if err != nil {
		c.restoreDirty(dirty)
		return err
	}

	terrainBounds := make([]math.Bounds, len(terrains))
	for i, t := range terrains {
		terrainBounds[i] = t.Bounds()
	}

	modFailures := 0
	for _, t := range terrains {
		n, err := c.composeTerrain(ctx, t, sorted, terrainBounds)
		modFailures += n
		if err != nil {
			c.restoreDirty(dirty)
			return fmt.Errorf("terrain %q: %w", t.Name(), err)
		}
	}

	c.mu.Lock()
	for id := range regen.failed {
		if _, ok := c.byID[id]; ok {
			c.dirty[id] = true
		}
	}
	c.stats.Cycles++
	c.stats.MasksGenerated += regen.generated
	c.stats.MaskFailures += len(regen.failed)
	c.stats.DegenerateShapes += regen.degenerate
	c.stats.ModifierFailures += modFailures
	c.stats.LastCycle = time.Since(start)
	c.mu.Unlock()

	c.log.Debug("cycle finished",
		zap.Int("masks_generated", regen.generated),
		zap.Int("mask_failures", len(regen.failed)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (c *Compositor) restoreDirty(dirty map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range dirty {
		if _, ok := c.byID[id]; ok {
			c.dirty[id] = true
		}
	}
}

type regenResult struct {
	generated  int
	degenerate int
	failed     map[string]bool
}

// regenerate rebuilds the masks of dirty stamps and of stamps that never
// produced one. All work joins before returning, so compositing always
// starts with every mask in place.
func (c *Compositor) regenerate(ctx context.Context, sorted []*stamp.Stamp, dirty map[string]bool) (regenResult, error) {
	var todo []*stamp.Stamp
	for _, s := range sorted {
		if dirty[s.ID] || s.Shape.Mask() == nil {
			todo = append(todo, s)
		}
	}
	errs := make([]error, len(todo))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Parallelism)
	for i, s := range todo {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			errs[i] = s.Shape.GenerateMask(gctx, c.env)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return regenResult{}, err
	}

	res := regenResult{failed: make(map[string]bool)}
	for i, s := range todo {
		err := errs[i]
		switch {
		case err == nil:
			res.generated++
		case errors.Is(err, shape.ErrDegenerateShape):
			res.degenerate++
			c.log.Debug("degenerate shape, mask unchanged",
				zap.String("stamp", s.ID),
				zap.Stringer("shape", s.Shape.Kind()))
		case errors.Is(err, assets.ErrMissingResource):
			res.failed[s.ID] = true
			c.log.Warn("missing resource, keeping previous mask",
				zap.String("stamp", s.ID),
				zap.Error(err))
		default:
			res.failed[s.ID] = true
			c.log.Warn("mask generation failed",
				zap.String("stamp", s.ID),
				zap.Error(err))
		}
	}
	return res, nil
}

// composeTerrain runs the height, splat and vegetation passes for one
// terrain and copies the result into its store. It returns the number of
// modifiers that failed.
func (c *Compositor) composeTerrain(ctx context.Context, t terrain.Store, sorted []*stamp.Stamp, terrainBounds []math.Bounds) (int, error) {
	c.mu.Lock()
	wc := stamp.NewContext(t, layers.NewAllocator(c.allocator.Slots()...), c.env.Device, c.log)
	c.mu.Unlock()
	defer wc.Release()

	tb := t.Bounds()
	var targets []stamp.Target
	for _, s := range sorted {
		m := s.Shape.Mask()
		if m == nil {
			continue
		}
		world := s.WorldBounds(terrainBounds)
		placement := s.Placement(world, tb)
		if !placement.Quad().OverlapsTerrain() {
			continue
		}
		targets = append(targets, stamp.Target{
			Stamp:     s,
			World:     world,
			Mask:      m,
			Placement: placement,
		})
	}

	for _, tg := range targets {
		for _, p := range tg.Stamp.Prototypes() {
			wc.Vegetation.Register(p)
		}
	}

	failures := 0
	for _, pass := range []stamp.Pass{stamp.PassHeight, stamp.PassSplat, stamp.PassVegetation} {
		for _, tg := range targets {
			wc.Transform = tg.Stamp.Transform
			for _, m := range tg.Stamp.ModifiersFor(pass) {
				if err := m.Apply(ctx, wc, tg); err != nil {
					if ctx.Err() != nil {
						return failures, ctx.Err()
					}
					failures++
					c.log.Warn("modifier failed",
						zap.String("stamp", tg.Stamp.ID),
						zap.Stringer("pass", pass),
						zap.Error(err))
				}
			}
		}
	}

	if c.opts.Sink != nil {
		if err := c.opts.Sink.Flush(wc.Vegetation); err != nil {
			c.log.Warn("vegetation flush failed", zap.String("terrain", t.Name()), zap.Error(err))
		}
	}
	return failures, wc.Commit()
}

// scheduleResync coalesces resync requests into one delayed callback.
func (c *Compositor) scheduleResync() {
	c.mu.Lock()
	delay := c.opts.ResyncDelay
	if delay <= 0 {
		c.mu.Unlock()
		c.fireResync()
		return
	}
	if c.resync == nil {
		c.resync = time.AfterFunc(delay, c.fireResync)
	} else {
		c.resync.Reset(delay)
	}
	c.mu.Unlock()
}

func (c *Compositor) fireResync() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.stats.Resyncs++
	stats := c.stats
	hook := c.opts.OnResync
	c.mu.Unlock()

	c.log.Debug("resync", zap.Int("cycles", stats.Cycles))
	if hook != nil {
		hook(stats)
	}
}
