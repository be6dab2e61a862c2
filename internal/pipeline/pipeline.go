// Package pipeline wires a loaded scene to a compositor and exports the
// composed terrains.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/terrastamp/internal/assets"
	"github.com/Faultbox/terrastamp/internal/compositor"
	"github.com/Faultbox/terrastamp/internal/compute"
	"github.com/Faultbox/terrastamp/internal/config"
	"github.com/Faultbox/terrastamp/internal/layers"
	"github.com/Faultbox/terrastamp/internal/logger"
	"github.com/Faultbox/terrastamp/internal/preview"
	"github.com/Faultbox/terrastamp/internal/scene"
	"github.com/Faultbox/terrastamp/internal/shape"
	"github.com/Faultbox/terrastamp/internal/terrain"
	"github.com/Faultbox/terrastamp/internal/vegetation"
	"github.com/Faultbox/terrastamp/pkg/formats"
	"github.com/Faultbox/terrastamp/pkg/math"
)

// Pipeline is one scene bound to a compositor.
type Pipeline struct {
	cfg   *config.Config
	scene *scene.Scene
	env   *shape.Env
	comp  *compositor.Compositor
	sink  *vegetation.Store
	log   *zap.Logger
}

// New builds the compositor for sc and registers its terrains and stamps.
func New(cfg *config.Config, sc *scene.Scene) (*Pipeline, error) {
	log := logger.Named("pipeline")

	env := shape.NewEnv(assets.NewDefaultManager(cfg.Masks.GradientResolution))
	env.Settings = cfg.Masks.Settings()
	env.Device = compute.NewCPU(cfg.Compositor.Workers)

	p := &Pipeline{
		cfg:   cfg,
		scene: sc,
		env:   env,
		sink:  vegetation.NewStore(),
		log:   log,
	}
	p.comp = compositor.New(env, compositor.Options{
		ResyncDelay: cfg.Compositor.ResyncDelay,
		Parallelism: cfg.Compositor.Parallelism,
		Sink:        p.sink,
		OnResync: func(s compositor.Stats) {
			log.Debug("terrains resynced", zap.Int("cycles", s.Cycles))
		},
		Log: logger.Named("compositor"),
	})

	for _, t := range sc.Terrains {
		p.comp.AddTerrain(t)
	}
	for _, s := range sc.Stamps {
		if err := p.comp.Register(s); err != nil {
			p.comp.Close()
			return nil, fmt.Errorf("registering stamp %q: %w", s.ID, err)
		}
	}

	log.Info("pipeline ready",
		zap.Int("terrains", len(sc.Terrains)),
		zap.Int("stamps", len(sc.Stamps)))
	return p, nil
}

// Run performs one compositing cycle.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.comp.Generate(ctx); err != nil {
		return err
	}
	st := p.comp.Stats()
	p.log.Info("cycle complete",
		zap.Int("masks", st.MasksGenerated),
		zap.Int("mask_failures", st.MaskFailures),
		zap.Int("degenerate", st.DegenerateShapes),
		zap.Int("modifier_failures", st.ModifierFailures),
		zap.Duration("elapsed", st.LastCycle))
	return nil
}

// Compositor exposes the underlying compositor.
func (p *Pipeline) Compositor() *compositor.Compositor {
	return p.comp
}

// Close stops pending resyncs.
func (p *Pipeline) Close() {
	p.comp.Close()
}

// Summary describes the pipeline state after a run.
type Summary struct {
	Terrains []string
	Stamps   int
	Layers   []layers.ID
	Stats    compositor.Stats
}

// Summary returns the current state.
func (p *Pipeline) Summary() Summary {
	s := Summary{
		Stamps: len(p.comp.Stamps()),
		Layers: p.comp.Layers(),
		Stats:  p.comp.Stats(),
	}
	for _, t := range p.scene.Terrains {
		s.Terrains = append(s.Terrains, t.Name())
	}
	return s
}

// Export writes every terrain's heightmap, splat buffers and vegetation
// to dir, plus PNG previews when enabled. It returns the written paths.
func (p *Pipeline) Export(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	bounds := p.terrainBounds()

	var written []string
	for _, t := range p.scene.Terrains {
		paths, err := p.exportTerrain(dir, t, bounds)
		written = append(written, paths...)
		if err != nil {
			return written, fmt.Errorf("terrain %q: %w", t.Name(), err)
		}
	}
	return written, nil
}

func (p *Pipeline) exportTerrain(dir string, t *terrain.Terrain, bounds []math.Bounds) ([]string, error) {
	var written []string
	name := t.Name()

	raw, err := formats.RAW16FromHeights(t.Heights(), t.HeightResolution())
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, name+".r16")
	if err := formats.WriteRAW16File(path, raw); err != nil {
		return nil, err
	}
	written = append(written, path)

	splats := make([][]float32, t.SplatCount())
	for i := range splats {
		splats[i] = t.Splat(i)
		s, err := formats.SplatFromWeights(splats[i], t.SplatResolution())
		if err != nil {
			return written, err
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_splat%d.raw", name, i))
		if err := formats.WriteSplatRAWFile(path, s); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if b, ok := p.sink.Latest(name); ok {
		path := filepath.Join(dir, name+"_vegetation.yaml")
		if err := writeVegetation(path, t, b); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if !p.cfg.Output.Preview {
		return written, nil
	}
	var outlines []preview.Outline
	for _, s := range p.comp.SortedStamps() {
		if o, ok := preview.StampOutline(s, bounds, t.Bounds()); ok {
			outlines = append(outlines, o)
		}
	}
	scale := p.cfg.Output.PreviewScale

	himg, err := preview.HeightImage(t.Heights(), t.HeightResolution())
	if err != nil {
		return written, err
	}
	path = filepath.Join(dir, name+"_height.png")
	if err := preview.SavePNG(path, himg, scale, outlines); err != nil {
		return written, err
	}
	written = append(written, path)

	if len(splats) > 0 {
		simg, err := preview.SplatImage(splats, t.SplatResolution())
		if err != nil {
			return written, err
		}
		path = filepath.Join(dir, name+"_splat.png")
		if err := preview.SavePNG(path, simg, scale, outlines); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// ExportMasks writes each stamp's current mask as a grayscale PNG.
// Stamps without a mask are skipped.
func (p *Pipeline) ExportMasks(dir string) ([]string, error) {
	var written []string
	for _, s := range p.comp.SortedStamps() {
		img, err := preview.MaskImage(s.Shape.Mask())
		if err != nil {
			p.log.Debug("no mask to export", zap.String("stamp", s.ID))
			continue
		}
		path := filepath.Join(dir, "mask_"+s.ID+".png")
		if err := preview.SavePNG(path, img, 1, nil); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func (p *Pipeline) terrainBounds() []math.Bounds {
	out := make([]math.Bounds, len(p.scene.Terrains))
	for i, t := range p.scene.Terrains {
		out[i] = t.Bounds()
	}
	return out
}

type vegetationDoc struct {
	Terrain    string      `yaml:"terrain"`
	Prototypes []string    `yaml:"prototypes"`
	Trees      []treeDoc   `yaml:"trees"`
	Details    []detailDoc `yaml:"details"`
}

type treeDoc struct {
	Prototype string     `yaml:"prototype"`
	Position  [3]float32 `yaml:"position,flow"`
	Scale     float32    `yaml:"scale"`
}

type detailDoc struct {
	Prototype  string  `yaml:"prototype"`
	Resolution int     `yaml:"resolution"`
	Coverage   float32 `yaml:"coverage"`
}

// writeVegetation converts terrain-relative instance positions to world
// space and writes them as YAML.
func writeVegetation(path string, t *terrain.Terrain, b *vegetation.Batch) error {
	origin, size := t.Bounds().Min(), t.Bounds().Size
	doc := vegetationDoc{Terrain: t.Name()}
	for _, p := range b.Prototypes() {
		doc.Prototypes = append(doc.Prototypes, p.ID)
	}
	for _, tr := range b.Trees() {
		doc.Trees = append(doc.Trees, treeDoc{
			Prototype: tr.Prototype,
			Position: [3]float32{
				origin.X + tr.Position.X*size.X,
				origin.Y + tr.Position.Y*size.Y,
				origin.Z + tr.Position.Z*size.Z,
			},
			Scale: tr.Scale,
		})
	}
	for _, d := range b.Details() {
		var sum float32
		for _, v := range d.Density {
			sum += v
		}
		doc.Details = append(doc.Details, detailDoc{
			Prototype:  d.Prototype,
			Resolution: d.Resolution,
			Coverage:   sum / float32(max(len(d.Density), 1)),
		})
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
