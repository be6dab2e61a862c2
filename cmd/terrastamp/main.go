// terrastamp composites stamp-based terrain scenes into heightmaps, splat
// maps and vegetation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/terrastamp/internal/config"
	"github.com/Faultbox/terrastamp/internal/logger"
	"github.com/Faultbox/terrastamp/internal/pipeline"
	"github.com/Faultbox/terrastamp/internal/scene"
	"github.com/Faultbox/terrastamp/internal/stamp"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "generate", "gen":
		err = run(args, cmdGenerate)
	case "masks":
		err = run(args, cmdMasks)
	case "info":
		err = run(args, cmdInfo)
	case "config":
		err = cmdConfig(args)
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`terrastamp - stamp-based terrain compositor

Usage:
  terrastamp <command> [options] <scene.yaml>

Commands:
  generate <scene.yaml>   Composite the scene and export buffers and previews
  masks <scene.yaml>      Generate stamp masks and export them as PNG
  info <scene.yaml>       Show terrains, stamps and layer slots
  config [path]           Write the effective config (default: user config dir)

Options:
  -config <file>    Config file (default ./config.yaml or user config dir)
  -out <dir>        Output directory
  -max-res <n>      Maximum mask resolution
  -workers <n>      Compute worker count
  -no-jfa           Use the single-pass region distance field
  -no-preview       Skip PNG previews
  -debug            Enable debug logging
  -log-file <file>  Also write JSON logs to a rotating file

Examples:
  terrastamp generate scenes/valley.yaml
  terrastamp generate -out build -max-res 512 scenes/valley.yaml
  terrastamp masks -debug scenes/valley.yaml`)
}

type command func(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline) error

// run parses flags, loads config and scene, initializes logging and hands
// a ready pipeline to cmd.
func run(args []string, cmd command) error {
	if err := config.ParseFlags(args); err != nil {
		return err
	}
	if len(config.Args()) < 1 {
		return errors.New("missing scene file")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()
	logger.Sugar.Debugf("Config: %+v", cfg)

	sc, err := scene.Load(config.Args()[0])
	if err != nil {
		return err
	}
	p, err := pipeline.New(cfg, sc)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return cmd(ctx, cfg, p)
}

// cmdConfig writes the merged defaults, file and flags so they can be
// edited.
func cmdConfig(args []string) error {
	if err := config.ParseFlags(args); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	var path string
	if rest := config.Args(); len(rest) > 0 {
		path = rest[0]
		err = cfg.SaveTo(path)
	} else {
		path, err = cfg.Save()
	}
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func cmdGenerate(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline) error {
	if err := p.Run(ctx); err != nil {
		return err
	}
	written, err := p.Export(cfg.Output.Dir)
	for _, path := range written {
		fmt.Println(path)
	}
	if err != nil {
		return err
	}

	st := p.Summary().Stats
	if st.MaskFailures > 0 || st.ModifierFailures > 0 {
		logger.Warn("generated with failures",
			zap.Int("mask_failures", st.MaskFailures),
			zap.Int("modifier_failures", st.ModifierFailures))
	}
	return nil
}

func cmdMasks(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline) error {
	if err := p.Run(ctx); err != nil {
		return err
	}
	written, err := p.ExportMasks(cfg.Output.Dir)
	for _, path := range written {
		fmt.Println(path)
	}
	return err
}

func cmdInfo(_ context.Context, _ *config.Config, p *pipeline.Pipeline) error {
	comp := p.Compositor()

	fmt.Println("Terrains:")
	for _, t := range comp.Terrains() {
		b := t.Bounds()
		fmt.Printf("  %-16s origin %v size %v  height %d  splat %d\n",
			t.Name(), b.Min(), b.Size, t.HeightResolution(), t.SplatResolution())
	}

	fmt.Println()
	fmt.Println("Stamps (processing order):")
	for _, s := range comp.SortedStamps() {
		fmt.Printf("  %4d  %-16s %-10s %s\n", s.Priority, s.ID, s.Shape.Kind(), modifierList(s))
	}

	var refs []string
	for _, s := range comp.SortedStamps() {
		for _, l := range s.Layers() {
			refs = append(refs, string(l))
		}
	}
	fmt.Println()
	fmt.Printf("Layers referenced: %s\n", strings.Join(dedupe(refs), ", "))
	return nil
}

func modifierList(s *stamp.Stamp) string {
	var names []string
	for _, m := range s.Modifiers {
		name := m.Pass().String()
		if !m.Enabled() {
			name += " (off)"
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
