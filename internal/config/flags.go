package config

import "flag"

// Flags is the flag set shared by every subcommand.
var Flags = flag.NewFlagSet("terrastamp", flag.ContinueOnError)

var (
	flagConfig    = Flags.String("config", "", "Path to config file")
	flagDebug     = Flags.Bool("debug", false, "Enable debug logging")
	flagOut       = Flags.String("out", "", "Output directory")
	flagNoPreview = Flags.Bool("no-preview", false, "Skip PNG previews")
	flagMaxRes    = Flags.Int("max-res", 0, "Maximum mask resolution")
	flagNoJFA     = Flags.Bool("no-jfa", false, "Use the single-pass distance field for regions")
	flagWorkers   = Flags.Int("workers", 0, "Compute worker count")
	flagLogFile   = Flags.String("log-file", "", "Write JSON logs to this file")
)

// ParseFlags parses subcommand arguments. Call this early in main().
func ParseFlags(args []string) error {
	return Flags.Parse(args)
}

// Args returns the positional arguments left after flag parsing.
func Args() []string {
	return Flags.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagOut != "" {
		cfg.Output.Dir = *flagOut
	}
	if *flagNoPreview {
		cfg.Output.Preview = false
	}
	if *flagMaxRes > 0 {
		cfg.Masks.MaxResolution = *flagMaxRes
	}
	if *flagNoJFA {
		cfg.Masks.JumpFlood = false
	}
	if *flagWorkers > 0 {
		cfg.Compositor.Workers = *flagWorkers
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
}
