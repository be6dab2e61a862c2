package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func fileOnly(t *testing.T, lvl, path string) {
	t.Helper()
	cfg := FileConfig{Path: path, MaxSizeMB: 1, MaxBackups: 2, MaxAgeDays: 1}
	if err := InitWithFileConfig(lvl, cfg, false); err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	t.Cleanup(func() {
		Sync()
		_ = InitWithFileConfig("info", FileConfig{}, false)
	})
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	Sync()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	return string(content)
}

func TestFileRotation(t *testing.T) {
	dir := t.TempDir()
	fileOnly(t, "debug", filepath.Join(dir, "terrastamp.log"))

	// Roughly 3MB of entries against a 1MB limit.
	stampID := strings.Repeat("s", 180)
	for i := range 12000 {
		Sugar.Infow("mask generated", "stamp", stampID, "cycle", i)
	}
	Sync()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var backups []string
	for _, e := range entries {
		if e.Name() != "terrastamp.log" && strings.HasPrefix(e.Name(), "terrastamp-") {
			backups = append(backups, e.Name())
		}
	}
	if len(backups) == 0 {
		t.Fatalf("no rotated backups in %v", entries)
	}
}

func TestLevelFiltering(t *testing.T) {
	all := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	tests := []struct {
		level string
		first int // index into all of the lowest level written
	}{
		{"debug", 0},
		{"info", 1},
		{"warn", 2},
		{"error", 3},
		{"bogus", 1},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "level.log")
			fileOnly(t, tt.level, path)

			Debug("pass")
			Info("pass")
			Warn("pass")
			Error("pass")

			out := readLog(t, path)
			for i, name := range all {
				has := strings.Contains(out, `"level":"`+name+`"`)
				if want := i >= tt.first; has != want {
					t.Errorf("%s present = %v, want %v", name, has, want)
				}
			}
		})
	}
}

func TestSetLevelAppliesToExistingLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "set.log")
	fileOnly(t, "warn", path)

	Info("before")
	SetLevel("debug")
	if Level() != zapcore.DebugLevel {
		t.Fatalf("level = %v, want debug", Level())
	}
	Debug("after")

	out := readLog(t, path)
	if strings.Contains(out, "before") {
		t.Error("info entry written while level was warn")
	}
	if !strings.Contains(out, "after") {
		t.Error("debug entry missing after SetLevel")
	}
}

func TestNamedComponent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "named.log")
	fileOnly(t, "info", path)

	Named("compositor").Info("cycle finished")

	if out := readLog(t, path); !strings.Contains(out, `"component":"compositor"`) {
		t.Errorf("expected component field in %q", out)
	}
}

func TestDefaultFileConfig(t *testing.T) {
	want := FileConfig{Path: "logs/t.log", MaxSizeMB: 20, MaxBackups: 5, MaxAgeDays: 14, Compress: true}
	if got := DefaultFileConfig("logs/t.log"); got != want {
		t.Errorf("DefaultFileConfig = %+v, want %+v", got, want)
	}
}

func TestNoOutputsFallsBackToNop(t *testing.T) {
	if err := InitWithFileConfig("info", FileConfig{}, false); err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	Info("discarded")
	Named("x").Debug("discarded")
}
