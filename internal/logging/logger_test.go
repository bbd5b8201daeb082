package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]log.Level{
		"debug": log.DebugLevel,
		"warn":  log.WarnLevel,
		"error": log.ErrorLevel,
		"info":  log.InfoLevel,
		"":      log.InfoLevel,
		"loud":  log.InfoLevel,
	}
	for name, want := range tests {
		if got := ParseLevel(name); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestOptionsFromEnv(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want Options
		file bool
	}{
		{"defaults", nil, Options{Level: log.InfoLevel, Prefix: DefaultPrefix}, false},
		{
			"level and prefix",
			map[string]string{"TOPPER_LOG_LEVEL": "warn", "TOPPER_LOG_PREFIX": "gadgets"},
			Options{Level: log.WarnLevel, Prefix: "gadgets"},
			false,
		},
		{"timestamped file", map[string]string{"TOPPER_LOG_TO_FILE": "1"}, Options{Level: log.InfoLevel, Prefix: DefaultPrefix}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"TOPPER_LOG_LEVEL", "TOPPER_LOG_PREFIX", "TOPPER_LOG_TO_FILE"} {
				t.Setenv(k, tt.env[k])
			}
			got := OptionsFromEnv()
			if tt.file != strings.HasPrefix(got.File, "topper-") {
				t.Errorf("File = %q", got.File)
			}
			got.File = ""
			if got != tt.want {
				t.Errorf("OptionsFromEnv() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	lg := New(&buf, Options{Level: log.WarnLevel, Prefix: "gadgets"})
	lg.Info("hidden")
	lg.Warn("shown", "anchor", 4)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info logged at warn level: %q", out)
	}
	for _, want := range []string{"gadgets", "shown", "anchor=4"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q: %q", want, out)
		}
	}
	if err := lg.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topper.log")
	opts := Options{Level: log.InfoLevel, Prefix: DefaultPrefix, File: path}.WithDebug()
	if opts.Level != log.DebugLevel || !opts.Caller {
		t.Fatalf("WithDebug() = %+v", opts)
	}
	lg, err := opts.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	lg.Debug("Sweeping anchor", "anchor", 8)
	if err := lg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	bts, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(bts), "Sweeping anchor") {
		t.Errorf("log file lacks debug record: %q", bts)
	}

	bad := Options{File: filepath.Join(t.TempDir(), "missing", "topper.log")}
	if _, err := bad.Open(); err == nil {
		t.Error("Open succeeded in a missing directory")
	}
}
