package log

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topper.log")
	if err := Setup(path, true); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if !Initialized() {
		t.Fatal("not initialized")
	}
	slog.Debug("Sweeping anchor", "anchor", 8)

	// a second Setup is a no-op
	if err := Setup("", false); err != nil {
		t.Fatalf("second Setup: %v", err)
	}
	if err := Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	bts, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(bts), "Sweeping anchor") {
		t.Errorf("log file lacks debug record: %q", bts)
	}
}

func TestRecoverPanic(t *testing.T) {
	called := false
	func() {
		defer RecoverPanic("test", func() { called = true })
		panic("boom")
	}()
	if !called {
		t.Error("cleanup not called")
	}
}
