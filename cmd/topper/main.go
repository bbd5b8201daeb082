package main

import (
	"log/slog"
	"net/http"
	"os"
	"strings"

	_ "net/http/pprof" // profiling

	"topper/internal/topper/cmd"
	"topper/internal/topper/log"
)

// profileAddr returns the pprof listen address selected by TOPPER_PROFILE:
// the value itself when it looks like host:port, localhost:6060 otherwise.
func profileAddr() (string, bool) {
	v := os.Getenv("TOPPER_PROFILE")
	switch {
	case v == "":
		return "", false
	case strings.Contains(v, ":"):
		return v, true
	default:
		return "localhost:6060", true
	}
}

func main() {
	defer log.RecoverPanic("main", func() {
		slog.Error("Search aborted by an unhandled panic")
	})

	if addr, ok := profileAddr(); ok {
		go func() {
			slog.Info("Serving pprof", "addr", addr)
			if err := http.ListenAndServe(addr, nil); err != nil {
				slog.Error("pprof listener stopped", "addr", addr, "error", err)
			}
		}()
	}

	cmd.Execute()
}
