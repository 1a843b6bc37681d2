// Package version exposes build metadata for the foodvoice binary.
package version

import (
	"fmt"
	"runtime"
)

// Set via ldflags at build time:
//
//	go build -ldflags "-X github.com/soyeahso/foodvoice/internal/version.Version=0.3.0
//	  -X github.com/soyeahso/foodvoice/internal/version.Commit=abc123
//	  -X github.com/soyeahso/foodvoice/internal/version.Date=2026-10-01"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info returns a formatted version string.
func Info() string {
	return fmt.Sprintf("foodvoice %s (commit: %s, built: %s, %s/%s)",
		Version, short(Commit), Date, runtime.GOOS, runtime.GOARCH)
}

// UserAgent is sent on outbound HTTP calls to the LLM, TTS and executor services.
func UserAgent() string {
	return "foodvoice/" + Version
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
