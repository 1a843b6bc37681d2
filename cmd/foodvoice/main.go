package main

import (
	"os"

	"github.com/tillberg/autorestart"

	"github.com/soyeahso/foodvoice/internal/cli"
)

func main() {
	// Restart on binary change during development.
	if os.Getenv("FOODVOICE_AUTORESTART") == "1" {
		go autorestart.RestartOnChange()
	}

	if err := cli.Execute(); err != nil {
		os.Stderr.WriteString("foodvoice: " + err.Error() + "\n")
		os.Exit(1)
	}
}
