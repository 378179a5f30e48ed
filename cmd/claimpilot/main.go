package main

import (
	"os"

	"github.com/dativo-io/claimpilot/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
