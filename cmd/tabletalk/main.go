package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/tabletalk-cli/internal/adapters/driving/cli"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	// API keys may live in a local .env during development; a missing
	// file is not an error.
	_ = godotenv.Load()

	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
