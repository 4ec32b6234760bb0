// Package main is the entry point for the frontier portfolio optimizer.
// It serves the HTTP API and offers one-shot CLI commands for optimization
// and cache maintenance.
package main

import (
	"os"

	"github.com/aristath/frontier/cmd/server/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
