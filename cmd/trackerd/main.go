// Package main provides the entry point for the trackerd daemon and CLI.
package main

import (
	"os"

	"github.com/trackerd/trackerd/cmd/trackerd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
