// Package main is the entry point for the classrepo CLI application.
package main

import (
	"fmt"
	"os"

	"github.com/edutools/classrepo/cmd"
	"github.com/edutools/classrepo/internal/logging"
)

func main() {
	if err := cmd.Execute(); err != nil {
		logging.Error("command execution failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
