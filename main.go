// Package main is the entry point for the tyto capture analyzer.
package main

import (
	"fmt"
	"os"

	"github.com/tytonet/tyto/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
