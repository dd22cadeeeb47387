// Package main is the entry point for the flowzip packet trace compressor.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/flowzip/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
