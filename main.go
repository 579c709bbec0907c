// Package main is the entry point for the iochunt IOC classification and hunt service.
package main

import (
	"fmt"
	"os"

	"iochunt/cmd"
	_ "iochunt/docs"
)

// main runs the CLI. With no subcommand the API server is started.
func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
