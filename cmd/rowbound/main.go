// Package main is the entry point for the rowbound CLI.
package main

import (
	"os"

	"github.com/rowbound/rowbound/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
