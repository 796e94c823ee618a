// Package main provides the entry point for the rifflux CLI.
package main

import (
	"os"

	"github.com/riffluxdb/rifflux/cmd/rifflux/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
