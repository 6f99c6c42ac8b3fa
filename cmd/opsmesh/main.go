package main

import (
	"os"

	"github.com/hupe1980/opsmesh/cmd/opsmesh/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
