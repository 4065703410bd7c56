package main

import (
	"os"

	"github.com/clearline-systems/clearline-engine/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
