package main

import (
	"os"

	"github.com/renaissancebro/refactor-agent/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
