package main

import (
	"os"

	"github.com/lixenwraith/world-mood/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
