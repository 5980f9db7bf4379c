package main

import (
	"os"

	"github.com/basilbenny1002/idxagent/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
