package main

import (
	"os"

	"github.com/crimson-sun/tracecast/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
