package main

import (
	"os"

	"github.com/johnmschoonover/tmplview/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
