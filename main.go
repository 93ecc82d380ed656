package main

import (
	"os"

	"github.com/marregui/logpulse/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
