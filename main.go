package main

import (
	"os"

	"github.com/spigell/legallens/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
