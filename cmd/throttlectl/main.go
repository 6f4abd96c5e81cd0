package main

import (
	"os"

	"github.com/BradenHooton/ipthrottle/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
