package main

import (
	"os"

	"github.com/usradm-dev/usradm/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
