package main

import (
	"os"

	"guess-the-prompt/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
