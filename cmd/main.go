package main

import (
	"os"

	"celo-quiz-settlement/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
