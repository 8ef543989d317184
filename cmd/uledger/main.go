package main

import (
	"os"

	"github.com/uledger-dev/uledger/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
