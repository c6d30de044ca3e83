package main

import (
	"fmt"
	"os"

	"github.com/ashish13377/Intellido/cmd/intellido/commands"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := commands.NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
