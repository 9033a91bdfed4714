// Command floyd is the CLI entry point for the Floyd agent runtime.
package main

import (
	"fmt"
	"os"

	"github.com/floydai/floyd/cmd/floyd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
