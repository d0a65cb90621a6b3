// Command plcscan loads, checks and runs ladder-logic projects.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/plcscan/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
