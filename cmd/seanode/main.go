// Command seanode compiles, canonicalizes and lowers arithmetic graphs.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/seanode/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
