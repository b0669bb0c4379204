// Command kiln is the thin CLI front-end over the build engine core: a
// cobra root command wiring one subcommand per meta-operation/test
// surface the core exposes.
package main

import (
	"os"

	"github.com/kiln-build/kiln/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
