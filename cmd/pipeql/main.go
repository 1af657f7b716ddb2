package main

import (
	"fmt"
	"os"

	"github.com/roach88/pipeql/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		if !cli.Shown(err) {
			fmt.Fprintf(os.Stderr, "pipeql: %v\n", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
