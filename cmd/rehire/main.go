package main

import (
	"fmt"
	"os"

	"github.com/gost-dom/rehire/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rehire:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
