package main

import (
	"fmt"
	"os"

	"boulder-catalog/internal/cli"
	"boulder-catalog/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rootCmd := cli.NewRootCmd(cli.DefaultOpener(cfg, os.Stderr))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
