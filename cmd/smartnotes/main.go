package main

import (
	"fmt"
	"os"

	"smartnotes/internal/cli"
	"smartnotes/internal/config"
	"smartnotes/internal/output"
)

func main() {
	if err := run(); err != nil {
		formatter := output.NewFormatter(os.Stderr)
		formatter.Error(err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	deps := &cli.Dependencies{
		Config: cfg,
		Out:    os.Stdout,
		Err:    os.Stderr,
	}
	return cli.NewRootCmd(deps).Execute()
}
