package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/batchlu/internal/batched"
)

func main() {
	app := &cli.Command{
		Name:   "batchlu",
		Usage:  "Batched dense LU solves on an accelerator",
		Flags:  globalFlags(),
		Before: setup,
		After: func(ctx context.Context, cmd *cli.Command) error {
			return batched.Shutdown()
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			solveCmd(),
			benchCmd(),
			serveCmd(),
			devicesCmd(),
			versionCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
