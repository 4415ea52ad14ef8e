package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/batchlu/internal/backend"
)

func devicesCmd() *cli.Command {
	return &cli.Command{
		Name:  "devices",
		Usage: "List compiled-in backends and the memory of the selected one",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Printf("available: %s\n", strings.Join(backend.Available(), ", "))

			solver, err := openSolver(ctx)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open backend: %v", err), 1)
			}
			dev := solver.Backend()
			info, err := dev.MemInfo()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: device memory: %v", err), 1)
			}
			fmt.Printf("selected:  %s\n", dev.Name())
			fmt.Printf("total:     %s\n", formatBytes(info.Total))
			fmt.Printf("free:      %s\n", formatBytes(info.Free))
			return nil
		},
	}
}
