package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/batchlu/internal/batched"
	"github.com/samcharles93/batchlu/internal/logger"
)

var (
	backendName       string
	logLevel          string
	logFormat         string
	configFile        string
	serialStreams     bool
	deviceMemoryLimit int64
	workers           int64

	// fileConfig is the config file loaded by setup.
	fileConfig Config
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "execution backend (auto, cpu, cuda)",
			Value:       "auto",
			Destination: &backendName,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config file (default $XDG_CONFIG_HOME/batchlu/config.yaml)",
			Destination: &configFile,
		},
		&cli.BoolFlag{
			Name:        "serial",
			Usage:       "issue every transfer and kernel on one stream",
			Destination: &serialStreams,
		},
		&cli.Int64Flag{
			Name:        "device-memory-limit",
			Usage:       "cap emulated device memory in bytes (cpu backend, 0 = system memory)",
			Destination: &deviceMemoryLimit,
		},
		&cli.Int64Flag{
			Name:        "workers",
			Usage:       "goroutines per batched kernel (cpu backend, 0 = NumCPU)",
			Destination: &workers,
		},
	}
}

// setup loads the config file, applies it under explicit flags and installs
// the logger in the context.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return ctx, cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	fileConfig = cfg
	applyConfig(cmd, cfg)

	log, err := logger.Build(logFormat, logLevel, os.Stderr)
	if err != nil {
		return ctx, cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	return logger.WithContext(ctx, log), nil
}

// openSolver initialises the process-wide runtime from the flags.
func openSolver(ctx context.Context) (*batched.Solver, error) {
	err := batched.Init(batched.Config{
		Backend:           backendName,
		SerialStreams:     serialStreams,
		DeviceMemoryLimit: deviceMemoryLimit,
		Workers:           int(workers),
		Logger:            logger.FromContext(ctx),
	})
	if err != nil {
		return nil, err
	}
	return batched.Default()
}
