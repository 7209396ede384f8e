package main

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/mkarling/sparsemat/internal/device"
	"github.com/mkarling/sparsemat/internal/logger"
)

var (
	deviceName string
	logLevel   string
	logFormat  string
	debug      bool
)

func deviceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "device",
			Aliases:     []string{"d"},
			Usage:       "compute device (cpu, gpu, or a device number)",
			Value:       "gpu",
			Destination: &deviceName,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

func resolveDevice() (*device.Device, error) {
	id, err := device.Normalize(deviceName)
	if err != nil {
		return nil, err
	}
	return device.Get(id), nil
}

func newLogger() logger.Logger {
	level := logger.ParseLevel(logLevel)
	if debug {
		level = slog.LevelDebug
	}
	if logFormat == "json" {
		return logger.JSON(os.Stderr, level)
	}
	return logger.Pretty(os.Stderr, level)
}
