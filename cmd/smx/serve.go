package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/mkarling/sparsemat/internal/api"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
	)

	flags := append(deviceFlags(), loggingFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "listen address",
			Value:       "127.0.0.1:8080",
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "read-timeout",
			Usage:       "read timeout",
			Value:       30 * time.Second,
			Destination: &readTimeout,
		},
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the matrix REST API",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyServeConfig(cmd, LoadConfig(), &addr)
			log := newLogger()

			dev, err := resolveDevice()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			server := api.NewServer(dev, api.NewMatrixStore(), log)
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "device", dev.ID())
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
