package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/petasbytes/fig2code/internal/server"
)

const serveLongDesc = `Serve the HTTP upload API.

Endpoints:
  POST /api/generate         multipart field "image"; runs one session
  GET  /api/records          record file names
  GET  /api/artifacts/:name  a rendered figure or record
  GET  /health`

type serveCommander struct {
	app    *app
	listen string
}

func newServeCmd(a *app) *cobra.Command {
	cmder := &serveCommander{app: a}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP upload API",
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address to listen on (default from config)")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	cfg := c.app.cfg.Server
	if c.listen != "" {
		cfg.Listen = c.listen
	}
	svc, store, err := c.app.newService()
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		ListenAddr:    cfg.Listen,
		MaxConcurrent: cfg.MaxConcurrent,
		MaxUploadMB:   cfg.MaxUploadMB,
	}, svc, store, c.app.logger)

	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(10 * time.Second); err != nil {
			c.app.logger.Warn("shutdown", zap.Error(err))
		}
	}()
	return srv.Run()
}
