package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vango-dev/treediff/internal/errors"
	"github.com/vango-dev/treediff/pkg/server"
)

func (a *app) serveCmd() *cobra.Command {
	var (
		port    int
		host    string
		maxBody int64
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve reconciliation over HTTP and WebSocket",
		Long: `Start the reconciliation server.

Routes:
  POST /v1/reconcile   JSON {"old", "new", "root"} in, patches out
  GET  /v1/ws          WebSocket, binary patch frames
  GET  /metrics        Prometheus metrics
  GET  /healthz        liveness

The server shuts down gracefully on SIGINT or SIGTERM.

Examples:
  treediff serve
  treediff serve --port=8080
  treediff serve --host=0.0.0.0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Apply command-line overrides
			if port > 0 {
				a.cfg.Server.Port = port
			}
			if host != "" {
				a.cfg.Server.Host = host
			}
			if maxBody > 0 {
				a.cfg.Server.MaxBodyBytes = maxBody
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", a.cfg.Address())
			if err != nil {
				return errors.New(errors.CodeServeFailed).Wrap(err).
					WithSuggestion("Choose another port with --port.")
			}
			return a.runServe(ctx, cmd, ln)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from treediff.json)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from treediff.json)")
	cmd.Flags().Int64Var(&maxBody, "max-body", 0, "Largest accepted request in bytes (default from treediff.json)")

	return cmd
}

// serverConfig translates treediff.json into the server's configuration.
func (a *app) serverConfig() *server.Config {
	return &server.Config{
		Address:         a.cfg.Address(),
		MaxBodyBytes:    a.cfg.Server.MaxBodyBytes,
		ReadTimeout:     a.cfg.ReadTimeout(),
		WriteTimeout:    a.cfg.WriteTimeout(),
		ShutdownTimeout: a.cfg.ShutdownTimeout(),
		DiffOptions:     a.cfg.DiffOptions(),
	}
}

func (a *app) runServe(ctx context.Context, cmd *cobra.Command, ln net.Listener) error {
	srv := server.New(a.serverConfig(), server.WithLogger(a.logger))

	out := cmd.OutOrStdout()
	addr := ln.Addr().(*net.TCPAddr)
	success(out, "Listening on http://%s", net.JoinHostPort(a.cfg.Server.Host, strconv.Itoa(addr.Port)))
	info(out, "WebSocket  ws://%s/v1/ws", net.JoinHostPort(a.cfg.Server.Host, strconv.Itoa(addr.Port)))
	info(out, "Press Ctrl+C to stop")

	if err := srv.Serve(ctx, ln); err != nil {
		a.logger.Error("server stopped", zap.Error(err))
		return errors.New(errors.CodeServeFailed).Wrap(err)
	}
	success(out, "Server stopped")
	return nil
}
