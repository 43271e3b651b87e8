package servecmder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/career-fairy/backend/internal/app"
	"github.com/zhouzirui/career-fairy/backend/internal/handler"
)

const serveLongDesc string = `Run the HTTP and WebSocket API.

Configuration comes from the environment, optionally loaded from an
env file. Without generation credentials the server still starts and
every reply is the fallback error message.

Examples:
  careerfairy serve
  careerfairy serve --addr 127.0.0.1:9000 --env-file prod.env`

const serveShortDesc string = "Run the API server"

type serveCommander struct {
	addr     string
	envFiles []string
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&cmder.addr, "addr", "", "Listen address (overrides PORT)")
	cmd.Flags().StringSliceVar(&cmder.envFiles, "env-file", nil, "Env files to load (default .env)")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	cfg, logger, err := app.Bootstrap(c.envFiles...)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if c.addr != "" {
		cfg.Server.Addr = c.addr
	}

	a := app.New(ctx, cfg, logger)
	defer a.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.NewRouter(a.Personas, a.Chat, a.Bus, logger),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("career fairy backend listening", zap.String("addr", srv.Addr))
	if err := runServer(ctx, srv); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
