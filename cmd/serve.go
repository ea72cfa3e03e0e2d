package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/mistakebook/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		cmd.SetContext(ctx)

		a, err := newApp(cmd, appOptions{llm: true})
		if err != nil {
			return err
		}
		defer a.Close()

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			a.cfg.Server.Addr = addr
		}
		srv, err := server.New(a.svc, a.metrics, server.Config{
			Addr:           a.cfg.Server.Addr,
			ReadTimeout:    a.cfg.Server.ReadTimeout,
			WriteTimeout:   a.cfg.Server.WriteTimeout,
			MaxUploadBytes: int64(a.cfg.OCR.MaxBytes) * 2,
			Auth: server.AuthConfig{
				Secret: []byte(a.cfg.Auth.JWTSecret),
				Issuer: a.cfg.Auth.Issuer,
			},
		}, a.logger)
		if err != nil {
			return err
		}

		serverErrors := make(chan error, 1)
		go func() {
			serverErrors <- srv.Start()
		}()

		select {
		case err := <-serverErrors:
			if err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case <-ctx.Done():
			a.logger.Info("shutdown signal received")
		}

		shutdownCtx, stop := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown error", zap.Error(err))
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
}
