package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iwvelando/premium-engine/internal/config"
	"github.com/iwvelando/premium-engine/internal/server"
	"github.com/iwvelando/premium-engine/pkg/constants"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		serverConfig string
		address      string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the quote API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			srvCfg, err := server.LoadConfig(serverConfig)
			if err != nil {
				return err
			}
			srvCfg.MergeAuth(a.conf.Auth)
			if address != "" {
				srvCfg.Address = address
			}
			if srvCfg.Logging != (config.LoggingConfig{}) {
				logger, err := initializeLogger(srvCfg.Logging, opts.logLevel)
				if err != nil {
					return err
				}
				_ = a.logger.Sync()
				a.logger = logger
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			doc, err := a.loadTariff(ctx)
			if err != nil {
				return err
			}
			svc, cleanup, err := a.quoteService(ctx, doc)
			if err != nil {
				return err
			}
			defer cleanup()

			if !srvCfg.Auth.Enabled() {
				a.logger.Warn("API authentication is disabled",
					zap.String("op", "main.serve"))
			}

			httpServer := &http.Server{
				Addr:              srvCfg.Address,
				Handler:           server.NewHandler(a.logger, svc, srvCfg, version),
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       15 * time.Second,
				WriteTimeout:      15 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("serving quote API",
					zap.String("op", "main.serve"),
					zap.String("address", srvCfg.Address),
					zap.String("tariff_version", doc.Version()))
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			a.logger.Info("shutting down", zap.String("op", "main.serve"))
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&serverConfig, "server-config", constants.DefaultServerConfigFile, "path to server configuration file")
	cmd.Flags().StringVar(&address, "address", "", "listen address override")
	return cmd
}
