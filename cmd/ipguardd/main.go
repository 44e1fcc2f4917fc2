package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/headswim/ipguard"
	"github.com/headswim/ipguard/config"
	"github.com/headswim/ipguard/log"
	"github.com/spf13/cobra"
)

const (
	appName                = "ipguardd"
	defaultShutdownTimeout = 10 * time.Second
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		listen        string
		threshold     int
		blockDuration time.Duration
		strategy      string
		logLevel      string
	)

	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "Serve the site behind the adaptive IP blocking guard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}

			flags := cmd.Flags()
			if flags.Changed("listen") {
				cfg.ListenAddr = listen
			}
			if flags.Changed("threshold") {
				cfg.Threshold = threshold
			}
			if flags.Changed("block-duration") {
				cfg.BlockDuration = blockDuration
			}
			if flags.Changed("identifier-strategy") {
				cfg.IdentifierStrategy = strategy
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if err := config.Validate(cfg); err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}

			if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
				return fmt.Errorf("logging configuration error: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, *cfg)
		},
	}

	def := config.DefaultConfig()
	rootCmd.Flags().StringVar(&listen, "listen", def.ListenAddr, "address to listen on")
	rootCmd.Flags().IntVar(&threshold, "threshold", def.Threshold, "suspicious requests before a block")
	rootCmd.Flags().DurationVar(&blockDuration, "block-duration", def.BlockDuration, "how long a block lasts")
	rootCmd.Flags().StringVar(&strategy, "identifier-strategy", def.IdentifierStrategy, "client identifier source: remote or proxy")
	rootCmd.Flags().StringVar(&logLevel, "log-level", def.LogLevel, "debug, info, warn or error")

	return rootCmd
}

func run(ctx context.Context, cfg config.Config) error {
	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	m, err := ipguard.NewWithConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to build middleware: %w", err)
	}
	ipguard.Start(ctx, m)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           buildRouter(m),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info(map[string]any{
		"listen":              cfg.ListenAddr,
		"threshold":           cfg.Threshold,
		"block_duration":      cfg.BlockDuration.String(),
		"identifier_strategy": cfg.IdentifierStrategy,
	}, "Starting ipguardd")

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info(nil, "Shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
