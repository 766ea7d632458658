package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/auth"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/config"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/events"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addrFlag string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP JSON API for the dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.open()
			if err != nil {
				return err
			}
			defer s.Close()
			logger := s.logger

			listenAddr := config.ListenAddr(addrFlag)
			if err := config.ValidateListenAddr(listenAddr); err != nil {
				return fmt.Errorf("invalid listen address %q: %w", listenAddr, err)
			}
			debounce := config.RefreshDebounce()

			opts := server.Options{Logger: logger}

			tokenFile, tokensEnabled, err := config.ResolveTokenFile()
			if err != nil {
				return fmt.Errorf("resolve token file: %w", err)
			}
			if tokensEnabled {
				tokenStore, err := auth.NewTokenStore(tokenFile, debounce, logger)
				if err != nil {
					return fmt.Errorf("initialise token store: %w", err)
				}
				defer func() {
					if err := tokenStore.Close(); err != nil {
						logger.Printf("error closing token store: %v", err)
					}
				}()
				opts.Validator = tokenStore
			}

			hub := events.NewHub(logger)
			defer hub.Close()
			opts.Hub = hub
			watcher, err := events.Watch(hub, s.core.Root(), debounce, logger)
			if err != nil {
				logger.Printf("live refresh disabled: %v", err)
			} else {
				defer func() {
					if err := watcher.Close(); err != nil {
						logger.Printf("error closing watcher: %v", err)
					}
				}()
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if s.settings.RateLimit > 0 {
				opts.Limiter = server.NewRateLimiter(s.settings.RateLimit, s.settings.RateWindow)
				go opts.Limiter.Run(runCtx)
			}

			httpServer := &http.Server{
				Addr:              listenAddr,
				Handler:           server.New(s.core, opts),
				ReadHeaderTimeout: 5 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       120 * time.Second,
			}
			// Event streams end when the hub closes so Shutdown can drain.
			httpServer.RegisterOnShutdown(hub.Close)

			go func() {
				<-runCtx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
				defer cancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Printf("graceful shutdown error: %v", err)
				}
			}()

			logger.Printf("listening on %s (content root: %s)", listenAddr, s.core.Root())
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			logger.Println("shutdown complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&addrFlag, "addr", "", "Listen address (defaults to CONTENT_LISTEN_ADDR or 127.0.0.1:3000)")
	return cmd
}
