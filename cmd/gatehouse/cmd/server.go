package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/jmcleod/gatehouse/api"
	"github.com/jmcleod/gatehouse/auth"
	"github.com/jmcleod/gatehouse/config"
)

var trustedProxies []string

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the authentication server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
		slog.SetDefault(logger)

		var auditOpts []auth.AuditOption
		if cfg.AuditWebhookURL != "" {
			webhook := auth.NewWebhookSink(cfg.AuditWebhookURL, cfg.AuditWebhookAuth)
			defer webhook.Close()
			auditOpts = append(auditOpts, auth.WithSink(webhook))
		}
		if cfg.AuditArchivePath != "" {
			archive, err := auth.NewArchiveSink(cfg.AuditArchivePath)
			if err != nil {
				return err
			}
			defer archive.Close()
			auditOpts = append(auditOpts, auth.WithSink(archive))
		}
		audit := auth.NewAuditLog(logger, auditOpts...)

		// A missing or unhashed credential leaves the server up, but
		// every login fails closed until it is fixed.
		var credential *auth.AdminCredential
		if cfg.AdminPasswordHash == "" {
			logger.Error("GATEHOUSE_ADMIN_PASSWORD_HASH is not set; logins will fail")
		} else {
			credential, err = auth.NewAdminCredential(cfg.AdminPasswordHash)
			if err != nil {
				logger.Error("admin credential rejected; logins will fail", "error", err)
				credential = nil
			}
		}

		sessions := auth.NewSessionStore(cfg.SessionTTL, audit)
		csrf := auth.NewCSRFTokenStore(cfg.CSRFTTL)
		limiter := auth.NewRateLimiter(cfg.RateLimitMaxAttempts, cfg.RateLimitWindow, cfg.RateLimitBlock)

		sweepCtx, cancelSweeps := context.WithCancel(context.Background())
		defer cancelSweeps()
		go sessions.Sweep(sweepCtx, cfg.SweepInterval)
		go csrf.Sweep(sweepCtx, cfg.SweepInterval)
		go limiter.Sweep(sweepCtx, cfg.SweepInterval)

		opts := []api.Option{
			api.WithProductionMode(cfg.Production),
			api.WithFailureDelay(cfg.FailureDelay),
		}
		if len(trustedProxies) > 0 {
			opt, err := api.WithTrustedProxies(trustedProxies)
			if err != nil {
				return err
			}
			opts = append(opts, opt)
		}
		a := api.New(credential, sessions, csrf, limiter, audit, opts...)

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		r.Mount("/", a.Router())

		server := &http.Server{
			Addr:              cfg.Addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		logger.Info("server started", "addr", cfg.Addr, "production", cfg.Production)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			sessions.RevokeAll()
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().StringSliceVar(&trustedProxies, "trusted-proxies", nil,
		"CIDR ranges whose forwarding headers are trusted for client IPs")
}
