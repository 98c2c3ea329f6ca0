package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/gyandarshak/gyandarshak/internal/api/http"
	"github.com/gyandarshak/gyandarshak/internal/assessment"
	"github.com/gyandarshak/gyandarshak/internal/assistant"
	"github.com/gyandarshak/gyandarshak/internal/auth"
	authmw "github.com/gyandarshak/gyandarshak/internal/auth/middleware"
	"github.com/gyandarshak/gyandarshak/internal/catalog"
	"github.com/gyandarshak/gyandarshak/internal/config"
	"github.com/gyandarshak/gyandarshak/internal/db"
	"github.com/gyandarshak/gyandarshak/internal/identity"
	"github.com/gyandarshak/gyandarshak/internal/sessions"
)

func main() {
	if err := run(); err != nil {
		slog.Error("gateway stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	slog.SetDefault(newLogger(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		return err
	}
	defer dbh.Close()

	users := identity.NewService(dbh, time.Now)
	if cfg.AdminEmail != "" && cfg.AdminPassHash != "" {
		created, err := users.EnsureAdmin(ctx, cfg.AdminEmail, "", cfg.AdminPassHash)
		if err != nil {
			return err
		}
		slog.Info("bootstrap admin ready", "email", cfg.AdminEmail, "created", created)
	}

	tokens := authmw.NewAuthService(cfg.AuthHMACSecret, cfg.TokenTTL)
	deps := api.Deps{
		DB:          dbh,
		Tokens:      tokens,
		Users:       users,
		Tests:       assessment.NewService(dbh, users, assessment.WithRedactedAnswerKeys(cfg.RedactAnswerKeys)),
		Sessions:    sessions.NewService(dbh, users, time.Now),
		Catalog:     catalog.NewService(dbh),
		Assistant:   assistant.Keyword{},
		LocalAuth:   cfg.EnableLocalAuth,
		CORSOrigins: cfg.CORSOrigins(),
	}
	if cfg.EnableGoogleAuth {
		deps.Google = auth.NewGoogle(cfg, users, tokens)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "db", cfg.DBDriver)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
