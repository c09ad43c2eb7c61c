// Package main запускает HTTP-сервер клуба участников.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/memberclub/internal/config"
	"github.com/mmeshcher/memberclub/internal/handler"
	"github.com/mmeshcher/memberclub/internal/metrics"
	"github.com/mmeshcher/memberclub/internal/middleware"
	"github.com/mmeshcher/memberclub/internal/repository"
	"github.com/mmeshcher/memberclub/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := newRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	m := metrics.New()
	svc := service.NewService(repo, m, cfg.MembershipPrice)
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	created, err := svc.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		sugar.Fatalw("admin bootstrap error", "error", err.Error())
	}
	if created {
		sugar.Infow("bootstrap admin created", "username", cfg.AdminUsername)
	}

	if cfg.SessionSecret == "" {
		sugar.Warn("SESSION_SECRET is not set, sessions will not survive a restart")
	}
	authMiddleware := middleware.NewAuthMiddleware(cfg.SessionSecret, cfg.SessionTTL)
	h := handler.NewHandler(svc, logger, authMiddleware, m)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting memberclub server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

// newRepository выбирает хранилище: PostgreSQL при заданном DSN, иначе память процесса.
func newRepository(dsn string) (service.Repository, error) {
	if dsn == "" {
		return repository.NewMemoryRepository(), nil
	}
	return repository.NewPostgresRepository(dsn)
}
