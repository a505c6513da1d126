package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"assessync/internal/app/server/api"
	"assessync/internal/app/server/api/http/health"
	"assessync/internal/app/server/config"
	"assessync/internal/domain/entity"
	"assessync/internal/domain/resource"
	"assessync/internal/infrastructure/storage/postgres"
	"assessync/internal/utils/logger"

	"golang.org/x/exp/slog"
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, checker, closeRepo, err := newRepository(ctx, cfg, log)
	if err != nil {
		log.Error("не удалось открыть хранилище", logger.Err(err))
		os.Exit(1)
	}
	defer closeRepo()

	service := resource.NewService(repo, entity.DefaultRegistry(), log)
	srv := &http.Server{
		Addr:              cfg.Server.RunAddress,
		Handler:           api.New(service, checker, cfg.Server.Token, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("сервер запущен", slog.String("address", cfg.Server.RunAddress))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("ошибка сервера", logger.Err(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("ошибка остановки сервера", logger.Err(err))
	}
	log.Info("сервер остановлен")
}

func newRepository(ctx context.Context, cfg *config.Config, log *slog.Logger) (resource.Repository, health.Checker, func(), error) {
	if cfg.DB.InMemory() {
		log.Warn("DATABASE_URI не задан, данные хранятся в памяти")
		repo := resource.NewMemoryRepository()
		return repo, repo, func() {}, nil
	}

	storage, err := postgres.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return postgres.NewResourceRepository(storage, log), storage, func() { _ = storage.Close() }, nil
}
