// Command server runs the account service HTTP API.
//
// @title        Account Service API
// @version      1.0
// @description  Account registration and session token API.
// @BasePath     /v1/api
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

	"github.com/educapi/account-service/internal/api"
	"github.com/educapi/account-service/internal/core/service"
	"github.com/educapi/account-service/internal/infrastructure/config"
	"github.com/educapi/account-service/internal/infrastructure/queue"
	"github.com/educapi/account-service/pkg/logger"
)

const (
	serviceName     = "account-service"
	shutdownTimeout = 15 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: serviceName,
	})

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.close(log)

	tokens, err := service.NewTokenService([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("token service: %w", err)
	}
	accounts := service.NewAccountService(store.accounts, tokens)
	events := service.NewEventService(store.events, logger.Component("audit"))

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	dispatcher := queue.NewDispatcher(cfg.Audit.Workers, cfg.Audit.Buffer, events, logger.Component("dispatcher"))
	dispatcher.Start(workerCtx)

	e := api.NewRouter(api.Dependencies{
		Accounts: accounts,
		Events:   dispatcher,
		Checks:   store.checks,
		Log:      logger.Component("http"),
	})

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("storage", cfg.StorageDriver).
			Bool("cache", cfg.Redis.Addr != "").
			Dur("token_ttl", tokens.TTL()).
			Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}

	drained := make(chan struct{})
	go func() {
		dispatcher.Close()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		log.Warn().Msg("audit queue not drained before shutdown deadline")
		cancelWorkers()
		<-drained
	}

	log.Info().Msg("server stopped")
	return nil
}
