// Package app — сборка и жизненный цикл сервиса: конфигурация, реестр
// аккаунтов, автомат входа, HTTP-сервер, корректное завершение.
package app

import (
	"context"
	"time"

	"telegram-accounts/internal/adapters/telegram/tgops"
	"telegram-accounts/internal/adapters/web"
	"telegram-accounts/internal/domain/accounts"
	"telegram-accounts/internal/domain/authflow"
	"telegram-accounts/internal/infra/config"
	"telegram-accounts/internal/infra/logger"
	"telegram-accounts/internal/infra/sessions"
	"telegram-accounts/internal/infra/telegram/tgconn"
)

const shutdownTimeout = 10 * time.Second

// App агрегирует собранные компоненты сервиса.
type App struct {
	registry *accounts.Registry
	server   *web.Server
}

// connOpener адаптирует *tgconn.Opener к доменному интерфейсу accounts.Opener:
// Go не сужает типы возвращаемых значений автоматически.
type connOpener struct {
	opener *tgconn.Opener
}

func (o connOpener) Open(ctx context.Context, name, credential string) (accounts.Conn, error) {
	conn, err := o.opener.Open(ctx, name, credential)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// New собирает приложение. ctx ограничивает жизнь фоновых подключений.
func New(ctx context.Context, cfg *config.Config) *App {
	opener := tgconn.NewOpener(ctx, cfg.APIID, cfg.APIHash, cfg.ThrottleRPS, cfg.TestDC, cfg.PeersCacheDir)
	registry := accounts.NewRegistry(connOpener{opener: opener}, sessions.FromConfig(cfg))

	flow := authflow.New(
		tgconn.NewGateway(opener),
		registry,
		time.Duration(cfg.PendingLoginTTLMin)*time.Minute,
	)

	service := tgops.NewService(registry)
	handlers := web.NewHandlers(service, flow, cfg.APIID != 0, cfg.APIHash != "")

	return &App{
		registry: registry,
		server:   web.NewServer(cfg.ListenAddr, handlers),
	}
}

// Run подключает аккаунты из окружения, запускает HTTP-сервер и блокируется
// до отмены ctx либо падения сервера.
func (a *App) Run(ctx context.Context) error {
	a.connectConfigured(ctx)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			a.registry.Close()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("http shutdown: %v", err)
	}

	a.registry.Close()
	logger.Info("all accounts disconnected, bye")
	return nil
}

// connectConfigured поднимает подключения аккаунтов, заданных окружением.
// Битая сессия одного аккаунта не мешает остальным: сервис стартует, а
// аккаунт остаётся в списке известных и виден в /health как неактивный.
func (a *App) connectConfigured(ctx context.Context) {
	names := a.registry.Names()
	if len(names) == 0 {
		logger.Warn("no sessions configured, start with /add_account or /auth/start")
		return
	}
	for _, name := range names {
		if err := a.registry.EnsureStarted(ctx, name); err != nil {
			logger.Warnf("account %s: startup connect failed: %v", name, err)
		}
	}
}
