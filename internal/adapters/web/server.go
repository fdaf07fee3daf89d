// Package web — HTTP-интерфейс сервиса: маршрутизация, разбор и валидация
// запросов, отображение доменных ошибок на статусы.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"telegram-accounts/internal/infra/logger"
)

const (
	readTimeout = 15 * time.Second
	// Выгрузка участников большого канала идёт постранично под rate-limit,
	// поэтому запись ответа может занять минуты.
	writeTimeout = 120 * time.Second
	idleTimeout  = 60 * time.Second
)

// Server — HTTP-сервер с маршрутизацией chi.
type Server struct {
	srv *http.Server
}

// NewServer собирает сервер на addr с готовыми обработчиками.
func NewServer(addr string, handlers *Handlers) *Server {
	router := chi.NewRouter()
	router.Use(requestLogging)

	router.Get("/health", handlers.Health)
	router.Get("/accounts", handlers.Accounts)

	router.Post("/dialogs", handlers.Dialogs)
	router.Post("/export_members", handlers.ExportMembers)
	router.Post("/send_message", handlers.SendMessage)

	router.Post("/add_account", handlers.AddAccount)
	router.Post("/remove_account", handlers.RemoveAccount)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/start", handlers.AuthStart)
		r.Post("/confirm", handlers.AuthConfirm)
		r.Post("/confirm_2fa", handlers.AuthConfirm2FA)
	})

	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		},
	}
}

// Start блокируется до остановки сервера. Штатное завершение через Shutdown
// ошибкой не считается.
func (s *Server) Start() error {
	logger.Infof("http server listening on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown корректно останавливает сервер, дожидаясь активных запросов.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("shutting down http server")
	return s.srv.Shutdown(ctx)
}
