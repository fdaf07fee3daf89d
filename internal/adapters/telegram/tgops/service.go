// Package tgops — операции над Telegram от имени подключённых аккаунтов:
// список диалогов, выгрузка участников групп и каналов, отправка сообщений,
// управление набором аккаунтов.
package tgops

import (
	"context"

	"github.com/gotd/td/tg"

	"telegram-accounts/internal/domain/accounts"
	"telegram-accounts/internal/domain/errs"
	"telegram-accounts/internal/infra/telegram/peerscache"
)

// Conn — расширенный контракт подключения, который реализует tgconn.Conn.
type Conn interface {
	accounts.Conn
	API() *tg.Client
	Peers() *peerscache.Cache
}

// Service выполняет операции, беря подключения из реестра аккаунтов.
type Service struct {
	registry *accounts.Registry
}

// NewService собирает сервис поверх реестра.
func NewService(registry *accounts.Registry) *Service {
	return &Service{registry: registry}
}

// conn достаёт живое подключение аккаунта из реестра.
func (s *Service) conn(ctx context.Context, account string) (Conn, error) {
	raw, err := s.registry.Conn(ctx, account)
	if err != nil {
		return nil, err
	}
	conn, ok := raw.(Conn)
	if !ok {
		return nil, errs.Errorf(errs.KindInternal, "connection of %s does not expose the telegram api", account)
	}
	return conn, nil
}

// Accounts возвращает известные и активные (подключённые) аккаунты.
func (s *Service) Accounts() (names, active []string) {
	return s.registry.Names(), s.registry.Active()
}

// AddAccount регистрирует аккаунт по готовой сессии и проверяет её подключением.
func (s *Service) AddAccount(ctx context.Context, name, credential string) error {
	return s.registry.Add(ctx, name, credential)
}

// RemoveAccount отключает и забывает аккаунт.
func (s *Service) RemoveAccount(name string) bool {
	return s.registry.Remove(name)
}
