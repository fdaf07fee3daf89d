// Package tgconn — подключения MTProto-клиентов gotd. Opener поднимает
// долгоживущее соединение для одного аккаунта: фоновый client.Run,
// проверка авторизации, rate-limit на исходящие RPC и кэш пиров.
package tgconn

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/gotd/contrib/middleware/ratelimit"
	tdsession "github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/tg"
	"golang.org/x/time/rate"

	"telegram-accounts/internal/domain/errs"
	"telegram-accounts/internal/infra/logger"
	"telegram-accounts/internal/infra/sessions"
	"telegram-accounts/internal/infra/storage"
	"telegram-accounts/internal/infra/telegram/peerscache"
)

const (
	connectTimeout = 30 * time.Second
	stopTimeout    = 5 * time.Second

	deviceModel   = "telegram-accounts"
	appVersion    = "1.0.0"
	peersCacheExt = ".db"
)

// Opener создаёт подключения аккаунтов. Один экземпляр на процесс.
type Opener struct {
	apiID    int
	apiHash  string
	rps      int
	testDC   bool
	peersDir string
	baseCtx  context.Context
}

// NewOpener собирает фабрику подключений. baseCtx ограничивает время жизни
// всех фоновых client.Run: его отмена гасит каждое открытое соединение.
func NewOpener(baseCtx context.Context, apiID int, apiHash string, rps int, testDC bool, peersDir string) *Opener {
	if rps <= 0 {
		rps = 1
	}
	return &Opener{
		apiID:    apiID,
		apiHash:  apiHash,
		rps:      rps,
		testDC:   testDC,
		peersDir: peersDir,
		baseCtx:  baseCtx,
	}
}

// Conn — живое авторизованное подключение одного аккаунта.
type Conn struct {
	name   string
	client *telegram.Client
	store  *tdsession.StorageMemory
	peers  *peerscache.Cache
	cancel context.CancelFunc
	done   chan error

	stopOnce sync.Once
}

// Open поднимает соединение аккаунта name по сериализованной сессии.
// Блокируется до готовности клиента либо до истечения ctx.
func (o *Opener) Open(ctx context.Context, name, credential string) (*Conn, error) {
	if o.apiID == 0 || o.apiHash == "" {
		return nil, errs.E(errs.KindConfig, "TG_API_ID and TG_API_HASH must be set")
	}

	store, err := sessions.Storage(ctx, credential)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnauthorized, err, "invalid session credential")
	}

	client := telegram.NewClient(o.apiID, o.apiHash, o.options(store))

	runCtx, cancel := context.WithCancel(o.baseCtx)
	conn := &Conn{
		name:   name,
		client: client,
		store:  store,
		cancel: cancel,
		done:   make(chan error, 1),
	}

	ready := make(chan struct{})
	go func() {
		conn.done <- client.Run(runCtx, func(runCtx context.Context) error {
			close(ready)
			<-runCtx.Done()
			return runCtx.Err()
		})
	}()

	if err = conn.waitReady(ctx, ready); err != nil {
		conn.shutdown()
		return nil, errs.Wrapf(errs.KindInternal, err, "connect account %s", name)
	}

	status, err := client.Auth().Status(ctx)
	if err != nil {
		conn.shutdown()
		return nil, errs.FromTelegram(err)
	}
	if !status.Authorized {
		conn.shutdown()
		return nil, errs.Errorf(errs.KindUnauthorized, "account %s: session is not authorized", name)
	}

	if err = o.attachPeers(ctx, conn); err != nil {
		conn.shutdown()
		return nil, err
	}

	logger.Infof("account %s connected", name)
	return conn, nil
}

// attachPeers открывает дисковый кэш пиров аккаунта и прогревает его.
func (o *Opener) attachPeers(ctx context.Context, conn *Conn) error {
	path, err := o.peersCachePath(conn.name)
	if err != nil {
		return err
	}
	cache, err := peerscache.New(conn.client.API(), path)
	if err != nil {
		return errs.Wrapf(errs.KindInternal, err, "open peers cache for %s", conn.name)
	}
	if warmErr := cache.WarmFromDisk(ctx); warmErr != nil {
		logger.Warnf("account %s: warm peers cache: %v", conn.name, warmErr)
	}
	conn.peers = cache
	return nil
}

// peersCachePath возвращает путь к файлу кэша пиров аккаунта, создавая
// каталог кэша при необходимости. EnsureDir принимает путь к файлу, поэтому
// каталог передаётся уже со вложенным именем db-файла.
func (o *Opener) peersCachePath(name string) (string, error) {
	path := filepath.Join(o.peersDir, name+peersCacheExt)
	if err := storage.EnsureDir(path); err != nil {
		return "", errs.Wrap(errs.KindInternal, err, "prepare peers cache dir")
	}
	return path, nil
}

// options собирает единые telegram.Options для клиентов сервиса.
func (o *Opener) options(store tdsession.Storage) telegram.Options {
	opts := telegram.Options{
		SessionStorage: store,
		Middlewares: []telegram.Middleware{
			ratelimit.New(
				rate.Limit(o.rps),
				o.rps*2, //nolint:mnd // burst = 2*rate
			),
		},
		Device: telegram.DeviceConfig{
			DeviceModel:   deviceModel,
			SystemVersion: runtime.GOOS,
			AppVersion:    appVersion,
		},
	}
	// Для тестовых окружений используем DC тестового стенда Telegram.
	if o.testDC {
		opts.DCList = dcs.Test()
	}
	return opts
}

// API возвращает низкоуровневый RPC-клиент соединения.
func (c *Conn) API() *tg.Client {
	return c.client.API()
}

// Peers возвращает кэш пиров аккаунта.
func (c *Conn) Peers() *peerscache.Cache {
	return c.peers
}

// SessionString сериализует текущую сессию соединения в переносимый формат.
func (c *Conn) SessionString(ctx context.Context) (string, error) {
	encoded, err := sessions.Export(ctx, c.store)
	if err != nil {
		return "", errors.Wrap(err, "export session")
	}
	return encoded, nil
}

// Close останавливает фоновый client.Run и закрывает кэш пиров.
// Повторные вызовы безопасны.
func (c *Conn) Close() error {
	c.shutdown()
	if c.peers != nil {
		if err := c.peers.Close(); err != nil {
			return fmt.Errorf("close peers cache: %w", err)
		}
	}
	return nil
}

func (c *Conn) shutdown() {
	c.stopOnce.Do(func() {
		c.cancel()
		select {
		case <-c.done:
		case <-time.After(stopTimeout):
			logger.Warnf("account %s: client did not stop within %s", c.name, stopTimeout)
		}
	})
}

// waitReady ждёт сигнала готовности клиента либо ранней ошибки client.Run.
func (c *Conn) waitReady(ctx context.Context, ready <-chan struct{}) error {
	timer := time.NewTimer(connectTimeout)
	defer timer.Stop()
	select {
	case <-ready:
		return nil
	case err := <-c.done:
		if err == nil {
			err = errors.New("client stopped before becoming ready")
		}
		// Возвращаем результат в канал, чтобы shutdown не ждал его впустую.
		c.done <- err
		return err
	case <-timer.C:
		return errors.New("connect timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}
