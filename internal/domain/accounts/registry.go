// Package accounts — реестр подключённых Telegram-аккаунтов. Хранит
// учётные данные сессий и лениво поднимает подключения через Opener.
// Доменный слой: о gotd знает только через интерфейсы Conn и Opener.
package accounts

import (
	"context"
	"sort"
	"sync"

	"telegram-accounts/internal/domain/errs"
	"telegram-accounts/internal/infra/logger"
)

// Conn — минимальный контракт живого подключения аккаунта.
type Conn interface {
	SessionString(ctx context.Context) (string, error)
	Close() error
}

// Opener поднимает подключение по имени аккаунта и сериализованной сессии.
type Opener interface {
	Open(ctx context.Context, name, credential string) (Conn, error)
}

// Registry — потокобезопасный реестр аккаунтов. Учётные данные и живые
// подключения разделены: аккаунт может быть известен, но ещё не подключён.
type Registry struct {
	opener Opener

	mu    sync.Mutex
	creds map[string]string
	conns map[string]Conn
	locks map[string]*sync.Mutex // сериализация подключения per-name
}

// NewRegistry собирает реестр поверх фабрики подключений. creds может быть
// nil: аккаунты добавляются и позже, через Add и Adopt.
func NewRegistry(opener Opener, creds map[string]string) *Registry {
	known := make(map[string]string, len(creds))
	for name, credential := range creds {
		known[name] = credential
	}
	return &Registry{
		opener: opener,
		creds:  known,
		conns:  make(map[string]Conn),
		locks:  make(map[string]*sync.Mutex),
	}
}

// Names возвращает отсортированный список известных аккаунтов.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.creds))
	for name := range r.creds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Active возвращает отсортированные имена аккаунтов с живым подключением.
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.conns))
	for name := range r.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Conn возвращает живое подключение аккаунта, поднимая его при
// необходимости. Неизвестное имя — ошибка KindAccountNotFound.
func (r *Registry) Conn(ctx context.Context, name string) (Conn, error) {
	return r.ensure(ctx, name)
}

// EnsureStarted поднимает подключение аккаунта, если его ещё нет.
func (r *Registry) EnsureStarted(ctx context.Context, name string) error {
	_, err := r.ensure(ctx, name)
	return err
}

// ensure реализует ленивое подключение: глобальный мьютекс берётся только на
// чтение карт, само подключение идёт под пер-аккаунтным замком, чтобы два
// конкурентных запроса не подняли два клиента на одну сессию.
func (r *Registry) ensure(ctx context.Context, name string) (Conn, error) {
	r.mu.Lock()
	if conn, ok := r.conns[name]; ok {
		r.mu.Unlock()
		return conn, nil
	}
	credential, known := r.creds[name]
	if !known {
		r.mu.Unlock()
		return nil, errs.Errorf(errs.KindAccountNotFound, "account %s not found", name)
	}
	lock, ok := r.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[name] = lock
	}
	r.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	// Пока ждали замок, кто-то мог подключить аккаунт или удалить его.
	r.mu.Lock()
	if conn, ok := r.conns[name]; ok {
		r.mu.Unlock()
		return conn, nil
	}
	credential, known = r.creds[name]
	r.mu.Unlock()
	if !known {
		return nil, errs.Errorf(errs.KindAccountNotFound, "account %s not found", name)
	}

	conn, err := r.opener.Open(ctx, name, credential)
	if err != nil {
		return nil, err
	}

	// Библиотека могла обновить ключи при подключении (миграция DC);
	// сохраняем актуальную строку сессии.
	refreshed, exportErr := conn.SessionString(ctx)

	r.mu.Lock()
	r.conns[name] = conn
	if exportErr == nil && refreshed != "" {
		r.creds[name] = refreshed
	}
	r.mu.Unlock()
	return conn, nil
}

// Add регистрирует аккаунт по готовой сессии и сразу проверяет её,
// поднимая подключение. Повторное добавление уже подключённого имени —
// безвредный no-op.
func (r *Registry) Add(ctx context.Context, name, credential string) error {
	r.mu.Lock()
	if _, connected := r.conns[name]; connected {
		r.mu.Unlock()
		logger.Infof("account %s already connected, add is a no-op", name)
		return nil
	}
	previous, existed := r.creds[name]
	r.creds[name] = credential
	r.mu.Unlock()

	if err := r.EnsureStarted(ctx, name); err != nil {
		// Отклонённая сессия не должна оставить имя зарегистрированным.
		r.mu.Lock()
		if existed {
			r.creds[name] = previous
		} else {
			delete(r.creds, name)
			delete(r.locks, name)
		}
		r.mu.Unlock()
		return err
	}
	return nil
}

// Adopt принимает уже открытое подключение (результат завершённого входа).
// Прежнее подключение с тем же именем закрывается.
func (r *Registry) Adopt(name, credential string, conn Conn) {
	r.mu.Lock()
	previous := r.conns[name]
	r.creds[name] = credential
	r.conns[name] = conn
	r.mu.Unlock()

	if previous != nil {
		if err := previous.Close(); err != nil {
			logger.Warnf("account %s: close replaced connection: %v", name, err)
		}
	}
}

// Remove отключает аккаунт и забывает его учётные данные. Идемпотентна:
// удаление неизвестного имени не считается ошибкой.
func (r *Registry) Remove(name string) (removed bool) {
	r.mu.Lock()
	conn := r.conns[name]
	_, known := r.creds[name]
	delete(r.conns, name)
	delete(r.creds, name)
	delete(r.locks, name)
	r.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Warnf("account %s: close on remove: %v", name, err)
		}
	}
	return known
}

// Credential возвращает сохранённые учётные данные аккаунта.
func (r *Registry) Credential(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	credential, ok := r.creds[name]
	return credential, ok
}

// Close отключает все аккаунты. Вызывается при остановке сервиса.
func (r *Registry) Close() {
	r.mu.Lock()
	conns := make(map[string]Conn, len(r.conns))
	for name, conn := range r.conns {
		conns[name] = conn
	}
	r.conns = make(map[string]Conn)
	r.mu.Unlock()

	for name, conn := range conns {
		if err := conn.Close(); err != nil {
			logger.Warnf("account %s: close: %v", name, err)
		}
	}
}
