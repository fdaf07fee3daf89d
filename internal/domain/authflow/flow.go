// Package authflow — конечный автомат интерактивного входа по номеру
// телефона: отправка кода, подтверждение кода, облачный пароль (2FA).
// Незавершённые входы живут в памяти с TTL и не переживают рестарт.
package authflow

import (
	"context"
	"strings"
	"sync"
	"time"

	"telegram-accounts/internal/domain/errs"
	"telegram-accounts/internal/infra/logger"
)

// Gateway выполняет сетевые шаги входа. Реализация — tgconn.Gateway.
type Gateway interface {
	StartLogin(ctx context.Context, phone string) (codeHash string, state []byte, err error)
	SignIn(ctx context.Context, state []byte, phone, codeHash, code string) (credential string, newState []byte, needs2FA bool, err error)
	SignInPassword(ctx context.Context, state []byte, password string) (credential string, err error)
}

// Promoter активирует аккаунт по завершённому входу. Реализация —
// accounts.Registry.
type Promoter interface {
	Add(ctx context.Context, name, credential string) error
}

// Outcome — результат шага подтверждения.
type Outcome struct {
	// Account заполнен, когда вход завершён и аккаунт активирован.
	Account string
	// Credential — сериализованная сессия завершённого входа.
	Credential string
	// Needs2FA выставлен, когда код принят, но требуется облачный пароль.
	Needs2FA bool
}

// pending — состояние одного незавершённого входа, ключ — номер телефона.
type pending struct {
	name     string
	codeHash string
	state    []byte
	needs2FA bool
	started  time.Time
}

// Flow хранит незавершённые входы и проводит их через шаги шлюза.
type Flow struct {
	gw       Gateway
	promoter Promoter
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	pending map[string]*pending
}

// New собирает автомат входа. ttl ограничивает жизнь незавершённого входа.
func New(gw Gateway, promoter Promoter, ttl time.Duration) *Flow {
	return &Flow{
		gw:       gw,
		promoter: promoter,
		ttl:      ttl,
		now:      time.Now,
		pending:  make(map[string]*pending),
	}
}

// SetClock подменяет источник времени. Нужен тестам истечения TTL.
func (f *Flow) SetClock(now func() time.Time) {
	f.now = now
}

// Start отправляет код подтверждения на номер phone. name — желаемое имя
// аккаунта, может быть пустым. Повторный Start по тому же номеру заменяет
// предыдущий незавершённый вход.
func (f *Flow) Start(ctx context.Context, phone, name string) error {
	normalized, err := normalizePhone(phone)
	if err != nil {
		return err
	}

	codeHash, state, err := f.gw.StartLogin(ctx, normalized)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.sweepLocked()
	f.pending[normalized] = &pending{
		name:     strings.TrimSpace(name),
		codeHash: codeHash,
		state:    state,
		started:  f.now(),
	}
	f.mu.Unlock()

	logger.Infof("login started for phone %s", maskPhone(normalized))
	return nil
}

// ConfirmCode подтверждает код из SMS или приложения Telegram. При включённой
// 2FA возвращает Outcome{Needs2FA: true}, и вход ждёт ConfirmPassword.
// Неверный код не сбрасывает незавершённый вход.
func (f *Flow) ConfirmCode(ctx context.Context, phone, code, nameOverride string) (Outcome, error) {
	normalized, err := normalizePhone(phone)
	if err != nil {
		return Outcome{}, err
	}

	record, err := f.lookup(normalized)
	if err != nil {
		return Outcome{}, err
	}
	if record.needs2FA {
		return Outcome{}, errs.Errorf(errs.KindFlowState, "phone %s is waiting for the 2FA password", maskPhone(normalized))
	}

	credential, newState, needs2FA, err := f.gw.SignIn(ctx, record.state, normalized, record.codeHash, code)
	if err != nil {
		return Outcome{}, err
	}

	if needs2FA {
		f.mu.Lock()
		record.needs2FA = true
		record.state = newState
		f.mu.Unlock()
		return Outcome{Needs2FA: true}, nil
	}

	return f.finish(ctx, normalized, record, nameOverride, credential)
}

// ConfirmPassword завершает вход облачным паролем. Допустим только после
// того, как ConfirmCode сообщил о необходимости 2FA.
func (f *Flow) ConfirmPassword(ctx context.Context, phone, password, nameOverride string) (Outcome, error) {
	normalized, err := normalizePhone(phone)
	if err != nil {
		return Outcome{}, err
	}

	record, err := f.lookup(normalized)
	if err != nil {
		return Outcome{}, err
	}
	if !record.needs2FA {
		return Outcome{}, errs.Errorf(errs.KindFlowState, "phone %s has not confirmed the code yet", maskPhone(normalized))
	}

	credential, err := f.gw.SignInPassword(ctx, record.state, password)
	if err != nil {
		return Outcome{}, err
	}

	return f.finish(ctx, normalized, record, nameOverride, credential)
}

// finish активирует аккаунт и забывает незавершённый вход.
func (f *Flow) finish(ctx context.Context, phone string, record *pending, nameOverride, credential string) (Outcome, error) {
	name := resolveName(nameOverride, record.name, phone)
	if err := f.promoter.Add(ctx, name, credential); err != nil {
		return Outcome{}, err
	}

	f.mu.Lock()
	delete(f.pending, phone)
	f.mu.Unlock()

	logger.Infof("login finished, account %s activated", name)
	return Outcome{Account: name, Credential: credential}, nil
}

// lookup достаёт незавершённый вход, отбрасывая просроченные записи.
func (f *Flow) lookup(phone string) (*pending, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	record, ok := f.pending[phone]
	if !ok {
		return nil, errs.Errorf(errs.KindFlowState, "no pending login for phone %s", maskPhone(phone))
	}
	if f.expiredLocked(record) {
		delete(f.pending, phone)
		return nil, errs.Errorf(errs.KindFlowState, "pending login for phone %s expired, start again", maskPhone(phone))
	}
	return record, nil
}

func (f *Flow) sweepLocked() {
	for phone, record := range f.pending {
		if f.expiredLocked(record) {
			delete(f.pending, phone)
		}
	}
}

func (f *Flow) expiredLocked(record *pending) bool {
	return f.ttl > 0 && f.now().Sub(record.started) > f.ttl
}

// resolveName выбирает имя аккаунта: явное имя шага подтверждения, затем имя
// из Start, затем сам номер телефона.
func resolveName(override, started, phone string) string {
	if name := strings.TrimSpace(override); name != "" {
		return name
	}
	if started != "" {
		return started
	}
	return phone
}

// normalizePhone приводит номер к виду "+digits".
func normalizePhone(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	cleaned = strings.TrimPrefix(cleaned, "+")
	if cleaned == "" {
		return "", errs.E(errs.KindInvalidPhone, "phone number is empty")
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", errs.Errorf(errs.KindInvalidPhone, "phone number %q contains non-digits", raw)
		}
	}
	return "+" + cleaned, nil
}

// maskPhone прячет середину номера в логах и сообщениях об ошибках.
func maskPhone(phone string) string {
	if len(phone) <= 5 {
		return phone
	}
	return phone[:3] + strings.Repeat("*", len(phone)-5) + phone[len(phone)-2:]
}
