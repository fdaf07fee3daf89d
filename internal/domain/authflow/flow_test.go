package authflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"telegram-accounts/internal/domain/authflow"
	"telegram-accounts/internal/domain/errs"
)

type fakeGateway struct {
	needs2FA  bool
	code      string
	password  string
	startErr  error
	signInErr error
}

func (g *fakeGateway) StartLogin(_ context.Context, phone string) (string, []byte, error) {
	if g.startErr != nil {
		return "", nil, g.startErr
	}
	return "hash-" + phone, []byte("state:" + phone), nil
}

func (g *fakeGateway) SignIn(_ context.Context, state []byte, phone, codeHash, code string) (string, []byte, bool, error) {
	if g.signInErr != nil {
		return "", nil, false, g.signInErr
	}
	if codeHash != "hash-"+phone || string(state) != "state:"+phone {
		return "", nil, false, errs.E(errs.KindInternal, "gateway got inconsistent login state")
	}
	if code != g.code {
		return "", nil, false, errs.E(errs.KindInvalidCode, "PHONE_CODE_INVALID")
	}
	if g.needs2FA {
		return "", []byte("state2:" + phone), true, nil
	}
	return "cred:" + phone, nil, false, nil
}

func (g *fakeGateway) SignInPassword(_ context.Context, state []byte, password string) (string, error) {
	if string(state) == "" {
		return "", errs.E(errs.KindInternal, "gateway got empty 2FA state")
	}
	if password != g.password {
		return "", errs.E(errs.KindInvalidCode, "PASSWORD_HASH_INVALID")
	}
	return "cred-2fa", nil
}

type fakePromoter struct {
	mu    sync.Mutex
	added map[string]string
}

func newFakePromoter() *fakePromoter {
	return &fakePromoter{added: make(map[string]string)}
}

func (p *fakePromoter) Add(_ context.Context, name, credential string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.added[name] = credential
	return nil
}

func (p *fakePromoter) credential(name string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	credential, ok := p.added[name]
	return credential, ok
}

func TestFlowHappyPathWithoutPassword(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{code: "12345"}
	promoter := newFakePromoter()
	flow := authflow.New(gw, promoter, time.Minute)
	ctx := context.Background()

	if err := flow.Start(ctx, "+7 999 123-45-67", "work"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Номер на шаге подтверждения может быть в другом написании.
	outcome, err := flow.ConfirmCode(ctx, "+79991234567", "12345", "")
	if err != nil {
		t.Fatalf("ConfirmCode: %v", err)
	}
	if outcome.Needs2FA {
		t.Fatal("did not expect a 2FA step")
	}
	if outcome.Account != "work" {
		t.Fatalf("expected account name from Start, got %q", outcome.Account)
	}
	if credential, ok := promoter.credential("work"); !ok || credential != "cred:+79991234567" {
		t.Fatalf("account was not promoted: %q %v", credential, ok)
	}

	// Вход завершён, повторное подтверждение — ошибка состояния.
	if _, err = flow.ConfirmCode(ctx, "+79991234567", "12345", ""); errs.KindOf(err) != errs.KindFlowState {
		t.Fatalf("expected KindFlowState after finish, got %v", err)
	}
}

func TestFlowTwoFA(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{code: "54321", needs2FA: true, password: "hunter2"}
	promoter := newFakePromoter()
	flow := authflow.New(gw, promoter, time.Minute)
	ctx := context.Background()

	if err := flow.Start(ctx, "+15550001122", ""); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Пароль до кода — ошибка состояния.
	if _, err := flow.ConfirmPassword(ctx, "+15550001122", "hunter2", ""); errs.KindOf(err) != errs.KindFlowState {
		t.Fatalf("expected KindFlowState before code, got %v", err)
	}

	outcome, err := flow.ConfirmCode(ctx, "+15550001122", "54321", "")
	if err != nil {
		t.Fatalf("ConfirmCode: %v", err)
	}
	if !outcome.Needs2FA {
		t.Fatal("expected a 2FA step")
	}

	// Код после кода — снова ошибка состояния.
	if _, err = flow.ConfirmCode(ctx, "+15550001122", "54321", ""); errs.KindOf(err) != errs.KindFlowState {
		t.Fatalf("expected KindFlowState while waiting for password, got %v", err)
	}

	// Неверный пароль не сбрасывает вход.
	if _, err = flow.ConfirmPassword(ctx, "+15550001122", "wrong", ""); errs.KindOf(err) != errs.KindInvalidCode {
		t.Fatalf("expected KindInvalidCode, got %v", err)
	}

	outcome, err = flow.ConfirmPassword(ctx, "+15550001122", "hunter2", "personal")
	if err != nil {
		t.Fatalf("ConfirmPassword: %v", err)
	}
	if outcome.Account != "personal" {
		t.Fatalf("expected override name, got %q", outcome.Account)
	}
	if credential, ok := promoter.credential("personal"); !ok || credential != "cred-2fa" {
		t.Fatalf("account was not promoted: %q %v", credential, ok)
	}
}

func TestFlowInvalidCodeKeepsPending(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{code: "00000"}
	promoter := newFakePromoter()
	flow := authflow.New(gw, promoter, time.Minute)
	ctx := context.Background()

	if err := flow.Start(ctx, "+15550003344", ""); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := flow.ConfirmCode(ctx, "+15550003344", "99999", ""); errs.KindOf(err) != errs.KindInvalidCode {
		t.Fatalf("expected KindInvalidCode, got %v", err)
	}

	outcome, err := flow.ConfirmCode(ctx, "+15550003344", "00000", "")
	if err != nil {
		t.Fatalf("retry after invalid code: %v", err)
	}
	// Имя не задано ни в Start, ни на подтверждении: используется номер.
	if outcome.Account != "+15550003344" {
		t.Fatalf("expected phone as account name, got %q", outcome.Account)
	}
}

func TestFlowPendingExpires(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{code: "11111"}
	flow := authflow.New(gw, newFakePromoter(), 10*time.Minute)
	current := time.Unix(1_700_000_000, 0)
	flow.SetClock(func() time.Time { return current })
	ctx := context.Background()

	if err := flow.Start(ctx, "+15550005566", ""); err != nil {
		t.Fatalf("Start: %v", err)
	}

	current = current.Add(11 * time.Minute)
	if _, err := flow.ConfirmCode(ctx, "+15550005566", "11111", ""); errs.KindOf(err) != errs.KindFlowState {
		t.Fatalf("expected KindFlowState for expired login, got %v", err)
	}
}

func TestFlowRejectsBadPhones(t *testing.T) {
	t.Parallel()

	flow := authflow.New(&fakeGateway{}, newFakePromoter(), time.Minute)
	ctx := context.Background()

	for _, phone := range []string{"", "   ", "+7abc", "phone"} {
		if err := flow.Start(ctx, phone, ""); errs.KindOf(err) != errs.KindInvalidPhone {
			t.Fatalf("phone %q: expected KindInvalidPhone, got %v", phone, err)
		}
	}
}
