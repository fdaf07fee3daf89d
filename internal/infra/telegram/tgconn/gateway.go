package tgconn

import (
	"context"

	"github.com/go-faster/errors"
	tdsession "github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"

	"telegram-accounts/internal/domain/errs"
	"telegram-accounts/internal/infra/sessions"
)

// Gateway выполняет шаги интерактивного входа по номеру телефона.
// Каждый шаг поднимает короткоживущий клиент: состояние незавершённой сессии
// переносится между шагами сырыми байтами session storage.
type Gateway struct {
	opener *Opener
}

// NewGateway собирает шлюз входа поверх общей фабрики подключений.
func NewGateway(opener *Opener) *Gateway {
	return &Gateway{opener: opener}
}

// StartLogin отправляет код подтверждения на номер phone. Возвращает
// phone_code_hash и снимок состояния сессии для последующих шагов.
func (g *Gateway) StartLogin(ctx context.Context, phone string) (codeHash string, state []byte, err error) {
	state, err = g.withTempClient(ctx, nil, func(ctx context.Context, client *telegram.Client) error {
		sent, sendErr := client.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
		if sendErr != nil {
			return errs.FromTelegram(sendErr)
		}
		code, ok := sent.(*tg.AuthSentCode)
		if !ok {
			return errs.Errorf(errs.KindInternal, "unexpected sent code response: %T", sent)
		}
		codeHash = code.PhoneCodeHash
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return codeHash, state, nil
}

// SignIn подтверждает код. Если аккаунт защищён облачным паролем, возвращает
// needs2FA=true и обновлённое состояние для шага с паролем.
func (g *Gateway) SignIn(ctx context.Context, state []byte, phone, codeHash, code string) (credential string, newState []byte, needs2FA bool, err error) {
	newState, err = g.withTempClient(ctx, state, func(ctx context.Context, client *telegram.Client) error {
		if _, signErr := client.Auth().SignIn(ctx, phone, code, codeHash); signErr != nil {
			if errors.Is(signErr, auth.ErrPasswordAuthNeeded) {
				needs2FA = true
				return nil
			}
			return errs.FromTelegram(signErr)
		}
		return nil
	})
	if err != nil {
		return "", nil, false, err
	}
	if needs2FA {
		return "", newState, true, nil
	}
	credential, err = encodeState(ctx, newState)
	if err != nil {
		return "", nil, false, err
	}
	return credential, nil, false, nil
}

// SignInPassword завершает вход облачным паролем (2FA).
func (g *Gateway) SignInPassword(ctx context.Context, state []byte, password string) (string, error) {
	newState, err := g.withTempClient(ctx, state, func(ctx context.Context, client *telegram.Client) error {
		if _, passErr := client.Auth().Password(ctx, password); passErr != nil {
			return errs.FromTelegram(passErr)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return encodeState(ctx, newState)
}

// withTempClient поднимает клиент на время одного шага входа. Состояние
// сессии подгружается из state и возвращается обновлённым после шага.
func (g *Gateway) withTempClient(ctx context.Context, state []byte, fn func(context.Context, *telegram.Client) error) ([]byte, error) {
	if g.opener.apiID == 0 || g.opener.apiHash == "" {
		return nil, errs.E(errs.KindConfig, "TG_API_ID and TG_API_HASH must be set")
	}

	store := &tdsession.StorageMemory{}
	if len(state) > 0 {
		if err := store.StoreSession(ctx, state); err != nil {
			return nil, errs.Wrap(errs.KindInternal, err, "restore login state")
		}
	}

	client := telegram.NewClient(g.opener.apiID, g.opener.apiHash, g.opener.options(store))
	if err := client.Run(ctx, func(ctx context.Context) error {
		return fn(ctx, client)
	}); err != nil {
		return nil, err
	}

	newState, err := store.LoadSession(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "snapshot login state")
	}
	return newState, nil
}

// encodeState сериализует снимок сессии в переносимый формат учётных данных.
func encodeState(ctx context.Context, state []byte) (string, error) {
	store := &tdsession.StorageMemory{}
	if err := store.StoreSession(ctx, state); err != nil {
		return "", errs.Wrap(errs.KindInternal, err, "restore authorized state")
	}
	credential, err := sessions.Export(ctx, store)
	if err != nil {
		return "", errs.Wrap(errs.KindInternal, err, "encode session")
	}
	return credential, nil
}
