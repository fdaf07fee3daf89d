// Package errs — закрытая классификация ошибок сервиса.
// Вместо широкого catch-all каждая ошибка внешнего Telegram-слоя приводится
// к одному из известных видов ровно один раз, на границе адаптера; HTTP-слой
// отображает вид в статус детерминированно.
package errs

import (
	"errors"
	"fmt"
	"time"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tgerr"
)

// Kind перечисляет виды ошибок, различимые вызывающей стороной.
type Kind int

const (
	// KindInternal — неклассифицированный сбой внешней библиотеки или логики.
	KindInternal Kind = iota
	// KindConfig — не заданы TG_API_ID/TG_API_HASH или нет ни одной сессии.
	KindConfig
	// KindUnauthorized — строка сессии не авторизует соединение.
	KindUnauthorized
	// KindAccountNotFound — запрошен неизвестный аккаунт.
	KindAccountNotFound
	// KindMissingTarget — не передан ни group, ни chat_id.
	KindMissingTarget
	// KindPeerNotFound — цель не резолвится ни в одну известную сущность.
	KindPeerNotFound
	// KindInvalidPhone — Telegram отверг номер телефона.
	KindInvalidPhone
	// KindInvalidCode — код подтверждения неверен или истёк.
	KindInvalidCode
	// KindFlowState — шаг логина вызван вне допустимого состояния
	// (start не вызывался, 2FA не ожидается, запись устарела).
	KindFlowState
	// KindTwoFARequired — аккаунту нужен второй фактор; служебный вид,
	// наружу он превращается в ответ needs_2fa, а не в ошибку.
	KindTwoFARequired
	// KindPrivacy — список участников скрыт настройками видимости.
	KindPrivacy
	// KindFloodWait — Telegram требует обязательную паузу; Wait несёт её длительность.
	KindFloodWait
	// KindInvalidArgument — прочее невалидное поле запроса (пустой текст сообщения).
	KindInvalidArgument
)

// Error — ошибка сервиса с видом и, для FLOOD_WAIT, обязательной паузой.
type Error struct {
	Kind Kind
	Msg  string
	Wait time.Duration
	Err  error
}

// Error реализует error.
func (e *Error) Error() string {
	if e.Err != nil && e.Msg != "" {
		return e.Msg + ": " + e.Err.Error()
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Msg
}

// Unwrap раскрывает вложенную ошибку для errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

// E создаёт ошибку заданного вида с готовым сообщением.
func E(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Errorf создаёт ошибку заданного вида с форматированием.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap оборачивает err в ошибку заданного вида, сохраняя цепочку.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Wrapf — Wrap с форматированием сообщения.
func Wrapf(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf возвращает вид ошибки; для неклассифицированных — KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// FloodWaitOf извлекает обязательную паузу из ошибки вида KindFloodWait.
func FloodWaitOf(err error) (time.Duration, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindFloodWait {
		return e.Wait, true
	}
	return 0, false
}

// FromTelegram классифицирует ошибку RPC-слоя gotd. Возвращает *Error с
// подходящим видом; уже классифицированные ошибки проходят насквозь.
// Контекстные отмены не переозначиваются.
func FromTelegram(err error) error {
	if err == nil {
		return nil
	}
	var already *Error
	if errors.As(err, &already) {
		return err
	}

	// FLOOD_WAIT / FLOOD_PREMIUM_WAIT несут обязательную паузу.
	if wait, ok := tgerr.AsFloodWait(err); ok {
		return &Error{
			Kind: KindFloodWait,
			Msg:  fmt.Sprintf("FloodWait: wait %d seconds", int(wait.Seconds())),
			Wait: wait,
			Err:  err,
		}
	}

	if errors.Is(err, auth.ErrPasswordAuthNeeded) {
		return &Error{Kind: KindTwoFARequired, Msg: "2FA password required", Err: err}
	}

	switch {
	case tgerr.Is(err, "PHONE_NUMBER_INVALID", "PHONE_NUMBER_BANNED"):
		return &Error{Kind: KindInvalidPhone, Msg: "invalid phone number", Err: err}
	case tgerr.Is(err, "PHONE_CODE_INVALID", "PHONE_CODE_EXPIRED", "PHONE_CODE_EMPTY"):
		return &Error{Kind: KindInvalidCode, Msg: "invalid or expired code", Err: err}
	case tgerr.Is(err, "SESSION_PASSWORD_NEEDED"):
		return &Error{Kind: KindTwoFARequired, Msg: "2FA password required", Err: err}
	case tgerr.Is(err, "PASSWORD_HASH_INVALID"):
		return &Error{Kind: KindInvalidCode, Msg: "invalid 2FA password", Err: err}
	case tgerr.Is(err, "AUTH_KEY_UNREGISTERED", "SESSION_REVOKED", "SESSION_EXPIRED", "USER_DEACTIVATED"):
		return &Error{Kind: KindUnauthorized, Msg: "session is not authorized", Err: err}
	case tgerr.Is(err, "CHAT_ADMIN_REQUIRED", "CHANNEL_PRIVATE"):
		return &Error{Kind: KindPrivacy, Msg: "members list is not accessible", Err: err}
	case tgerr.Is(err, "USERNAME_NOT_OCCUPIED", "USERNAME_INVALID",
		"PEER_ID_INVALID", "CHANNEL_INVALID", "CHAT_ID_INVALID", "MSG_ID_INVALID"):
		return &Error{Kind: KindPeerNotFound, Msg: "target not found", Err: err}
	}

	return &Error{Kind: KindInternal, Err: err}
}
