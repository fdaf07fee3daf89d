package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"telegram-accounts/internal/domain/errs"
	"telegram-accounts/internal/domain/target"
)

// dialogsRequest — тело POST /dialogs.
type dialogsRequest struct {
	Account string `json:"account" validate:"required"`
	Limit   int    `json:"limit"`
}

// exportMembersRequest — тело POST /export_members. Цель задаётся полем
// group либо chat_id, каждое принимает число или строку.
type exportMembersRequest struct {
	Account string     `json:"account" validate:"required"`
	Group   target.Ref `json:"group"`
	ChatID  target.Ref `json:"chat_id"`
	Limit   int        `json:"limit"`
	Offset  int        `json:"offset"`
}

// targetRef выбирает цель запроса: group имеет приоритет над chat_id.
func (r *exportMembersRequest) targetRef() (target.Ref, error) {
	if !r.Group.IsZero() {
		return r.Group, nil
	}
	if !r.ChatID.IsZero() {
		return r.ChatID, nil
	}
	return target.Ref{}, errs.E(errs.KindMissingTarget, "either group or chat_id is required")
}

// sendMessageRequest — тело POST /send_message.
type sendMessageRequest struct {
	Account string     `json:"account" validate:"required"`
	ChatID  target.Ref `json:"chat_id"`
	Text    string     `json:"text" validate:"required"`
}

// addAccountRequest — тело POST /add_account.
type addAccountRequest struct {
	Name          string `json:"name" validate:"required"`
	SessionString string `json:"session_string" validate:"required"`
}

// removeAccountRequest — тело POST /remove_account.
type removeAccountRequest struct {
	Name string `json:"name" validate:"required"`
}

// authStartRequest — тело POST /auth/start.
type authStartRequest struct {
	Phone string `json:"phone" validate:"required"`
	Name  string `json:"name"`
}

// authConfirmRequest — тело POST /auth/confirm.
type authConfirmRequest struct {
	Phone string `json:"phone" validate:"required"`
	Code  string `json:"code" validate:"required"`
	Name  string `json:"name"`
}

// authConfirm2FARequest — тело POST /auth/confirm_2fa.
type authConfirm2FARequest struct {
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name"`
}

// decodeAndValidate разбирает JSON-тело запроса и прогоняет валидацию полей.
// Ошибки разбора отдаются клиенту как 400 до обращения к сервисам.
func decodeAndValidate(r *http.Request, validate *validator.Validate, dst any) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("malformed request body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}
