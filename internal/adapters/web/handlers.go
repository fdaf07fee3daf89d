package web

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"

	"telegram-accounts/internal/adapters/telegram/tgops"
	"telegram-accounts/internal/domain/authflow"
	"telegram-accounts/internal/domain/target"
)

// AccountService — операции над аккаунтами и Telegram от их имени.
// Реализация — tgops.Service.
type AccountService interface {
	Accounts() (names, active []string)
	AddAccount(ctx context.Context, name, credential string) error
	RemoveAccount(name string) bool
	Dialogs(ctx context.Context, account string, limit int) ([]tgops.Dialog, error)
	ExportMembers(ctx context.Context, account string, ref target.Ref, offset, limit int) ([]tgops.Member, error)
	SendMessage(ctx context.Context, account string, ref target.Ref, text string) error
}

// LoginService — шаги входа по номеру телефона. Реализация — authflow.Flow.
type LoginService interface {
	Start(ctx context.Context, phone, name string) error
	ConfirmCode(ctx context.Context, phone, code, nameOverride string) (authflow.Outcome, error)
	ConfirmPassword(ctx context.Context, phone, password, nameOverride string) (authflow.Outcome, error)
}

// Handlers связывает HTTP-маршруты с сервисами.
type Handlers struct {
	svc        AccountService
	login      LoginService
	validate   *validator.Validate
	apiIDSet   bool
	apiHashSet bool
}

// NewHandlers собирает набор обработчиков. Флаги api*Set попадают в /health,
// чтобы незаполненные TG_API_ID/TG_API_HASH были видны без чтения логов.
func NewHandlers(svc AccountService, login LoginService, apiIDSet, apiHashSet bool) *Handlers {
	return &Handlers{
		svc:        svc,
		login:      login,
		validate:   validator.New(),
		apiIDSet:   apiIDSet,
		apiHashSet: apiHashSet,
	}
}

// Health — GET /health.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	names, active := h.svc.Accounts()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":              true,
		"accounts_loaded": names,
		"active":          active,
		"api_id_set":      h.apiIDSet,
		"api_hash_set":    h.apiHashSet,
	})
}

// Accounts — GET /accounts.
func (h *Handlers) Accounts(w http.ResponseWriter, _ *http.Request) {
	names, active := h.svc.Accounts()
	writeJSON(w, http.StatusOK, map[string]any{
		"accounts": names,
		"active":   active,
	})
}

// Dialogs — POST /dialogs.
func (h *Handlers) Dialogs(w http.ResponseWriter, r *http.Request) {
	var req dialogsRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	dialogs, err := h.svc.Dialogs(r.Context(), req.Account, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if dialogs == nil {
		dialogs = []tgops.Dialog{}
	}
	writeJSON(w, http.StatusOK, dialogs)
}

// ExportMembers — POST /export_members. Отсутствие цели отклоняется до
// обращения к реестру аккаунтов.
func (h *Handlers) ExportMembers(w http.ResponseWriter, r *http.Request) {
	var req exportMembersRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	ref, err := req.targetRef()
	if err != nil {
		writeError(w, err)
		return
	}

	members, err := h.svc.ExportMembers(r.Context(), req.Account, ref, req.Offset, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if members == nil {
		members = []tgops.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

// SendMessage — POST /send_message.
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	if err := h.svc.SendMessage(r.Context(), req.Account, req.ChatID, req.Text); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// AddAccount — POST /add_account. Сессия проверяется подключением.
func (h *Handlers) AddAccount(w http.ResponseWriter, r *http.Request) {
	var req addAccountRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	if err := h.svc.AddAccount(r.Context(), req.Name, req.SessionString); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"message": "account " + req.Name + " connected",
	})
}

// RemoveAccount — POST /remove_account. Идемпотентен.
func (h *Handlers) RemoveAccount(w http.ResponseWriter, r *http.Request) {
	var req removeAccountRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	message := "account " + req.Name + " was not registered"
	if h.svc.RemoveAccount(req.Name) {
		message = "account " + req.Name + " removed"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"message": message,
	})
}

// AuthStart — POST /auth/start.
func (h *Handlers) AuthStart(w http.ResponseWriter, r *http.Request) {
	var req authStartRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	if err := h.login.Start(r.Context(), req.Phone, req.Name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"phone":   req.Phone,
		"message": "confirmation code sent",
	})
}

// AuthConfirm — POST /auth/confirm. При включённой 2FA возвращает
// needs_2fa и ждёт /auth/confirm_2fa.
func (h *Handlers) AuthConfirm(w http.ResponseWriter, r *http.Request) {
	var req authConfirmRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	outcome, err := h.login.ConfirmCode(r.Context(), req.Phone, req.Code, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeLoginOutcome(w, outcome)
}

// AuthConfirm2FA — POST /auth/confirm_2fa.
func (h *Handlers) AuthConfirm2FA(w http.ResponseWriter, r *http.Request) {
	var req authConfirm2FARequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	outcome, err := h.login.ConfirmPassword(r.Context(), req.Phone, req.Password, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeLoginOutcome(w, outcome)
}

func writeLoginOutcome(w http.ResponseWriter, outcome authflow.Outcome) {
	if outcome.Needs2FA {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":        false,
			"needs_2fa": true,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":             true,
		"account":        outcome.Account,
		"session_string": outcome.Credential,
	})
}
