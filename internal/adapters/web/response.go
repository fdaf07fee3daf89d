package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"telegram-accounts/internal/domain/errs"
	"telegram-accounts/internal/infra/logger"
)

// errorResponse — единый формат тела ошибки.
type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// writeJSON сериализует payload и пишет его с нужным статусом.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Errorf("write response: %v", err)
	}
}

// writeError классифицирует ошибку по виду и отвечает соответствующим статусом.
// Для FLOOD_WAIT длительность паузы дублируется в заголовке Retry-After.
func writeError(w http.ResponseWriter, err error) {
	status := statusForKind(errs.KindOf(err))
	if status >= http.StatusInternalServerError {
		logger.Errorf("request failed: %v", err)
	} else {
		logger.Debugf("request rejected: %v", err)
	}
	if wait, ok := errs.FloodWaitOf(err); ok {
		w.Header().Set("Retry-After", strconv.Itoa(int(wait/time.Second)))
	}
	writeJSON(w, status, errorResponse{OK: false, Error: err.Error()})
}

// writeBadRequest отвечает 400 на ошибку разбора или валидации тела запроса.
func writeBadRequest(w http.ResponseWriter, err error) {
	logger.Debugf("bad request: %v", err)
	writeJSON(w, http.StatusBadRequest, errorResponse{OK: false, Error: err.Error()})
}

// statusForKind отображает закрытое перечисление видов ошибок на HTTP-статусы.
func statusForKind(kind errs.Kind) int {
	switch kind {
	case errs.KindAccountNotFound,
		errs.KindMissingTarget,
		errs.KindPeerNotFound,
		errs.KindInvalidPhone,
		errs.KindInvalidCode,
		errs.KindFlowState,
		errs.KindTwoFARequired,
		errs.KindInvalidArgument:
		return http.StatusBadRequest
	case errs.KindUnauthorized:
		return http.StatusUnauthorized
	case errs.KindPrivacy:
		return http.StatusForbidden
	case errs.KindFloodWait:
		return http.StatusTooManyRequests
	case errs.KindConfig, errs.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
