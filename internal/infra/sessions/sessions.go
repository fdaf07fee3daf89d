// Package sessions — хранилище учётных данных аккаунтов и кодек строк сессий.
//
// Источники: TG_SESSIONS_JSON (JSON-объект имя→строка сессии) с фолбэком на
// одиночную пару TG_SESSION_STRING + TG_ACCOUNT_NAME. Строка сессии — это
// base64url от {"version":1,"data":<session.Data>}; дополнительно принимаются
// строки Telethon StringSession, потому что существующие аккаунты чаще всего
// выгружены именно из него. Кодек никогда не пишет данные на диск — ключи
// живут только в памяти процесса.
package sessions

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/go-faster/errors"
	tdsession "github.com/gotd/td/session"

	"telegram-accounts/internal/infra/config"
)

// credentialVersion — версия нативного формата строки сессии.
const credentialVersion = 1

// payload — сериализуемая обёртка вокруг session.Data (конвенция teldrive).
type payload struct {
	Version int            `json:"version"`
	Data    tdsession.Data `json:"data"`
}

// FromConfig возвращает мэппинг имя→строка сессии. Чистая функция
// конфигурации: без побочных эффектов, вызывающие сами решают, что делать
// с результатом.
//
// Основной источник — TG_SESSIONS_JSON; битый JSON или не-объект дают ноль
// записей (мягкий отказ). Записи с пустыми ключами или не-строковыми
// значениями отбрасываются. Фолбэк на одиночную сессию применяется только
// когда основной источник не дал ни одной записи.
func FromConfig(cfg *config.Config) map[string]string {
	out := make(map[string]string)

	if raw := strings.TrimSpace(cfg.SessionsJSON); raw != "" {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
			for k, v := range parsed {
				name := strings.TrimSpace(k)
				value, ok := v.(string)
				if name == "" || !ok || strings.TrimSpace(value) == "" {
					continue
				}
				out[name] = strings.TrimSpace(value)
			}
		}
	}

	if len(out) == 0 && cfg.SessionString != "" {
		name := strings.TrimSpace(cfg.AccountName)
		if name == "" {
			name = "default"
		}
		out[name] = cfg.SessionString
	}

	return out
}

// Decode разбирает строку сессии в session.Data. Сначала пробуется нативный
// формат, затем Telethon StringSession.
func Decode(credential string) (*tdsession.Data, error) {
	trimmed := strings.TrimSpace(credential)
	if trimmed == "" {
		return nil, errors.New("empty session string")
	}

	if raw, err := base64.URLEncoding.DecodeString(trimmed); err == nil {
		var p payload
		if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil && p.Version == credentialVersion {
			return &p.Data, nil
		}
	}

	data, err := tdsession.TelethonSession(trimmed)
	if err != nil {
		return nil, errors.Wrap(err, "decode session string")
	}
	return data, nil
}

// Encode упаковывает session.Data в нативную строку сессии.
func Encode(data *tdsession.Data) (string, error) {
	if data == nil {
		return "", errors.New("nil session data")
	}
	raw, err := json.Marshal(payload{Version: credentialVersion, Data: *data})
	if err != nil {
		return "", errors.Wrap(err, "marshal session data")
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// Storage собирает in-memory хранилище сессии gotd, предзагруженное из
// строки сессии. Именно его получает telegram.Client: библиотека сама
// обновляет содержимое при миграциях DC и перевыпуске ключей.
func Storage(ctx context.Context, credential string) (*tdsession.StorageMemory, error) {
	data, err := Decode(credential)
	if err != nil {
		return nil, err
	}
	mem := &tdsession.StorageMemory{}
	loader := tdsession.Loader{Storage: mem}
	if err = loader.Save(ctx, data); err != nil {
		return nil, errors.Wrap(err, "seed session storage")
	}
	return mem, nil
}

// Export выгружает актуальное содержимое хранилища сессии обратно в строку.
// Используется после успешного логина, чтобы вернуть вызывающему долгоживущую
// учётку.
func Export(ctx context.Context, store tdsession.Storage) (string, error) {
	loader := tdsession.Loader{Storage: store}
	data, err := loader.Load(ctx)
	if err != nil {
		return "", errors.Wrap(err, "load session data")
	}
	return Encode(data)
}
