// Пакет config отвечает за сбор и предоставление конфигурации сервиса
// мультиаккаунтного Telegram‑шлюза. Он:
//  1. читает переменные окружения из .env (через godotenv), если файл есть,
//  2. нормализует и валидирует входные значения,
//  3. накапливает предупреждения о подставленных дефолтах.
//
// Учетные данные MTProto (TG_API_ID/TG_API_HASH) намеренно НЕ являются
// обязательными на старте: процесс поднимается всегда, а их отсутствие
// всплывает ошибкой конфигурации при первой попытке открыть соединение.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config описывает параметры, приходящие из окружения. Значения уже прошли
// минимальную валидацию и нормализацию в Load; в рантайме структура
// считается неизменяемым снимком.
type Config struct {
	APIID   int
	APIHash string

	// Источники сессий: JSON-мэппинг имя→строка сессии и одиночный фолбэк.
	SessionsJSON  string
	SessionString string
	AccountName   string

	ListenAddr string
	// CallbackURL читается для совместимости с внешней автоматизацией,
	// ядром сервиса не используется.
	CallbackURL string

	LogLevel string
	// Файловое логирование (LOG_FILE не имеет дефолта — должен быть явно
	// указан для активации).
	LogFile           string
	LogFileMaxSize    int
	LogFileMaxBackups int
	LogFileMaxAge     int
	LogFileCompress   bool

	ThrottleRPS        int
	PendingLoginTTLMin int
	PeersCacheDir      string
	TestDC             bool

	warnings []string
}

// Значения по умолчанию для параметров окружения.
const (
	defaultAccountName        = "default"
	defaultListenAddr         = "0.0.0.0:8000"
	defaultLogLevel           = "info"
	defaultLogFileMaxSize     = 50
	defaultLogFileMaxBackups  = 3
	defaultLogFileMaxAge      = 7
	defaultLogFileCompress    = true
	defaultThrottleRPS        = 1
	defaultPendingLoginTTLMin = 10
	defaultPeersCacheDir      = "data/peers"
)

// Load читает .env по указанному пути (отсутствие файла — не ошибка: в
// контейнерных окружениях переменные приходят напрямую) и собирает Config.
func Load(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load %s: %w", envPath, err)
	}

	var warnings []string
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		appendWarningf(&warnings, "env file %s not found; using process environment only", envPath)
	}

	cfg := &Config{
		APIID:         parseIntDefault("TG_API_ID", 0, nonNegative, &warnings),
		APIHash:       strings.TrimSpace(os.Getenv("TG_API_HASH")),
		SessionsJSON:  strings.TrimSpace(os.Getenv("TG_SESSIONS_JSON")),
		SessionString: strings.TrimSpace(os.Getenv("TG_SESSION_STRING")),
		AccountName:   sanitizeValue(os.Getenv("TG_ACCOUNT_NAME"), defaultAccountName),
		ListenAddr:    sanitizeValue(os.Getenv("LISTEN_ADDR"), defaultListenAddr),
		CallbackURL:   strings.TrimSpace(os.Getenv("CALLBACK_URL")),

		LogLevel:          sanitizeLogLevel(os.Getenv("LOG_LEVEL"), defaultLogLevel, &warnings),
		LogFile:           strings.TrimSpace(os.Getenv("LOG_FILE")),
		LogFileMaxSize:    parseIntDefault("LOG_FILE_MAX_SIZE_MB", defaultLogFileMaxSize, greaterThanZero, &warnings),
		LogFileMaxBackups: parseIntDefault("LOG_FILE_MAX_BACKUPS", defaultLogFileMaxBackups, nonNegative, &warnings),
		LogFileMaxAge:     parseIntDefault("LOG_FILE_MAX_AGE_DAYS", defaultLogFileMaxAge, nonNegative, &warnings),
		LogFileCompress:   parseBoolDefault("LOG_FILE_COMPRESS", defaultLogFileCompress, &warnings),

		ThrottleRPS:        parseIntDefault("THROTTLE_RPS", defaultThrottleRPS, greaterThanZero, &warnings),
		PendingLoginTTLMin: parseIntDefault("PENDING_LOGIN_TTL_MIN", defaultPendingLoginTTLMin, greaterThanZero, &warnings),
		PeersCacheDir:      sanitizeValue(os.Getenv("PEERS_CACHE_DIR"), defaultPeersCacheDir),
		TestDC:             strings.EqualFold(strings.TrimSpace(os.Getenv("TEST_DC")), "true"),
	}

	if cfg.APIID == 0 {
		appendWarningf(&warnings, "env TG_API_ID is not set; connections will fail until provided")
	}
	if cfg.APIHash == "" {
		appendWarningf(&warnings, "env TG_API_HASH is not set; connections will fail until provided")
	}

	cfg.warnings = warnings
	return cfg, nil
}

// Warnings возвращает накопленные предупреждения, возникшие при загрузке
// окружения (например, когда подставлено значение по умолчанию).
// Возвращается копия.
func (c *Config) Warnings() []string {
	result := make([]string, len(c.warnings))
	copy(result, c.warnings)
	return result
}

// parseIntDefault читает name как int. Если пусто/некорректно/не проходит
// дополнительную проверку validator — возвращает defaultVal и пишет
// предупреждение. Это позволяет не падать на несущественных настройках.
func parseIntDefault(name string, defaultVal int, validator func(int) bool, warnings *[]string) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		appendWarningf(warnings, "env %s value %q is not a valid integer; using default %d", name, value, defaultVal)
		return defaultVal
	}
	if validator != nil && !validator(v) {
		appendWarningf(warnings, "env %s value %d does not satisfy constraints; using default %d", name, v, defaultVal)
		return defaultVal
	}
	return v
}

// parseBoolDefault читает name как bool. Если пусто/некорректно — возвращает
// defaultVal и пишет предупреждение.
func parseBoolDefault(name string, defaultVal bool, warnings *[]string) bool {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return defaultVal
	}
	v, err := strconv.ParseBool(value)
	if err != nil {
		appendWarningf(warnings, "env %s value %q is not a valid boolean; using default %v", name, value, defaultVal)
		return defaultVal
	}
	return v
}

// sanitizeLogLevel нормализует LOG_LEVEL и ограничивает значения набором
// {debug, info, warn, error}. Всё остальное превращается в defaultVal.
func sanitizeLogLevel(level string, defaultVal string, warnings *[]string) string {
	lvl := strings.ToLower(strings.TrimSpace(level))
	if lvl == "" {
		return defaultVal
	}
	switch lvl {
	case "debug", "info", "warn", "error":
		return lvl
	default:
		appendWarningf(warnings, "env LOG_LEVEL value %q is invalid; using default %q", level, defaultVal)
		return defaultVal
	}
}

// sanitizeValue возвращает непустое значение или fallback.
func sanitizeValue(value, fallback string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return fallback
	}
	return v
}

// appendWarningf — служебная функция для накопления предупреждений о
// некорректных переменных окружения.
func appendWarningf(warnings *[]string, format string, args ...any) {
	if warnings == nil {
		return
	}
	*warnings = append(*warnings, fmt.Sprintf(format, args...))
}

// greaterThanZero / nonNegative — простые валидаторы чисел для parseIntDefault.
func greaterThanZero(v int) bool { return v > 0 }
func nonNegative(v int) bool     { return v >= 0 }
