// Package target — нормализация пользовательских ссылок на чаты.
// Внешняя автоматизация присылает цель в трёх конвенциях: username, «сырой»
// числовой идентификатор и bot-API-стиль с префиксом -100 у каналов. Пакет
// сводит все три к одной канонической форме и умеет обратное преобразование
// («marked id») для выдачи /dialogs.
package target

import (
	"strconv"
	"strings"
)

// Ref — каноническая ссылка на чат: либо числовой идентификатор, либо
// username. Ровно одно из полей значимо.
type Ref struct {
	ID       int64
	Username string
}

// IsZero сообщает, что ссылка пуста (ни id, ни username).
func (r Ref) IsZero() bool {
	return r.ID == 0 && r.Username == ""
}

// String возвращает каноническую текстовую форму ссылки.
func (r Ref) String() string {
	if r.Username != "" {
		return r.Username
	}
	return strconv.FormatInt(r.ID, 10)
}

// UnmarshalJSON принимает как JSON-строку, так и JSON-число:
// {"group": "some_group"}, {"group": "-1001450445959"}, {"group": 1450445959}.
func (r *Ref) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*r = Ref{}
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		*r = Parse(unquoted)
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*r = FromID(v)
	return nil
}

// Parse нормализует строковую цель:
//   - "-100<digits>" → числовой id без префикса;
//   - числовая строка → int64, к которому повторно применяется NormalizeID;
//   - всё остальное считается username (необязательный префикс "@" срезается).
//
// Пустая строка даёт нулевой Ref.
func Parse(raw string) Ref {
	t := strings.TrimSpace(raw)
	if t == "" {
		return Ref{}
	}

	if rest, ok := strings.CutPrefix(t, "-100"); ok && isDigits(rest) {
		v, err := strconv.ParseInt(rest, 10, 64)
		if err == nil {
			return Ref{ID: v}
		}
	}

	if isDigits(strings.TrimPrefix(t, "-")) {
		if v, err := strconv.ParseInt(t, 10, 64); err == nil {
			return Ref{ID: NormalizeID(v)}
		}
	}

	return Ref{Username: strings.TrimPrefix(t, "@")}
}

// FromID нормализует числовую цель.
func FromID(id int64) Ref {
	return Ref{ID: NormalizeID(id)}
}

// NormalizeID срезает bot-API-маркер у числового идентификатора: если
// десятичная запись значения начинается с «-100», остаток возвращается как
// неотрицательное число. Идемпотентна: повторное применение ничего не меняет.
func NormalizeID(id int64) int64 {
	s := strconv.FormatInt(id, 10)
	rest, ok := strings.CutPrefix(s, "-100")
	if !ok || !isDigits(rest) {
		return id
	}
	v, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return id
	}
	return v
}

// channelMarkBase — основание bot-API-маркировки каналов: маркированный
// идентификатор равен -(10^12 + id), в десятичной записи это префикс -100.
const channelMarkBase int64 = 1_000_000_000_000

// MarkChannel строит bot-API-представление идентификатора канала.
// Для неположительных id возвращает значение как есть.
func MarkChannel(id int64) int64 {
	if id <= 0 {
		return id
	}
	return -(channelMarkBase + id)
}

// MarkChat строит bot-API-представление идентификатора обычной группы: -id.
func MarkChat(id int64) int64 {
	if id <= 0 {
		return id
	}
	return -id
}

// isDigits проверяет, что строка непуста и состоит только из цифр.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
