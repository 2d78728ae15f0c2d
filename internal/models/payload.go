package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"oscar-gateway/internal/validate"
)

// Payload - это JSON-объект запроса, который пробрасывается в апстрим как есть.
// Обработчики меняют только те поля, которые нормализуют.
type Payload map[string]json.RawMessage

// DecodePayload разбирает тело запроса; тело обязано быть JSON-объектом.
func DecodePayload(data []byte) (Payload, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, validate.Errorf("body", "Request body must be a JSON object")
	}
	var p Payload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, validate.Errorf("body", "Invalid JSON body: %v", err)
	}
	return p, nil
}

// Has сообщает, присутствует ли поле и не равно ли оно null.
func (p Payload) Has(key string) bool {
	raw, ok := p[key]
	return ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Set заменяет значение поля.
func (p Payload) Set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p[key] = data
	return nil
}

// String возвращает строковое поле; false, если поля нет или это не строка.
func (p Payload) String(key string) (string, bool) {
	raw, ok := p[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Rename переносит значение поля from в to, если from задано.
func (p Payload) Rename(from, to string) {
	if raw, ok := p[from]; ok {
		delete(p, from)
		p[to] = raw
	}
}

// Number - число, пришедшее из формы либо как JSON-число, либо как строка.
type Number struct {
	raw string
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n.raw = strings.TrimSpace(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("not a number: %s", data)
	}
	n.raw = num.String()
	return nil
}

// Float возвращает значение как float64; ошибка означает NaN.
func (n Number) Float() (float64, error) {
	if n.raw == "" {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseFloat(n.raw, 64)
}

// Int возвращает целое значение; дробные и нечисловые значения - ошибка.
func (n Number) Int() (int, error) {
	return strconv.Atoi(n.raw)
}
