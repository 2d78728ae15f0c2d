package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"net/url"
)

// JSONBMap реализует интерфейсы sql.Scanner и driver.Valuer
// для сериализации map[string]string в/из JSON-колонки.
type JSONBMap map[string]string

// Value преобразует карту в JSON для сохранения в БД.
func (m JSONBMap) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(make(map[string]string))
	}
	return json.Marshal(m)
}

// Scan преобразует JSON из БД обратно в карту. SQLite может вернуть
// как []byte, так и string.
func (m *JSONBMap) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*m = JSONBMap{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return errors.New("type assertion to []byte failed")
	}
}

// QueryMap сворачивает параметры запроса в JSONBMap; для повторяющихся
// ключей сохраняется первое значение.
func QueryMap(values url.Values) JSONBMap {
	m := make(JSONBMap, len(values))
	for k, v := range values {
		if len(v) > 0 {
			m[k] = v[0]
		}
	}
	return m
}
