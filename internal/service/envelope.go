package service

import (
	"bytes"
	"encoding/json"
	"errors"

	"oscar-gateway/internal/models"
)

// Shape - контракт ответа списочного маршрута. Имена полей каждого
// конверта привязаны к таблицам консоли и не меняются.
type Shape int

const (
	// ShapeList - {total_pages, total_records, records}.
	ShapeList Shape = iota
	// ShapeRows - {total, rows}.
	ShapeRows
	// ShapeGrid - {allData, total, rows}.
	ShapeGrid
)

var ErrNotAList = errors.New("upstream response is not a list")

type ListEnvelope struct {
	TotalPages   int               `json:"total_pages"`
	TotalRecords int               `json:"total_records"`
	Records      []json.RawMessage `json:"records"`
	Error        string            `json:"error,omitempty"`
}

type RowsEnvelope struct {
	Total int              `json:"total"`
	Rows  []map[string]any `json:"rows"`
}

// EmptyListEnvelope возвращает конверт с нулевыми счетчиками, чтобы таблица
// могла показать пустое состояние вместе с сообщением.
func EmptyListEnvelope(message string) ListEnvelope {
	return ListEnvelope{Records: []json.RawMessage{}, Error: message}
}

// BuildListEnvelope принимает ответ апстрима в любом из форматов: голый
// массив или объект с records|items|data и total_records|total|count.
func BuildListEnvelope(body []byte, q models.ListQuery) (ListEnvelope, error) {
	records, total, err := extractRecords(body)
	if err != nil {
		return ListEnvelope{}, err
	}
	if total < len(records) {
		total = len(records)
	}
	return ListEnvelope{
		TotalPages:   q.TotalPages(total),
		TotalRecords: total,
		Records:      records,
	}, nil
}

// Reshape строит конверт нужной формы. fields задает поля поиска для
// ShapeRows и ShapeGrid.
func Reshape(shape Shape, body []byte, q models.ListQuery, fields []string) (any, error) {
	switch shape {
	case ShapeRows:
		grid, err := ShapeGridRows(body, GridOptions{Column: q.Column, Desc: q.Desc(), Search: q.Search, Fields: fields})
		if err != nil {
			return nil, err
		}
		return RowsEnvelope{Total: grid.Total, Rows: grid.Rows}, nil
	case ShapeGrid:
		return ShapeGridRows(body, GridOptions{Column: q.Column, Desc: q.Desc(), Search: q.Search, Fields: fields})
	default:
		return BuildListEnvelope(body, q)
	}
}

var (
	recordKeys = []string{"records", "items", "data", "rows"}
	totalKeys  = []string{"total_records", "total", "count"}
)

func extractRecords(body []byte) ([]json.RawMessage, int, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return []json.RawMessage{}, 0, nil
	}

	switch trimmed[0] {
	case '[':
		var records []json.RawMessage
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, 0, err
		}
		if records == nil {
			records = []json.RawMessage{}
		}
		return records, len(records), nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, 0, err
		}
		records := []json.RawMessage{}
		found := false
		for _, key := range recordKeys {
			raw, ok := obj[key]
			if !ok {
				continue
			}
			if err := json.Unmarshal(raw, &records); err != nil {
				return nil, 0, ErrNotAList
			}
			if records == nil {
				records = []json.RawMessage{}
			}
			found = true
			break
		}
		if !found {
			return nil, 0, ErrNotAList
		}
		total := len(records)
		for _, key := range totalKeys {
			var n int
			if raw, ok := obj[key]; ok && json.Unmarshal(raw, &n) == nil {
				total = n
				break
			}
		}
		return records, total, nil
	default:
		return nil, 0, ErrNotAList
	}
}
