package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// GridOptions управляет сортировкой, поиском и пагинацией таблицы.
// PerPage == 0 отключает пагинацию.
type GridOptions struct {
	Column  string
	Desc    bool
	Search  string
	Fields  []string
	Page    int
	PerPage int
}

// GridEnvelope - ответ таблиц маппингов: allData содержит всю
// отсортированную коллекцию, total - число строк после фильтра.
type GridEnvelope struct {
	AllData []map[string]any `json:"allData"`
	Total   int              `json:"total"`
	Rows    []map[string]any `json:"rows"`
}

// ShapeGridRows получает полную коллекцию апстрима, сортирует ее по колонке,
// разворачивает при desc и фильтрует подстрокой без учета регистра.
func ShapeGridRows(body []byte, opts GridOptions) (GridEnvelope, error) {
	raw, _, err := extractRecords(body)
	if err != nil {
		return GridEnvelope{}, err
	}

	all := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		dec := json.NewDecoder(bytes.NewReader(r))
		dec.UseNumber()
		var row map[string]any
		if err := dec.Decode(&row); err != nil {
			return GridEnvelope{}, fmt.Errorf("decode row: %w", err)
		}
		all = append(all, row)
	}

	if opts.Column != "" {
		sort.SliceStable(all, func(i, j int) bool {
			return compareValues(all[i][opts.Column], all[j][opts.Column]) < 0
		})
		if opts.Desc {
			slices.Reverse(all)
		}
	}

	rows := all
	if needle := strings.ToLower(strings.TrimSpace(opts.Search)); needle != "" {
		rows = make([]map[string]any, 0, len(all))
		for _, row := range all {
			if rowMatches(row, opts.Fields, needle) {
				rows = append(rows, row)
			}
		}
	}

	total := len(rows)
	if opts.PerPage > 0 {
		page := max(opts.Page, 1)
		start := min((page-1)*opts.PerPage, total)
		end := min(start+opts.PerPage, total)
		rows = rows[start:end]
	}
	return GridEnvelope{AllData: all, Total: total, Rows: rows}, nil
}

func rowMatches(row map[string]any, fields []string, needle string) bool {
	for _, f := range fields {
		v, ok := row[f]
		if !ok || v == nil {
			continue
		}
		if strings.Contains(strings.ToLower(stringify(v)), needle) {
			return true
		}
	}
	return false
}

// compareValues сравнивает числа численно, все остальное - как строки
// без учета регистра. Отсутствующее значение меньше любого другого.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	an, aok := a.(json.Number)
	bn, bok := b.(json.Number)
	if aok && bok {
		af, aerr := an.Float64()
		bf, berr := bn.Float64()
		if aerr == nil && berr == nil {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(strings.ToLower(stringify(a)), strings.ToLower(stringify(b)))
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}
