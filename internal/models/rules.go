package models

import (
	"encoding/json"
	"strings"

	"oscar-gateway/internal/validate"
)

// NormalizeRule проверяет имя правила и приводит suppression_window_ids
// к множеству: дубликаты удаляются, порядок первого вхождения сохраняется.
func NormalizeRule(p Payload, requireName bool) error {
	if requireName {
		name, ok := p.String("name")
		if !ok || strings.TrimSpace(name) == "" {
			return validate.Errorf("name", "Missing required field: name")
		}
	}
	if !p.Has("suppression_window_ids") {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(p["suppression_window_ids"], &ids); err != nil {
		return validate.Errorf("suppression_window_ids", "suppression_window_ids must be an array of strings")
	}
	return p.Set("suppression_window_ids", Dedupe(ids))
}

// Dedupe возвращает значения без повторов в порядке первого вхождения.
func Dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
