package models

import (
	"bytes"
	"encoding/json"

	"oscar-gateway/internal/validate"
)

// BulkAction - массовая операция над уведомлениями или пробами.
type BulkAction string

const (
	BulkEnable  BulkAction = "enable"
	BulkDisable BulkAction = "disable"
	BulkDelete  BulkAction = "delete"
)

func ParseBulkAction(s string) (BulkAction, error) {
	switch a := BulkAction(s); a {
	case BulkEnable, BulkDisable, BulkDelete:
		return a, nil
	default:
		return "", validate.Errorf("action", "Unsupported bulk action %q: must be enable, disable or delete", s)
	}
}

// BulkIDs - тело массовой операции в формате апстрима.
type BulkIDs struct {
	IDs []string `json:"ids"`
}

// ParseIDList принимает только непустой JSON-массив строковых идентификаторов.
func ParseIDList(data []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, validate.Errorf("ids", "Request body must be a non-empty array of ids")
	}
	var ids []string
	if err := json.Unmarshal(trimmed, &ids); err != nil {
		return nil, validate.Errorf("ids", "Request body must be a non-empty array of ids")
	}
	if len(ids) == 0 {
		return nil, validate.Errorf("ids", "Request body must be a non-empty array of ids")
	}
	for i, id := range ids {
		if id == "" {
			return nil, validate.Errorf("ids", "Invalid ids[%d]: must not be empty", i)
		}
	}
	return ids, nil
}
