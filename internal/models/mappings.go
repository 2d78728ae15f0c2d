package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"oscar-gateway/internal/validate"
)

// Поля, по которым консоль ищет в таблицах маппингов.
var (
	NamespaceSearchFields = []string{"id", "name", "description"}
	MappingSearchFields   = []string{"id", "name", "description", "key", "value"}
)

// ParseMappingBulkUpdate принимает непустой массив маппингов, у каждого
// из которых задан id.
func ParseMappingBulkUpdate(data []byte) ([]Payload, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, validate.Errorf("mappings", "Request body must be a non-empty array of mappings")
	}
	var items []Payload
	if err := json.Unmarshal(trimmed, &items); err != nil || len(items) == 0 {
		return nil, validate.Errorf("mappings", "Request body must be a non-empty array of mappings")
	}
	for i, item := range items {
		if !item.Has("id") {
			return nil, validate.Errorf(fmt.Sprintf("mappings[%d].id", i), "Missing required field: mappings[%d].id", i)
		}
	}
	return items, nil
}
