package models

import (
	"bytes"
	"encoding/json"

	"oscar-gateway/internal/validate"
)

// TaskRunRequest - необязательные параметры запуска задачи.
type TaskRunRequest struct {
	Prompts  []string        `json:"prompts,omitempty"`
	UserData json.RawMessage `json:"user_data,omitempty"`
}

// ParseTaskRun допускает пустое тело.
func ParseTaskRun(data []byte) (TaskRunRequest, error) {
	var req TaskRunRequest
	if len(bytes.TrimSpace(data)) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, validate.Errorf("prompts", "Invalid task run request: prompts must be an array of strings")
	}
	if bytes.Equal(bytes.TrimSpace(req.UserData), []byte("null")) {
		req.UserData = nil
	}
	return req, nil
}
