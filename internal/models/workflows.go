package models

import (
	"bytes"
	"encoding/json"
	"strings"

	"oscar-gateway/internal/validate"
)

// WorkflowPatch - изменение DAG: пауза и/или расписание.
type WorkflowPatch struct {
	IsPaused *bool   `json:"is_paused,omitempty"`
	Schedule *string `json:"schedule,omitempty"`
}

func (p WorkflowPatch) Validate() error {
	if p.IsPaused == nil && p.Schedule == nil {
		return validate.Errorf("is_paused", "Request must set is_paused or schedule")
	}
	if p.Schedule != nil {
		return ValidateSchedule("schedule", *p.Schedule)
	}
	return nil
}

// ConnectionRequest - подключение в терминах консоли. Апстрим ожидает
// connection_id и conn_type вместо name и type.
type ConnectionRequest struct {
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Host        string          `json:"host,omitempty"`
	Login       string          `json:"login,omitempty"`
	Password    string          `json:"password,omitempty"`
	Port        *Number         `json:"port,omitempty"`
	Schema      string          `json:"schema,omitempty"`
	Extra       json.RawMessage `json:"extra,omitempty"`
	Description string          `json:"description,omitempty"`
}

// Connection - подключение в формате апстрима.
type Connection struct {
	ConnectionID string  `json:"connection_id"`
	ConnType     string  `json:"conn_type"`
	Host         string  `json:"host,omitempty"`
	Login        string  `json:"login,omitempty"`
	Password     string  `json:"password,omitempty"`
	Port         *int    `json:"port,omitempty"`
	Schema       string  `json:"schema,omitempty"`
	Extra        *string `json:"extra,omitempty"`
	Description  string  `json:"description,omitempty"`
}

// ToUpstream переименовывает поля и сериализует extra в строку, если
// консоль прислала его объектом.
func (r ConnectionRequest) ToUpstream(connectionID string) (Connection, error) {
	c := Connection{
		ConnectionID: connectionID,
		ConnType:     strings.TrimSpace(r.Type),
		Host:         r.Host,
		Login:        r.Login,
		Password:     r.Password,
		Schema:       r.Schema,
		Description:  r.Description,
	}
	if c.ConnectionID == "" {
		c.ConnectionID = strings.TrimSpace(r.Name)
	}
	if c.ConnectionID == "" {
		return c, validate.Errorf("name", "Missing required field: name")
	}
	if c.ConnType == "" {
		return c, validate.Errorf("type", "Missing required field: type")
	}
	if r.Port != nil {
		port, err := r.Port.Int()
		if err != nil || port < 1 || port > 65535 {
			return c, validate.Errorf("port", "port must be an integer between 1 and 65535")
		}
		c.Port = &port
	}

	extra := bytes.TrimSpace(r.Extra)
	switch {
	case len(extra) == 0 || bytes.Equal(extra, []byte("null")):
	case extra[0] == '"':
		var s string
		if err := json.Unmarshal(extra, &s); err != nil {
			return c, validate.Errorf("extra", "extra must be a JSON object or string")
		}
		if s != "" && !json.Valid([]byte(s)) {
			return c, validate.Errorf("extra", "extra must contain valid JSON")
		}
		c.Extra = &s
	case extra[0] == '{':
		s := string(extra)
		c.Extra = &s
	default:
		return c, validate.Errorf("extra", "extra must be a JSON object or string")
	}
	return c, nil
}
