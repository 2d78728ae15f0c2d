package models

import (
	"encoding/json"
	"net/mail"
	"net/url"
	"strings"

	"oscar-gateway/internal/validate"

	"github.com/robfig/cron/v3"
)

type NotifierType string

const (
	NotifierEmail   NotifierType = "email"
	NotifierWebhook NotifierType = "webhook"
)

// Notifier - сумма типов по дискриминатору "type". Неизвестный тип
// отклоняется, а не уходит в апстрим как неоднозначный payload.
type Notifier interface {
	Kind() NotifierType
	Validate() error
}

// NotifierCommon - поля, общие для всех типов уведомителей.
type NotifierCommon struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	Schedule    string `json:"schedule,omitempty"`
}

type EmailNotifier struct {
	Type NotifierType `json:"type"`
	NotifierCommon
	EmailAddresses []string `json:"email_addresses"`
}

type WebhookNotifier struct {
	Type NotifierType `json:"type"`
	NotifierCommon
	WebhookURL string `json:"webhook_url"`
}

func (EmailNotifier) Kind() NotifierType { return NotifierEmail }

func (WebhookNotifier) Kind() NotifierType { return NotifierWebhook }

// DecodeNotifier выбирает конкретный тип по полю "type".
func DecodeNotifier(data []byte) (Notifier, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, validate.Errorf("body", "Invalid JSON body: %v", err)
	}

	var n Notifier
	switch NotifierType(strings.ToLower(strings.TrimSpace(head.Type))) {
	case NotifierEmail:
		var e EmailNotifier
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, validate.Errorf("body", "Invalid email notifier: %v", err)
		}
		e.Type = NotifierEmail
		n = e
	case NotifierWebhook:
		var wh WebhookNotifier
		if err := json.Unmarshal(data, &wh); err != nil {
			return nil, validate.Errorf("body", "Invalid webhook notifier: %v", err)
		}
		wh.Type = NotifierWebhook
		n = wh
	case "":
		return nil, validate.Errorf("type", "Missing required field: type")
	default:
		return nil, validate.Errorf("type", "Unsupported notifier type %q: must be email or webhook", head.Type)
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

func (c NotifierCommon) validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return validate.Errorf("name", "Missing required field: name")
	}
	return ValidateSchedule("schedule", c.Schedule)
}

func (e EmailNotifier) Validate() error {
	if err := e.NotifierCommon.validate(); err != nil {
		return err
	}
	if len(e.EmailAddresses) == 0 {
		return validate.Errorf("email_addresses", "Email notifiers require at least one email address")
	}
	for _, addr := range e.EmailAddresses {
		if _, err := mail.ParseAddress(addr); err != nil {
			return validate.Errorf("email_addresses", "Invalid email address %q", addr)
		}
	}
	return nil
}

func (wh WebhookNotifier) Validate() error {
	if err := wh.NotifierCommon.validate(); err != nil {
		return err
	}
	u, err := url.ParseRequestURI(wh.WebhookURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return validate.Errorf("webhook_url", "Webhook notifiers require a valid http(s) webhook_url")
	}
	return nil
}

// ValidateSchedule проверяет cron-выражение (5 полей или дескриптор вида @daily).
// Пустое значение допустимо.
func ValidateSchedule(field, spec string) error {
	if strings.TrimSpace(spec) == "" {
		return nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return validate.Errorf(field, "Invalid %s: %v", field, err)
	}
	return nil
}
