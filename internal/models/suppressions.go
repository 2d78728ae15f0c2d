package models

import (
	"encoding/json"
	"strings"

	"oscar-gateway/internal/validate"
)

// SuppressionWindow - ежедневный интервал, в течение которого правила алертов
// не срабатывают.
type SuppressionWindow struct {
	Name        string `json:"name"`
	StartHour   int    `json:"start_hour"`
	StartMinute int    `json:"start_minute"`
	EndHour     int    `json:"end_hour"`
	EndMinute   int    `json:"end_minute"`
	Description string `json:"description,omitempty"`
}

type suppressionWindowInput struct {
	Name        *string `json:"name"`
	StartHour   *Number `json:"start_hour"`
	StartMinute *Number `json:"start_minute"`
	EndHour     *Number `json:"end_hour"`
	EndMinute   *Number `json:"end_minute"`
	Description string  `json:"description"`
}

// ParseSuppressionWindow проверяет окно подавления до отправки в апстрим:
// наличие полей времени, часы 0-23, минуты 0-59, при равных часах конец
// позже начала, и только затем имя.
func ParseSuppressionWindow(p Payload) (SuppressionWindow, error) {
	var in suppressionWindowInput
	data, _ := json.Marshal(p)
	if err := json.Unmarshal(data, &in); err != nil {
		return SuppressionWindow{}, validate.Errorf("body", "Time fields must be numbers")
	}

	var missing []string
	for _, f := range []struct {
		name string
		val  *Number
	}{
		{"start_hour", in.StartHour},
		{"start_minute", in.StartMinute},
		{"end_hour", in.EndHour},
		{"end_minute", in.EndMinute},
	} {
		if f.val == nil || f.val.raw == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return SuppressionWindow{}, validate.Errorf(missing[0], "Missing required fields: %s", strings.Join(missing, ", "))
	}

	w := SuppressionWindow{Description: in.Description}
	var err error
	if w.StartHour, err = in.StartHour.Int(); err != nil {
		return w, validate.Errorf("start_hour", "Time fields must be integers")
	}
	if w.StartMinute, err = in.StartMinute.Int(); err != nil {
		return w, validate.Errorf("start_minute", "Time fields must be integers")
	}
	if w.EndHour, err = in.EndHour.Int(); err != nil {
		return w, validate.Errorf("end_hour", "Time fields must be integers")
	}
	if w.EndMinute, err = in.EndMinute.Int(); err != nil {
		return w, validate.Errorf("end_minute", "Time fields must be integers")
	}
	if err := w.Validate(); err != nil {
		return w, err
	}
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return w, validate.Errorf("name", "Missing required fields: name")
	}
	w.Name = strings.TrimSpace(*in.Name)
	return w, nil
}

// Validate проверяет диапазоны времени.
func (w SuppressionWindow) Validate() error {
	if w.StartHour < 0 || w.StartHour > 23 || w.EndHour < 0 || w.EndHour > 23 {
		return validate.Errorf("start_hour", "Hours must be between 0 and 23")
	}
	if w.StartMinute < 0 || w.StartMinute > 59 || w.EndMinute < 0 || w.EndMinute > 59 {
		return validate.Errorf("start_minute", "Minutes must be between 0 and 59")
	}
	if w.StartHour == w.EndHour && w.EndMinute <= w.StartMinute {
		return validate.Errorf("end_minute", "End time must be after start time when hours are equal")
	}
	return nil
}

// Apply записывает нормализованные значения обратно в исходный payload.
func (w SuppressionWindow) Apply(p Payload) {
	_ = p.Set("name", w.Name)
	_ = p.Set("start_hour", w.StartHour)
	_ = p.Set("start_minute", w.StartMinute)
	_ = p.Set("end_hour", w.EndHour)
	_ = p.Set("end_minute", w.EndMinute)
}
