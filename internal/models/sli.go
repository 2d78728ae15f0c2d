package models

import (
	"encoding/json"
	"math"

	"oscar-gateway/internal/validate"
)

type sliTargetInput struct {
	TargetValue *Number `json:"target_value"`
	Period      *Number `json:"period"`
}

// CoerceSLITarget приводит target.target_value к float и target.period к int
// (секунды) до отправки в апстрим. Нечисловые значения дают ошибку валидации.
func CoerceSLITarget(p Payload, partial bool) error {
	raw, ok := p["target"]
	if !ok || !p.Has("target") {
		if partial {
			return nil
		}
		return validate.Errorf("target", "Missing required field: target")
	}

	var target Payload
	if err := json.Unmarshal(raw, &target); err != nil || target == nil {
		return validate.Errorf("target", "target must be an object")
	}
	var in sliTargetInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return validate.Errorf("target", "target_value and period must be numeric")
	}

	if in.TargetValue == nil {
		if !partial {
			return validate.Errorf("target_value", "Missing required field: target.target_value")
		}
	} else {
		v, err := in.TargetValue.Float()
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return validate.Errorf("target_value", "target_value must be a number")
		}
		_ = target.Set("target_value", v)
	}

	if in.Period == nil {
		if !partial {
			return validate.Errorf("period", "Missing required field: target.period")
		}
	} else {
		v, err := in.Period.Float()
		if err != nil || math.IsNaN(v) || v != math.Trunc(v) || v <= 0 {
			return validate.Errorf("period", "period must be a positive whole number of seconds")
		}
		_ = target.Set("period", int64(v))
	}

	return p.Set("target", target)
}
