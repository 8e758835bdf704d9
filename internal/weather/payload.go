package weather

import (
	"encoding/json"
	"fmt"

	"github.com/i474232898/clock-weather/internal/common"
)

// envelope is the error shape produced by the proxy endpoints:
// {"error": "...", "status": 401}.
type envelope struct {
	Error  json.RawMessage `json:"error"`
	Status int             `json:"status"`
}

// ErrorMessage extracts the message of an error envelope. ok is false when
// body is not an object or carries no error field.
func ErrorMessage(body []byte) (msg string, status int, ok bool) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", 0, false
	}
	if len(env.Error) == 0 || string(env.Error) == "null" || string(env.Error) == "false" {
		return "", 0, false
	}
	if err := json.Unmarshal(env.Error, &msg); err != nil || msg == "" {
		msg = "provider returned an error"
	}
	return msg, env.Status, true
}

// ParsePayload decodes a provider body. A body carrying an error field is
// reported as a *ProviderError even though the HTTP exchange succeeded.
func ParsePayload(body []byte) (*Payload, error) {
	if msg, status, ok := ErrorMessage(body); ok {
		return nil, &ProviderError{Status: status, Message: msg}
	}

	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode weather payload: %w", err)
	}
	p.Raw = append(json.RawMessage(nil), body...)
	return &p, nil
}

// MapCondition normalizes a provider icon or summary into a Condition.
func MapCondition(text string) Condition {
	switch {
	case text == "":
		return ConditionUnknown
	case common.ContainsAny(text, "thunder", "storm"):
		return ConditionStorm
	case common.ContainsAny(text, "rain", "shower", "drizzle"):
		return ConditionRain
	case common.ContainsAny(text, "snow", "sleet", "blizzard"):
		return ConditionSnow
	case common.ContainsAny(text, "fog", "mist", "haz"):
		return ConditionMist
	case common.ContainsAny(text, "cloud", "overcast"):
		return ConditionCloudy
	case common.ContainsAny(text, "sunny", "clear"):
		return ConditionClear
	default:
		return ConditionUnknown
	}
}
