package homework

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
)

// ValidateResponse checks that the decoded body is an object with a
// "homeworks" array and returns that array unchanged.
func ValidateResponse(raw any, logger *slog.Logger) ([]any, error) {
	if logger == nil {
		logger = slog.Default()
	}

	body, ok := raw.(map[string]any)
	if !ok {
		return nil, &SchemaError{Reason: fmt.Sprintf("expected object, got %s", typeName(raw))}
	}

	value, ok := body[FieldHomeworks]
	if !ok {
		return nil, &SchemaError{Field: FieldHomeworks, Reason: "missing key"}
	}

	homeworks, ok := value.([]any)
	if !ok {
		return nil, &SchemaError{Field: FieldHomeworks, Reason: fmt.Sprintf("expected array, got %s", typeName(value))}
	}

	logger.Debug("homeworks received", slog.Int("count", len(homeworks)))
	return homeworks, nil
}

// CurrentDate extracts an integral "current_date" from the decoded body.
func CurrentDate(raw any) (int64, bool) {
	body, ok := raw.(map[string]any)
	if !ok {
		return 0, false
	}

	switch v := body[FieldCurrentDate].(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

// typeName names a decoded JSON value the way the API documentation does.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64, int, int64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
