package tools

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/tareqmamari/elasticsearch-mcp-server/internal/errors"
)

// GetStringParam gets a string parameter. Numbers are converted to strings.
func GetStringParam(arguments map[string]interface{}, key string, required bool) (string, error) {
	val, ok := arguments[key]
	if !ok || val == nil {
		if required {
			return "", apperrors.NewMissingParameter(key)
		}
		return "", nil
	}

	switch v := val.(type) {
	case string:
		if required && strings.TrimSpace(v) == "" {
			return "", apperrors.NewMissingParameter(key)
		}
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	default:
		return "", invalidType(key, "string", val)
	}
}

// GetObjectParam gets a map/object parameter
func GetObjectParam(arguments map[string]interface{}, key string, required bool) (map[string]interface{}, error) {
	val, ok := arguments[key]
	if !ok || val == nil {
		if required {
			return nil, apperrors.NewMissingParameter(key)
		}
		return nil, nil
	}

	obj, ok := val.(map[string]interface{})
	if !ok {
		return nil, invalidType(key, "object", val)
	}
	return obj, nil
}

// GetIntParam gets an integer parameter. Numeric strings are accepted.
func GetIntParam(arguments map[string]interface{}, key string, required bool) (int, error) {
	val, ok := arguments[key]
	if !ok || val == nil {
		if required {
			return 0, apperrors.NewMissingParameter(key)
		}
		return 0, nil
	}

	switch v := val.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, invalidType(key, "integer", val)
		}
		return n, nil
	default:
		return 0, invalidType(key, "integer", val)
	}
}

// GetFloatParam gets a numeric parameter. Numeric strings are accepted.
func GetFloatParam(arguments map[string]interface{}, key string, required bool) (float64, error) {
	val, ok := arguments[key]
	if !ok || val == nil {
		if required {
			return 0, apperrors.NewMissingParameter(key)
		}
		return 0, nil
	}

	switch v := val.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, invalidType(key, "number", val)
		}
		return f, nil
	default:
		return 0, invalidType(key, "number", val)
	}
}

// GetBoolParam gets a boolean parameter. "true"/"false" strings are accepted.
func GetBoolParam(arguments map[string]interface{}, key string, required bool) (bool, error) {
	val, ok := arguments[key]
	if !ok || val == nil {
		if required {
			return false, apperrors.NewMissingParameter(key)
		}
		return false, nil
	}

	switch v := val.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, invalidType(key, "boolean", val)
		}
		return b, nil
	default:
		return false, invalidType(key, "boolean", val)
	}
}

// GetArrayParam gets an array parameter
func GetArrayParam(arguments map[string]interface{}, key string, required bool) ([]interface{}, error) {
	val, ok := arguments[key]
	if !ok || val == nil {
		if required {
			return nil, apperrors.NewMissingParameter(key)
		}
		return nil, nil
	}

	arr, ok := val.([]interface{})
	if !ok {
		return nil, invalidType(key, "array", val)
	}
	return arr, nil
}

// GetStringArrayParam gets a string array parameter. A single
// comma-separated string is accepted as well.
func GetStringArrayParam(arguments map[string]interface{}, key string, required bool) ([]string, error) {
	if s, ok := arguments[key].(string); ok {
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		if required && len(out) == 0 {
			return nil, apperrors.NewMissingParameter(key)
		}
		return out, nil
	}

	arr, err := GetArrayParam(arguments, key, required)
	if err != nil {
		return nil, err
	}
	if arr == nil {
		return nil, nil
	}

	result := make([]string, 0, len(arr))
	for i, v := range arr {
		s, ok := v.(string)
		if !ok {
			return nil, apperrors.NewInvalidInput(fmt.Sprintf("element %d of argument %s: expected string, got %T", i, key, v))
		}
		result = append(result, s)
	}
	return result, nil
}

func invalidType(key, want string, got interface{}) error {
	return apperrors.NewInvalidInput(fmt.Sprintf("invalid type for argument %s: expected %s, got %T", key, want, got))
}
