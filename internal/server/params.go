package server

import (
	"encoding/json"
	"fmt"
)

// Parameter extraction helpers for tool argument maps.

func stringParam(params map[string]interface{}, key, defaultVal string) string {
	if v, ok := params[key]; ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return defaultVal
}

func intParam(params map[string]interface{}, key string, defaultVal int) int {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		case int64:
			return int(n)
		}
	}
	return defaultVal
}

func boolParam(params map[string]interface{}, key string, defaultVal bool) bool {
	if v, ok := params[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// objectParam accepts either an object or a JSON-encoded object string.
func objectParam(params map[string]interface{}, key string) (map[string]any, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch o := v.(type) {
	case map[string]interface{}:
		return o, nil
	case string:
		if o == "" {
			return nil, nil
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(o), &out); err != nil {
			return nil, fmt.Errorf("%s: invalid JSON object: %w", key, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: expected an object, got %T", key, v)
	}
}

func requireString(params map[string]interface{}, key string) (string, error) {
	s := stringParam(params, key, "")
	if s == "" {
		return "", fmt.Errorf("missing required parameter: %s", key)
	}
	return s, nil
}
