package cmd

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// parseParams turns repeated key=value flags into a params map. Values are
// read as YAML scalars, so "5" is an int, "true" a bool and "0.8" a float.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid param %q: expected key=value", pair)
		}
		params[key] = scalar(raw)
	}
	return params, nil
}

func scalar(raw string) any {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	switch v.(type) {
	case string, int, float64, bool:
		return v
	default:
		// Empty values, lists and maps stay literal.
		return raw
	}
}
