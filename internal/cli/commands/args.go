package commands

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// parseArgs builds script arguments from an optional YAML file and
// name=value pairs. Pairs win over the file. Values are YAML scalars, so
// 3 is a number, true a boolean and anything unquoted text a string.
func parseArgs(file string, pairs []string) (map[string]any, error) {
	args := make(map[string]any)

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read args file: %w", err)
		}
		var fromFile map[string]any
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return nil, fmt.Errorf("failed to parse args file %s: %w", file, err)
		}
		for k, v := range fromFile {
			args[strings.ToLower(k)] = normalizeArg(v)
		}
	}

	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid argument %q: expected name=value", pair)
		}
		v, err := parseArgValue(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid value for argument %s: %w", name, err)
		}
		args[strings.ToLower(name)] = v
	}
	return args, nil
}

func parseArgValue(raw string) (any, error) {
	if strings.TrimSpace(raw) == "" {
		return raw, nil
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	// Text that decodes to nothing, such as a comment, stays as written.
	if v == nil && raw != "null" && raw != "~" {
		return raw, nil
	}
	return normalizeArg(v), nil
}

// normalizeArg widens YAML integers and walks collections.
func normalizeArg(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeArg(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalizeArg(e)
		}
		return out
	default:
		return v
	}
}
