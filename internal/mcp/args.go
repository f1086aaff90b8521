package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// decodeArguments turns the raw tools/call arguments into a map. Absent or
// null arguments are an empty map.
func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, errors.New("arguments must be a JSON object")
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func parseRequiredString(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", fmt.Errorf("%s is required", key)
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%s must be a non-empty string", key)
	}
	return value, nil
}

func parseOptionalString(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return strings.TrimSpace(value), nil
}

// parsePathAnd reads the "path" argument plus one more required string.
func parsePathAnd(args map[string]any, key string) (string, string, error) {
	path, err := parseRequiredString(args, "path")
	if err != nil {
		return "", "", err
	}
	value, err := parseRequiredString(args, key)
	if err != nil {
		return "", "", err
	}
	return path, value, nil
}

func parseOptionalBool(args map[string]any, key string) (bool, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return false, false, nil
	}
	v, ok := raw.(bool)
	if !ok {
		return false, true, fmt.Errorf("%s must be a boolean", key)
	}
	return v, true, nil
}

func parseOptionalNumber(args map[string]any, key string) (float64, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	v, ok := raw.(float64)
	if !ok {
		return 0, true, fmt.Errorf("%s must be a number", key)
	}
	return v, true, nil
}

func parseRequiredInteger(args map[string]any, key string) (int, error) {
	v, present, err := parseOptionalInteger(args, key)
	if err != nil {
		return 0, err
	}
	if !present {
		return 0, fmt.Errorf("%s is required", key)
	}
	return v, nil
}

func parseOptionalInteger(args map[string]any, key string) (int, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	f, ok := raw.(float64)
	if !ok || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, true, fmt.Errorf("%s must be an integer", key)
	}
	return int(f), true, nil
}

func emptyInputSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func listFilesInputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": "directory relative to the root; empty lists the root"},
		},
	}
}

func pathInputSchema(description string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "minLength": 1, "description": description},
		},
		"required": []string{"path"},
	}
}

func navigateInputSchema(key string, prop map[string]any) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "minLength": 1, "description": "file to open in the viewer"},
			key:    prop,
		},
		"required": []string{"path", key},
	}
}

func getSelectionInputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"wait":             map[string]any{"type": "boolean", "description": "block until the user confirms a new selection"},
			"timeout":          map[string]any{"type": "number", "exclusiveMinimum": 0, "description": "seconds to wait when wait is true (default 60)"},
			"clear_after_read": map[string]any{"type": "boolean", "description": "remove the selection once returned (defaults to the value of wait)"},
		},
	}
}

func selectionHistoryInputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"limit": map[string]any{"type": "integer", "minimum": 1, "maximum": maxHistoryLimit, "description": "number of entries to return (default 10, max 100)"},
			"kind":  map[string]any{"type": "string", "description": "only entries of this kind, e.g. selection_published"},
		},
	}
}
