package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

func validate(e *entry, raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = "{}"
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("%w: arguments are not a JSON object: %v", ErrInvalidArguments, err)
	}
	if args == nil {
		args = make(map[string]any)
	}

	coerce(e.spec.Schema, args)

	if err := e.resolved.ApplyDefaults(&args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if err := e.resolved.Validate(args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return args, nil
}

// coerce converts values the model commonly sends with the wrong JSON type
// ("3" for an integer, 3 for a string, a bare string for a string array)
// into the declared type. Values that cannot be converted are left alone
// for validation to reject.
func coerce(schema *jsonschema.Schema, args map[string]any) {
	for name, prop := range schema.Properties {
		v, ok := args[name]
		if !ok || v == nil {
			continue
		}
		args[name] = coerceValue(prop, v)
	}
}

func coerceValue(prop *jsonschema.Schema, v any) any {
	switch prop.Type {
	case "integer", "number":
		if s, ok := v.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f
			}
		}
	case "boolean":
		if s, ok := v.(string); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
				return b
			}
		}
	case "string":
		switch t := v.(type) {
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(t)
		}
	case "array":
		if s, ok := v.(string); ok && prop.Items != nil && prop.Items.Type == "string" {
			return []any{s}
		}
	}
	return v
}
