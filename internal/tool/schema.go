package tool

import (
	"fmt"
	"math"
	"strings"
)

// ValidateArgs checks an argument map against a JSON-Schema-like object
// schema and returns a list of human-readable violations (empty if valid).
//
// Supported: type tags (string, integer, number, boolean, array, object),
// required, enum, numeric minimum/maximum, string minLength/maxLength,
// array items, nested object properties. Not supported (accepted scope
// limits): oneOf/anyOf/allOf, $ref, pattern, additionalProperties.
func ValidateArgs(args map[string]any, schema map[string]any) []string {
	if schema == nil {
		return nil
	}
	return validate(args, schema, "")
}

func validate(val any, schema map[string]any, path string) []string {
	typ, _ := schema["type"].(string)
	label := path
	if label == "" {
		label = "parameter"
	}

	if typ != "" && !typeMatches(val, typ) {
		return []string{fmt.Sprintf("%s should be %s", label, typ)}
	}

	var errs []string

	if enum, ok := schema["enum"].([]any); ok && !enumContains(enum, val) {
		errs = append(errs, fmt.Sprintf("%s must be one of %v", label, enum))
	}

	switch typ {
	case "integer", "number":
		n := toFloat(val)
		if min, ok := schemaNumber(schema, "minimum"); ok && n < min {
			errs = append(errs, fmt.Sprintf("%s must be >= %v", label, min))
		}
		if max, ok := schemaNumber(schema, "maximum"); ok && n > max {
			errs = append(errs, fmt.Sprintf("%s must be <= %v", label, max))
		}

	case "string":
		s := val.(string)
		if min, ok := schemaNumber(schema, "minLength"); ok && len(s) < int(min) {
			errs = append(errs, fmt.Sprintf("%s must be at least %d chars", label, int(min)))
		}
		if max, ok := schemaNumber(schema, "maxLength"); ok && len(s) > int(max) {
			errs = append(errs, fmt.Sprintf("%s must be at most %d chars", label, int(max)))
		}

	case "object":
		obj, _ := val.(map[string]any)
		props, _ := schema["properties"].(map[string]any)
		for _, req := range requiredFields(schema) {
			if _, present := obj[req]; !present {
				errs = append(errs, fmt.Sprintf("missing required %s", joinPath(path, req)))
			}
		}
		for key, v := range obj {
			sub, ok := props[key].(map[string]any)
			if !ok {
				continue // unknown properties pass through
			}
			errs = append(errs, validate(v, sub, joinPath(path, key))...)
		}

	case "array":
		items, ok := schema["items"].(map[string]any)
		if !ok || len(items) == 0 {
			break
		}
		arr, _ := val.([]any)
		for i, item := range arr {
			errs = append(errs, validate(item, items, fmt.Sprintf("%s[%d]", path, i))...)
		}
	}

	return errs
}

func typeMatches(val any, typ string) bool {
	switch typ {
	case "string":
		_, ok := val.(string)
		return ok
	case "boolean":
		_, ok := val.(bool)
		return ok
	case "integer":
		// JSON numbers decode as float64; accept whole floats as integers.
		switch n := val.(type) {
		case int, int64:
			return true
		case float64:
			return n == math.Trunc(n)
		}
		return false
	case "number":
		switch val.(type) {
		case int, int64, float64:
			return true
		}
		return false
	case "array":
		_, ok := val.([]any)
		return ok
	case "object":
		_, ok := val.(map[string]any)
		return ok
	}
	return true // unknown type tags are not enforced
}

func enumContains(enum []any, val any) bool {
	for _, e := range enum {
		if e == val {
			return true
		}
		// 3 and 3.0 compare equal across JSON decodes.
		if toFloatOk(e) && toFloatOk(val) && toFloat(e) == toFloat(val) {
			return true
		}
	}
	return false
}

func requiredFields(schema map[string]any) []string {
	var out []string
	switch req := schema["required"].(type) {
	case []string:
		out = req
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

func schemaNumber(schema map[string]any, key string) (float64, bool) {
	v, ok := schema[key]
	if !ok {
		return 0, false
	}
	if !toFloatOk(v) {
		return 0, false
	}
	return toFloat(v), true
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

func toFloatOk(v any) bool {
	switch v.(type) {
	case int, int64, float64:
		return true
	}
	return false
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return strings.Join([]string{path, key}, ".")
}
