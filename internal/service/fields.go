package service

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Fields is a decoded request body or form: values are strings, numbers
// (float64 or json.Number), nil, or []any for group assignments.
type Fields map[string]any

func asText(key string, v any) (string, error) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), nil
	case json.Number:
		return t.String(), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case int:
		return strconv.Itoa(t), nil
	}
	return "", validationf("%s must be a string", key)
}

// requiredText returns the trimmed value of key or a validation error when
// it is missing or blank.
func (f Fields) requiredText(key string) (string, error) {
	v, ok := f[key]
	if !ok || v == nil {
		return "", validationf("%s is required", key)
	}
	s, err := asText(key, v)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", validationf("%s is required", key)
	}
	return s, nil
}

// optionalText returns nil for an absent, null or blank value.
func (f Fields) optionalText(key string) (*string, error) {
	v, ok := f[key]
	if !ok || v == nil {
		return nil, nil
	}
	s, err := asText(key, v)
	if err != nil || s == "" {
		return nil, err
	}
	return &s, nil
}

// optionalInt returns nil for an absent, null or empty-string value and a
// validation error for anything that is not a whole number.
func (f Fields) optionalInt(key string) (*int64, error) {
	v, ok := f[key]
	if !ok || v == nil {
		return nil, nil
	}
	var n int64
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, nil
		}
		p, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, validationf("%s must be an integer", key)
		}
		n = p
	case json.Number:
		p, err := t.Int64()
		if err != nil {
			return nil, validationf("%s must be an integer", key)
		}
		n = p
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) || math.Abs(t) > 1<<53 {
			return nil, validationf("%s must be an integer", key)
		}
		n = int64(t)
	case int64:
		n = t
	case int:
		n = int64(t)
	default:
		return nil, validationf("%s must be an integer", key)
	}
	return &n, nil
}

// has reports whether key is present, even with a null value.
func (f Fields) has(key string) bool {
	_, ok := f[key]
	return ok
}

// ParseID parses a path or form identifier. Anything but a positive integer
// is a validation error naming the parameter.
func ParseID(name, raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, validationf("%s is required", name)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, validationf("%s must be a positive integer", name)
	}
	return id, nil
}
