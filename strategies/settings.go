package strategies

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMissingSetting marks a ConfigError listing absent required keys.
var ErrMissingSetting = errors.New("missing required setting")

// ConfigError describes a strategy configuration that cannot run.
type ConfigError struct {
	Archetype Archetype
	Missing   []string
	Field     string
	Err       error
}

func (e *ConfigError) Error() string {
	switch {
	case len(e.Missing) > 0:
		return fmt.Sprintf("%s: missing required settings: %s", e.Archetype, strings.Join(e.Missing, ", "))
	case e.Field != "":
		return fmt.Sprintf("%s: setting %s: %v", e.Archetype, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Archetype, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func invalid(a Archetype, field string, format string, args ...any) *ConfigError {
	return &ConfigError{Archetype: a, Field: field, Err: fmt.Errorf(format, args...)}
}

// Settings is the free-form per-archetype key/value map. A key passed to an
// accessor may name alternatives separated by "|"; the first present wins.
type Settings map[string]any

func (s Settings) lookup(key string) (string, any, bool) {
	for _, k := range strings.Split(key, "|") {
		if v, ok := s[k]; ok && v != nil {
			return k, v, true
		}
	}
	return key, nil, false
}

// Has reports whether any alternative of key is set.
func (s Settings) Has(key string) bool {
	_, _, ok := s.lookup(key)
	return ok
}

// Missing returns the keys from required that are absent.
func (s Settings) Missing(required ...string) []string {
	var out []string
	for _, k := range required {
		if !s.Has(k) {
			out = append(out, strings.ReplaceAll(k, "|", " or "))
		}
	}
	return out
}

// Float returns the value of key as a float64, or def when absent.
func (s Settings) Float(key string, def float64) (float64, error) {
	k, v, ok := s.lookup(key)
	if !ok {
		return def, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return f, nil
}

// Int returns the value of key as an int, or def when absent.
func (s Settings) Int(key string, def int) (int, error) {
	k, v, ok := s.lookup(key)
	if !ok {
		return def, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%s: %v is not a whole number", k, v)
	}
	return int(f), nil
}

// String returns the value of key as a string, or def when absent.
func (s Settings) String(key string, def string) string {
	_, v, ok := s.lookup(key)
	if !ok {
		return def
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprint(v)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	}
	return 0, fmt.Errorf("%v (%T) is not a number", v, v)
}
