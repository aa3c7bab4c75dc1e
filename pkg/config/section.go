package config

import "fmt"

// Section is one named group of settings persisted in the config file.
type Section interface {
	// ID returns the unique key the section is stored under.
	ID() string

	// Title returns a human-readable title.
	Title() string

	// Description explains what the section controls.
	Description() string

	// Data returns the section's current settings in store form.
	Data() map[string]interface{}

	// SetData updates the section from store form. Missing keys keep their values.
	SetData(data map[string]interface{}) error

	// Validate reports whether the current settings are usable.
	Validate() error

	// Reset restores defaults.
	Reset()
}

// stringSlice converts a decoded JSON array into []string.
func stringSlice(key string, v interface{}) ([]string, error) {
	switch items := v.(type) {
	case []string:
		out := make([]string, len(items))
		copy(out, items)
		return out, nil
	case []interface{}:
		out := make([]string, 0, len(items))
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("invalid %s at index %d: expected string, got %T", key, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("invalid %s type: expected array, got %T", key, v)
	}
}

// intValue accepts the numeric shapes a JSON decode or a caller may produce.
func intValue(key string, v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("invalid %s type: expected number, got %T", key, v)
	}
}
