// Package host exposes the native operations of the desktop shell as named
// commands a UI can invoke with JSON arguments.
package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Command is a single operation a UI can invoke by name.
type Command interface {
	// Name returns the identifier the UI invokes (e.g., "execute_command")
	Name() string

	// Description returns a human-readable description of what this command does
	Description() string

	// Schema returns the JSON schema for this command's arguments
	Schema() map[string]interface{}

	// Invoke runs the command with the given JSON arguments.
	// The returned value is serialized to JSON for the UI.
	Invoke(ctx context.Context, args json.RawMessage) (interface{}, error)
}

// BaseSchema creates a common JSON schema structure for a command
// with the given properties and required fields
func BaseSchema(properties map[string]interface{}, required []string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// decodeArgs unmarshals args into v. Missing or null arguments leave v untouched.
func decodeArgs(args json.RawMessage, v interface{}) error {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
