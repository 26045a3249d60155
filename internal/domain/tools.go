package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ToolDescriptor describes one callable tool. InputSchema is a JSON Schema
// fragment handed unmodified into target creation.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolSchema is the document registered with a gateway target.
type ToolSchema struct {
	Tools []ToolDescriptor `json:"tools"`
}

// LoadToolSchema reads and validates a tool schema document from disk.
func LoadToolSchema(path string) (ToolSchema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ToolSchema{}, fmt.Errorf("domain: read tool schema %q: %w", path, err)
	}
	return ParseToolSchema(raw)
}

// ParseToolSchema decodes a tool schema document and rejects empty or
// incomplete descriptors.
func ParseToolSchema(raw []byte) (ToolSchema, error) {
	var schema ToolSchema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return ToolSchema{}, fmt.Errorf("domain: decode tool schema: %w", err)
	}
	if len(schema.Tools) == 0 {
		return ToolSchema{}, errors.New("domain: tool schema has no tools")
	}
	for i, t := range schema.Tools {
		if t.Name == "" {
			return ToolSchema{}, fmt.Errorf("domain: tool %d has no name", i)
		}
		if len(t.InputSchema) == 0 {
			return ToolSchema{}, fmt.Errorf("domain: tool %q has no input schema", t.Name)
		}
	}
	return schema, nil
}
