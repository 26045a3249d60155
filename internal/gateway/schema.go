package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcorecontrol/types"

	"agentcore-agent/internal/domain"
)

// jsonSchema is the subset of JSON Schema the gateway target accepts.
type jsonSchema struct {
	Type        string                `json:"type"`
	Description string                `json:"description,omitempty"`
	Properties  map[string]jsonSchema `json:"properties,omitempty"`
	Required    []string              `json:"required,omitempty"`
	Items       *jsonSchema           `json:"items,omitempty"`
}

// toolDefinitions converts a tool schema document into the control-plane
// inline payload format. The document is handed over structurally unchanged.
func toolDefinitions(schema domain.ToolSchema) ([]types.ToolDefinition, error) {
	defs := make([]types.ToolDefinition, 0, len(schema.Tools))
	for _, tool := range schema.Tools {
		var js jsonSchema
		if err := json.Unmarshal(tool.InputSchema, &js); err != nil {
			return nil, fmt.Errorf("tool %q input schema: %w", tool.Name, err)
		}
		sd, err := schemaDefinition(js)
		if err != nil {
			return nil, fmt.Errorf("tool %q input schema: %w", tool.Name, err)
		}
		defs = append(defs, types.ToolDefinition{
			Name:        aws.String(tool.Name),
			Description: aws.String(tool.Description),
			InputSchema: sd,
		})
	}
	return defs, nil
}

func schemaDefinition(js jsonSchema) (*types.SchemaDefinition, error) {
	if js.Type == "" {
		return nil, fmt.Errorf("schema node missing type")
	}
	sd := &types.SchemaDefinition{
		Type:     types.SchemaType(js.Type),
		Required: js.Required,
	}
	if js.Description != "" {
		sd.Description = aws.String(js.Description)
	}
	if len(js.Properties) > 0 {
		sd.Properties = make(map[string]types.SchemaDefinition, len(js.Properties))
		for name, prop := range js.Properties {
			child, err := schemaDefinition(prop)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", name, err)
			}
			sd.Properties[name] = *child
		}
	}
	if js.Items != nil {
		child, err := schemaDefinition(*js.Items)
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		sd.Items = child
	}
	return sd, nil
}
