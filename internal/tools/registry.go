// Package tools implements the Lambda-side tool executor and the schema
// document registered with the gateway target.
package tools

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"agentcore-agent/internal/domain"
)

// ToolNameDelimiter separates the target prefix from the bare tool name in
// the qualified name the gateway hands to the function.
const ToolNameDelimiter = "___"

const (
	toolCalculator     = "calculator"
	toolGetCurrentTime = "get_current_time"
)

// now is swapped out in tests.
var now = time.Now

// BareToolName strips the target prefix from a qualified tool name.
func BareToolName(qualified string) string {
	if i := strings.Index(qualified, ToolNameDelimiter); i >= 0 {
		return qualified[i+len(ToolNameDelimiter):]
	}
	return qualified
}

// Dispatch executes the named tool against its event payload. Every outcome
// is a JSON-shaped map: {"result": ...} on success, {"error": ...} otherwise.
func Dispatch(toolName string, event map[string]any) map[string]any {
	switch BareToolName(toolName) {
	case toolCalculator:
		expression, _ := event["expression"].(string)
		if strings.TrimSpace(expression) == "" {
			return map[string]any{"error": "Missing required parameter: expression"}
		}
		v, err := Evaluate(expression)
		if err != nil {
			return map[string]any{"error": err.Error()}
		}
		return map[string]any{"result": FormatResult(v)}

	case toolGetCurrentTime:
		return map[string]any{"result": now().Format("2006-01-02 15:04:05")}

	default:
		return map[string]any{"error": fmt.Sprintf("Unknown tool: %s", BareToolName(toolName))}
	}
}

// schemaJSON is the tool schema document handed unmodified into target
// creation.
const schemaJSON = `{
  "tools": [
    {
      "name": "calculator",
      "description": "Evaluates a mathematical expression.",
      "input_schema": {
        "type": "object",
        "properties": {
          "expression": {
            "type": "string",
            "description": "Mathematical expression to evaluate"
          }
        },
        "required": ["expression"]
      }
    },
    {
      "name": "get_current_time",
      "description": "Returns the current date and time.",
      "input_schema": {
        "type": "object",
        "properties": {}
      }
    }
  ]
}`

// Schema returns the built-in tool schema document.
func Schema() domain.ToolSchema {
	var schema domain.ToolSchema
	// The constant is validated by tests; decoding cannot fail at runtime.
	if err := json.Unmarshal([]byte(schemaJSON), &schema); err != nil {
		panic(err)
	}
	return schema
}
