package main

import (
	"context"
	"log/slog"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"agentcore-agent/internal/tools"
)

// clientContextToolKey is the custom client-context key the gateway uses to
// tell the function which tool is being invoked.
const clientContextToolKey = "bedrockAgentCoreToolName"

func handle(ctx context.Context, event map[string]any) (map[string]any, error) {
	toolName := ""
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		toolName = lc.ClientContext.Custom[clientContextToolKey]
	}

	slog.Info("tool invocation", "tool", tools.BareToolName(toolName), "qualified", toolName)
	return tools.Dispatch(toolName, event), nil
}

func main() {
	lambda.Start(handle)
}
