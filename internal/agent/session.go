// Package agent composes the hosted model, the gateway tools, and the memory
// sync hooks into one conversational turn executor.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"agentcore-agent/internal/domain"
	"agentcore-agent/internal/integrations/mcp"
	"agentcore-agent/internal/memory"
)

// maxToolIterations bounds one Run against a model that keeps requesting
// tools.
const maxToolIterations = 8

// converseAPI is the minimal Bedrock runtime interface required by Session.
// *bedrockruntime.Client satisfies it.
type converseAPI interface {
	Converse(ctx context.Context, in *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// ToolClient is the gateway tool surface the session invokes.
type ToolClient interface {
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}

// ModelConfig selects the hosted model and its sampling parameters.
type ModelConfig struct {
	ModelID     string
	MaxTokens   int
	Temperature float64
}

// Session executes conversational turns. Hooks are invoked synchronously:
// once on session start and once per appended message, so turns reach the
// store in observation order.
type Session struct {
	api    converseAPI
	model  ModelConfig
	tools  ToolClient
	hooks  memory.SessionHooks
	log    *slog.Logger
	prompt string

	started  bool
	toolList []mcp.Tool
	messages []types.Message
}

// NewSession creates a Session. tools may be nil for a tool-less agent; hooks
// may be nil when no memory store is attached.
func NewSession(api converseAPI, model ModelConfig, tools ToolClient, hooks memory.SessionHooks, systemPrompt string, log *slog.Logger) (*Session, error) {
	if api == nil {
		return nil, errors.New("agent: model api must not be nil")
	}
	if strings.TrimSpace(model.ModelID) == "" {
		return nil, errors.New("agent: model id must not be empty")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		api:    api,
		model:  model,
		tools:  tools,
		hooks:  hooks,
		log:    log,
		prompt: systemPrompt,
	}, nil
}

// SystemPrompt returns the current instruction context.
func (s *Session) SystemPrompt() string { return s.prompt }

// SetSystemPrompt replaces the instruction context.
func (s *Session) SetSystemPrompt(p string) { s.prompt = p }

// Run executes one conversational turn and returns the assistant's answer.
func (s *Session) Run(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("agent: prompt must not be empty")
	}

	if !s.started {
		if s.hooks != nil {
			s.hooks.OnSessionStart(ctx, s)
		}
		if s.tools != nil {
			tools, err := s.tools.ListTools(ctx)
			if err != nil {
				return "", fmt.Errorf("agent: list gateway tools: %w", err)
			}
			s.toolList = tools
			s.log.Info("gateway tools loaded", "count", len(tools))
		}
		s.started = true
	}

	s.messages = append(s.messages, types.Message{
		Role:    types.ConversationRoleUser,
		Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: prompt}},
	})
	if s.hooks != nil {
		s.hooks.OnTurnAppended(ctx, domain.Turn{Role: domain.RoleUser, Text: prompt})
	}

	for i := 0; i < maxToolIterations; i++ {
		out, err := s.api.Converse(ctx, s.converseInput())
		if err != nil {
			return "", domain.NewError(domain.ErrorUpstream, "model_invocation_failed", err)
		}

		msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
		if !ok {
			return "", domain.NewError(domain.ErrorUpstream, "model_empty_output",
				errors.New("agent: converse output carried no message"))
		}
		s.messages = append(s.messages, msg.Value)

		if out.StopReason == types.StopReasonToolUse {
			results, err := s.executeToolUses(ctx, msg.Value)
			if err != nil {
				return "", err
			}
			s.messages = append(s.messages, types.Message{
				Role:    types.ConversationRoleUser,
				Content: results,
			})
			continue
		}

		answer := messageText(msg.Value)
		if s.hooks != nil {
			s.hooks.OnTurnAppended(ctx, domain.Turn{Role: domain.RoleAssistant, Text: answer})
		}
		return answer, nil
	}

	return "", domain.NewError(domain.ErrorUpstream, "tool_loop_exhausted",
		fmt.Errorf("agent: model requested tools for %d consecutive rounds", maxToolIterations))
}

func (s *Session) converseInput() *bedrockruntime.ConverseInput {
	in := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(s.model.ModelID),
		Messages: s.messages,
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(s.model.MaxTokens)),
			Temperature: aws.Float32(float32(s.model.Temperature)),
		},
	}
	if s.prompt != "" {
		in.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: s.prompt},
		}
	}
	if len(s.toolList) > 0 {
		in.ToolConfig = s.toolConfig()
	}
	return in
}

func (s *Session) toolConfig() *types.ToolConfiguration {
	tools := make([]types.Tool, 0, len(s.toolList))
	for _, tool := range s.toolList {
		var schema map[string]any
		if len(tool.InputSchema) > 0 {
			if err := json.Unmarshal(tool.InputSchema, &schema); err != nil {
				s.log.Warn("skipping tool with undecodable schema", "tool", tool.Name, "err", err)
				continue
			}
		}
		spec := types.ToolSpecification{
			Name:        aws.String(tool.Name),
			InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
		}
		if tool.Description != "" {
			spec.Description = aws.String(tool.Description)
		}
		tools = append(tools, &types.ToolMemberToolSpec{Value: spec})
	}
	return &types.ToolConfiguration{Tools: tools}
}

// executeToolUses runs every tool request in the assistant message against
// the gateway and packages the results for the next model round. A failing
// tool becomes an error-status result, not a turn failure; the model decides
// how to proceed.
func (s *Session) executeToolUses(ctx context.Context, msg types.Message) ([]types.ContentBlock, error) {
	var results []types.ContentBlock
	for _, block := range msg.Content {
		use, ok := block.(*types.ContentBlockMemberToolUse)
		if !ok {
			continue
		}
		name := aws.ToString(use.Value.Name)

		var args map[string]any
		if use.Value.Input != nil {
			if err := use.Value.Input.UnmarshalSmithyDocument(&args); err != nil {
				return nil, fmt.Errorf("agent: decode input for tool %q: %w", name, err)
			}
		}

		text, err := s.tools.CallTool(ctx, name, args)
		status := types.ToolResultStatusSuccess
		if err != nil {
			s.log.Warn("tool call failed", "tool", name, "err", err)
			text = err.Error()
			status = types.ToolResultStatusError
		}

		results = append(results, &types.ContentBlockMemberToolResult{
			Value: types.ToolResultBlock{
				ToolUseId: use.Value.ToolUseId,
				Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: text}},
				Status:    status,
			},
		})
	}
	if len(results) == 0 {
		return nil, errors.New("agent: stop reason was tool use but no tool blocks present")
	}
	return results, nil
}

// messageText concatenates the text blocks of an assistant message.
func messageText(msg types.Message) string {
	var parts []string
	for _, block := range msg.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok && text.Value != "" {
			parts = append(parts, text.Value)
		}
	}
	return strings.Join(parts, "\n")
}
