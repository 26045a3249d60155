package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"agentcore-agent/internal/agent"
	"agentcore-agent/internal/integrations/mcp"
	"agentcore-agent/internal/memory"
)

func newChatCmd(configPath *string) *cobra.Command {
	var actorID, sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation against the provisioned gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.Context(), *configPath, actorID, sessionID)
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor id for the conversation store")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id for the conversation store")

	return cmd
}

func runChat(ctx context.Context, configPath, actorID, sessionID string) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	cfg := a.cfg

	if actorID == "" {
		actorID = cfg.Memory.DefaultActorID
	}
	if sessionID == "" {
		sessionID = cfg.Memory.DefaultSessionID
	}

	memoryID, err := a.memories.EnsureMemory(ctx, cfg.Memory.Name, cfg.Memory.Description, cfg.Memory.EventExpiryDays)
	if err != nil {
		return err
	}

	gatewayURL, err := a.reconciler.ResolveURL(ctx, a.params, cfg.Gateway.ParamPrefix, cfg.Gateway.Name)
	if err != nil {
		return err
	}
	client, err := a.reconciler.ClientInfoFromGateway(ctx, cfg.Gateway.Name)
	if err != nil {
		return err
	}
	token, err := a.reconciler.AccessToken(ctx, cfg.Gateway.Name, client)
	if err != nil {
		return err
	}
	toolClient, err := mcp.NewClient(gatewayURL, token)
	if err != nil {
		return err
	}

	handle, err := memory.NewSessionHandle(a.events, memoryID, actorID, sessionID)
	if err != nil {
		return err
	}
	hooks, err := memory.NewHooks(handle, a.log)
	if err != nil {
		return err
	}

	session, err := agent.NewSession(a.model, agent.ModelConfig{
		ModelID:     cfg.Model.ModelID,
		MaxTokens:   cfg.Model.MaxTokens,
		Temperature: cfg.Model.Temperature,
	}, toolClient, hooks, agent.DefaultSystemPrompt, a.log)
	if err != nil {
		return err
	}

	fmt.Println("Chat started. Type 'exit' to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		answer, err := session.Run(ctx, line)
		if err != nil {
			a.log.Error("turn failed", "err", err)
			continue
		}
		fmt.Println(answer)
	}
	return scanner.Err()
}
