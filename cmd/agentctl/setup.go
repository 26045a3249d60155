package main

import (
	"context"

	"github.com/spf13/cobra"

	"agentcore-agent/internal/domain"
	"agentcore-agent/internal/gateway"
	"agentcore-agent/internal/tools"
)

func newSetupCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Provision the conversation store, authorizer, gateway and tool target",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSetup(cmd.Context(), *configPath)
		},
	}
}

// runSetup drives the full provisioning chain. Every step is idempotent, so
// a re-run after a partial failure converges on the same resources.
func runSetup(ctx context.Context, configPath string) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	cfg := a.cfg

	memoryID, err := a.memories.EnsureMemory(ctx, cfg.Memory.Name, cfg.Memory.Description, cfg.Memory.EventExpiryDays)
	if err != nil {
		return err
	}
	a.log.Info("conversation store ready", "memory_id", memoryID)

	setup, err := a.reconciler.SetupAuthorizer(ctx, cfg.Gateway.Name)
	if err != nil {
		return err
	}
	a.log.Info("authorizer ready",
		"client_id", setup.Client.ClientID,
		"user_pool_id", setup.Client.UserPoolID,
	)

	gw, err := a.reconciler.EnsureGateway(ctx, cfg.Gateway.Name, setup.Authorizer)
	if err != nil {
		return err
	}
	a.log.Info("gateway ready", "id", gw.ID, "url", gw.URL)

	lambdaARN, err := a.functions.ARN(ctx, cfg.Lambda.FunctionName)
	if err != nil {
		return err
	}

	schema, err := loadToolSchema(cfg.Gateway.ToolSchemaPath)
	if err != nil {
		return err
	}

	target, err := a.reconciler.EnsureLambdaTarget(ctx, gw, cfg.Gateway.TargetName, lambdaARN, schema)
	if err != nil {
		return err
	}
	a.log.Info("tool target ready", "id", target.ID)

	if err := a.params.PutParameter(ctx, gateway.IDParameterName(cfg.Gateway.ParamPrefix, cfg.Gateway.Name), gw.ID); err != nil {
		return err
	}
	if err := a.params.PutParameter(ctx, gateway.URLParameterName(cfg.Gateway.ParamPrefix, cfg.Gateway.Name), gw.URL); err != nil {
		return err
	}

	a.log.Info("setup completed", "gateway", cfg.Gateway.Name)
	return nil
}

// loadToolSchema reads the schema file when one is configured, falling back
// to the built-in tool set shipped with the Lambda executor.
func loadToolSchema(path string) (domain.ToolSchema, error) {
	if path == "" {
		return tools.Schema(), nil
	}
	return domain.LoadToolSchema(path)
}
