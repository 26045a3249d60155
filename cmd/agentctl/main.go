// agentctl provisions and operates the tool gateway: setup, user
// authentication, token exchange, teardown, and a local chat loop.
package main

import (
	"context"
	"log/slog"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcorecontrol"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/spf13/cobra"

	"agentcore-agent/internal/config"
	"agentcore-agent/internal/gateway"
	"agentcore-agent/internal/identity"
	"agentcore-agent/internal/integrations/paramstore"
	"agentcore-agent/internal/memory"
	"agentcore-agent/internal/secrets"
)

// app bundles the wired clients every subcommand needs.
type app struct {
	cfg        config.Config
	log        *slog.Logger
	reconciler *gateway.Reconciler
	idp        *identity.Client
	secrets    *secrets.Store
	memories   *memory.Manager
	functions  *gateway.FunctionClient
	params     *paramstore.Client
	events     *bedrockagentcore.Client
	model      *bedrockruntime.Client
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	log := slog.Default()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, err
	}

	control := bedrockagentcorecontrol.NewFromConfig(awsCfg)

	secretStore, err := secrets.New(secretsmanager.NewFromConfig(awsCfg), log)
	if err != nil {
		return nil, err
	}
	idp, err := identity.NewClient(cognitoidentityprovider.NewFromConfig(awsCfg), cfg.AWS.Region, log)
	if err != nil {
		return nil, err
	}
	roles, err := gateway.NewRoleManager(iam.NewFromConfig(awsCfg), log)
	if err != nil {
		return nil, err
	}
	functions, err := gateway.NewFunctionClient(awslambda.NewFromConfig(awsCfg), log)
	if err != nil {
		return nil, err
	}
	reconciler, err := gateway.New(control, idp, secretStore, roles, functions, cfg.AWS.Region, log, nil)
	if err != nil {
		return nil, err
	}
	memories, err := memory.NewManager(control, log)
	if err != nil {
		return nil, err
	}
	params, err := paramstore.New(ssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:        cfg,
		log:        log,
		reconciler: reconciler,
		idp:        idp,
		secrets:    secretStore,
		memories:   memories,
		functions:  functions,
		params:     params,
		events:     bedrockagentcore.NewFromConfig(awsCfg),
		model:      bedrockruntime.NewFromConfig(awsCfg),
	}, nil
}

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "agentctl",
		Short:         "Provision and operate the agent tool gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	root.AddCommand(
		newSetupCmd(&configPath),
		newTeardownCmd(&configPath),
		newUserAuthCmd(&configPath),
		newTokenCmd(&configPath),
		newChatCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}
