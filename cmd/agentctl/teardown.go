package main

import (
	"github.com/spf13/cobra"

	"agentcore-agent/internal/gateway"
)

func newTeardownCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "teardown",
		Short: "Remove the gateway, its targets, roles, function and client secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			return a.reconciler.Teardown(ctx, gateway.TeardownInput{
				GatewayName:  a.cfg.Gateway.Name,
				FunctionName: a.cfg.Lambda.FunctionName,
				RoleName:     a.cfg.Lambda.RoleName,
			})
		},
	}
}
