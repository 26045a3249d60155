package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"agentcore-agent/internal/identity"
	"agentcore-agent/internal/secrets"
)

func newUserAuthCmd(configPath *string) *cobra.Command {
	var username, password, email string

	cmd := &cobra.Command{
		Use:   "user-auth",
		Short: "Create (or reuse) a test user and exchange its password for tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUserAuth(cmd.Context(), *configPath, username, password, email)
		},
	}
	cmd.Flags().StringVar(&username, "username", "testuser", "user pool username")
	cmd.Flags().StringVar(&password, "password", "", "permanent password to set and authenticate with")
	cmd.Flags().StringVar(&email, "email", "", "email attribute for the user")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func runUserAuth(ctx context.Context, configPath, username, password, email string) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	gatewayName := a.cfg.Gateway.Name

	client, err := a.reconciler.ClientInfoFromGateway(ctx, gatewayName)
	if err != nil {
		return err
	}
	if client.UserPoolID == "" {
		return errors.New("could not determine the user pool backing the gateway authorizer")
	}

	clientSecret, err := a.secrets.Get(ctx, secrets.NameForGateway(gatewayName))
	if err != nil {
		return err
	}

	if email == "" {
		email = username + "@example.com"
	}
	if err := a.idp.EnsureUser(ctx, client.UserPoolID, username, password, email); err != nil {
		return err
	}
	a.idp.EnableUserPasswordAuth(ctx, client.UserPoolID, client.ClientID)

	pair, err := a.idp.PasswordToken(ctx, client.ClientID, clientSecret, username, password)
	if err != nil {
		return err
	}

	actor := identity.DeriveActorIdentity(pair.AccessToken)
	a.log.Info("authenticated",
		"username", username,
		"actor_id", actor.ActorID,
		"sub", actor.Subject,
	)
	fmt.Println(pair.AccessToken)
	return nil
}
