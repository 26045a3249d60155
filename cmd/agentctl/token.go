package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTokenCmd(configPath *string) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a gateway access token",
		Long: "Print a gateway access token. Without credentials the client-credentials\n" +
			"grant runs against the authorizer's token endpoint; with --username and\n" +
			"--password the password grant is used instead.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}

			client, err := a.reconciler.ClientInfoFromGateway(ctx, a.cfg.Gateway.Name)
			if err != nil {
				return err
			}
			client.Username = username
			client.Password = password

			token, err := a.reconciler.AccessToken(ctx, a.cfg.Gateway.Name, client)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "use the password grant with this username")
	cmd.Flags().StringVar(&password, "password", "", "password for the password grant")

	return cmd
}
