package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-realtime/internal/app"
	"github.com/vovakirdan/wirechat-realtime/internal/auth"
)

func newTokenCmd(configPath *string) *cobra.Command {
	var (
		userID   string
		name     string
		phone    string
		password string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for a user",
		Long: "Print a bearer token. With --user the token is minted directly; " +
			"with --phone and --password the credentials are checked against the store.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			var token string
			switch {
			case userID != "":
				token, err = auth.NewService(nil, app.JWTConfig(cfg)).IssueToken(userID, name)
			case phone != "":
				application, appErr := app.New(cfg, logger)
				if appErr != nil {
					return appErr
				}
				defer application.Close()
				token, err = application.Auth().Login(context.Background(), phone, password)
			default:
				return errors.New("either --user or --phone is required")
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id (token subject)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "display name claim")
	cmd.Flags().StringVar(&phone, "phone", "", "phone number to log in with")
	cmd.Flags().StringVar(&password, "password", "", "password to log in with")
	return cmd
}
