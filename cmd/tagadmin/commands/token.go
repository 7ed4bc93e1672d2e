package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tagset/internal/adapters/auth"
)

func (a *app) tokenCmd() *cobra.Command {
	var (
		subject string
		roles   []string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "token - Issues an API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret := a.v.GetString(jwtSecretKey)
			if secret == "" {
				return errors.New("jwt secret is required (--jwt-secret or JWT_SECRET)")
			}
			token, err := auth.NewJWT(secret).Issue(subject, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Subject the token is issued to")
	_ = cmd.MarkFlagRequired("subject")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "Roles carried by the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	cmd.Flags().String(jwtSecretKey, "", "HS256 signing secret")
	_ = a.v.BindPFlag(jwtSecretKey, cmd.Flags().Lookup(jwtSecretKey))
	return cmd
}
