package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tagset/internal/domain"
)

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check KIND FIELD CODE...",
		Short: "check - Reports the codes that are not allowed for a field",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(svc domain.TagSetService, _ *Backend) error {
				invalid, err := svc.CheckTags(cmd.Context(), args[0], args[1], args[2:])
				if err != nil {
					return err
				}
				if len(invalid) > 0 {
					return fmt.Errorf("not allowed for %s:%s: %s: %w", args[0], args[1], strings.Join(invalid, " "), domain.ErrInvalidValue)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "all tags allowed")
				return nil
			})
		},
	}
}
