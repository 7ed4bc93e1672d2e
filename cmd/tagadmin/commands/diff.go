package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tagset/internal/domain"
)

func (a *app) diffCmd() *cobra.Command {
	var from, to []string
	cmd := &cobra.Command{
		Use:   "diff KIND FIELD --from CODES --to CODES",
		Short: "diff - Prints the tags to add and remove to turn one value into another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(_ domain.TagSetService, b *Backend) error {
				ctx := cmd.Context()
				logger := a.logger(cmd)
				sets := make([]*domain.TagSet, 2)
				for i, codes := range [][]string{from, to} {
					set, err := domain.NewTagSet(ctx, b.Tags, b.Tags, logger, args[0], args[1], 0)
					if err != nil {
						return err
					}
					if err := set.SetValue(ctx, codes); err != nil {
						return err
					}
					sets[i] = set
				}
				delta, err := sets[0].Delta(ctx, sets[1])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "from:    %s\n", sets[0])
				fmt.Fprintf(out, "to:      %s\n", sets[1])
				fmt.Fprintf(out, "added:   %s\n", strings.Join(delta.Added, " "))
				fmt.Fprintf(out, "removed: %s\n", strings.Join(delta.Removed, " "))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&from, "from", nil, "Comma separated codes of the current value")
	cmd.Flags().StringSliceVar(&to, "to", nil, "Comma separated codes of the wanted value")
	return cmd
}
