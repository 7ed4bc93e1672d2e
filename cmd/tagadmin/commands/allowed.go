package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tagset/internal/domain"
)

func (a *app) allowedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "allowed",
		Short:   "allowed manages the allow-list of a tag field",
		Aliases: []string{"allow-list"},
	}

	var page, pageSize int
	list := &cobra.Command{
		Use:   "list KIND FIELD",
		Short: "list - Lists the allowed tags of a field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(svc domain.TagSetService, _ *Backend) error {
				params := domain.PaginationParams{Page: page, PageSize: pageSize}
				tags, total, err := svc.ListAllowedTags(cmd.Context(), args[0], args[1], params)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "CODE\tLABEL\tDESCRIPTION")
				for _, tag := range tags {
					fmt.Fprintf(w, "%s\t%s\t%s\n", tag.Code, tag.Label, tag.Description)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d of %d tags\n", len(tags), total)
				return nil
			})
		},
	}
	list.Flags().IntVar(&page, "page", 1, "Page number")
	list.Flags().IntVar(&pageSize, "page-size", 100, "Tags per page")

	var description string
	add := &cobra.Command{
		Use:   "add KIND FIELD CODE LABEL",
		Short: "add - Adds a tag to the allow-list of a field",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(svc domain.TagSetService, _ *Backend) error {
				tag := &domain.Tag{Code: args[2], Label: args[3], Description: description}
				if err := svc.CreateAllowedTag(cmd.Context(), args[0], args[1], tag); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s) to %s:%s\n", tag.Code, tag.Label, args[0], args[1])
				return nil
			})
		},
	}
	add.Flags().StringVar(&description, "description", "", "Description of the tag")

	relabel := &cobra.Command{
		Use:   "relabel KIND FIELD CODE LABEL",
		Short: "relabel - Changes the label of an allowed tag",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(svc domain.TagSetService, _ *Backend) error {
				if err := svc.RelabelAllowedTag(cmd.Context(), args[0], args[1], args[2], args[3]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "relabeled %s to %s\n", args[2], args[3])
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete KIND FIELD CODE",
		Short: "delete - Removes a tag from the allow-list of a field",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(svc domain.TagSetService, _ *Backend) error {
				if err := svc.DeleteAllowedTag(cmd.Context(), args[0], args[1], args[2]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s from %s:%s\n", args[2], args[0], args[1])
				return nil
			})
		},
	}

	cmd.AddCommand(list, add, relabel, del)
	return cmd
}
