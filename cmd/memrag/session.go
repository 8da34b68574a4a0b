package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/memrag/internal/repository/session"
)

func newSessionCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and delete stored conversation sessions",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored session ids",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ids, err := session.NewRepo(opts.cfg.Storage.SessionsDir).List()
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Print a session history",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				turns, err := session.NewRepo(opts.cfg.Storage.SessionsDir).Get(args[0])
				if err != nil {
					return err
				}
				for _, t := range turns {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", t.Role, t.Content)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "rm <id>",
			Short: "Delete a session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := session.NewRepo(opts.cfg.Storage.SessionsDir).Delete(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "sessão %s removida\n", args[0])
				return nil
			},
		},
	)
	return cmd
}
