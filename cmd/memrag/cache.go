package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the embedding and completion caches",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every cached embedding and completion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Providers are not needed, only the configured cache backend.
			a := &app{cfg: opts.cfg, logger: opts.logger}
			if err := a.openCache(cmd.Context()); err != nil {
				return err
			}
			defer a.Close()

			if err := a.cache.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cache %s limpo\n", opts.cfg.Cache.Driver)
			return nil
		},
	})
	return cmd
}
