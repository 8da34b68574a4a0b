package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var docsDir string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Chunk, embed and index the documents directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if docsDir == "" {
				docsDir = opts.cfg.Storage.DocsDir
			}

			a, err := newApp(ctx, opts.cfg, opts.logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := a.ingestService()
			if err != nil {
				return err
			}
			res, err := svc.Run(ctx, docsDir)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			if res.Empty {
				fmt.Fprintf(cmd.OutOrStdout(), "Nenhum documento em %s; índice vazio gravado.\n", docsDir)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexados %d trechos de %d documentos (%d ignorados) em %s.\n",
				res.Chunks, res.Sources, res.Skipped, res.Duration.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVar(&docsDir, "docs", "", "documents directory (default storage.docs_dir)")
	return cmd
}
