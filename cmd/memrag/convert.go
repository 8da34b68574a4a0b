package main

import (
	"fmt"

	"github.com/spf13/cobra"

	convertuc "github.com/kailas-cloud/memrag/internal/usecase/convert"
)

func newConvertCmd(opts *rootOptions) *cobra.Command {
	var srcDir, docsDir string

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert source documents (e.g. PDF) to markdown in the documents directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if srcDir == "" {
				srcDir = opts.cfg.Converter.SourceDir
			}
			if docsDir == "" {
				docsDir = opts.cfg.Storage.DocsDir
			}

			rep, err := newConvertService(opts.cfg, opts.logger).Convert(cmd.Context(), srcDir, docsDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Convertidos: %d, já existentes: %d, falhas: %d\n",
				len(rep.Converted), len(rep.Skipped), len(rep.Failed))
			for _, name := range rep.Failed {
				fmt.Fprintf(cmd.OutOrStdout(), "  falhou: %s\n", name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&srcDir, "src", "", "source directory (default converter.source_dir)")
	cmd.Flags().StringVar(&docsDir, "docs", "", "output directory (default storage.docs_dir)")
	return cmd
}

func newDedupeCmd(opts *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "dedupe [dir]",
		Short: "Remove duplicate markdown files produced from the same PDF",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := opts.cfg.Storage.DocsDir
			if len(args) == 1 {
				dir = args[0]
			}

			removed, err := convertuc.Dedupe(dir, dryRun, opts.logger)
			if err != nil {
				return err
			}
			verb := "Removidos"
			if dryRun {
				verb = "Seriam removidos"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d duplicados em %s\n", verb, len(removed), dir)
			for _, name := range removed {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only list what would be removed")
	return cmd
}
