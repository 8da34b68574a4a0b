package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/memrag/internal/tui"
	"github.com/kailas-cloud/memrag/internal/usecase/memory"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:         "chat",
		Short:       "Interactive multi-turn chat",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationLogToFile: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, opts.cfg, opts.logger, true)
			if err != nil {
				return err
			}
			defer a.Close()

			c, err := a.loadCorpus()
			if err != nil {
				return err
			}
			mem, err := memory.Open(ctx, a.memoryDeps(), opts.sessionID())
			if err != nil {
				return fmt.Errorf("open session: %w", err)
			}

			port := sessionAnswerer{svc: a.answerService(c), mem: mem}
			m := tui.New(ctx, port, mem.SessionID())
			if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
				return fmt.Errorf("run chat: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sessão: %s\n", mem.SessionID())
			return nil
		},
	}
}
