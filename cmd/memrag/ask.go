package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	answeruc "github.com/kailas-cloud/memrag/internal/usecase/answer"
	"github.com/kailas-cloud/memrag/internal/usecase/memory"
	memragsdk "github.com/kailas-cloud/memrag/pkg/sdk"
)

const keyAPIKey = "api_key"

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		showSources bool
		server      string
	)

	cmd := &cobra.Command{
		Use:   "ask <pergunta>",
		Short: "Answer a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			if server != "" {
				return askRemote(cmd, server, opts.v.GetString(keyAPIKey), opts.sessionID(), query, showSources)
			}
			return askLocal(cmd, opts, query, showSources)
		},
	}
	cmd.Flags().BoolVar(&showSources, "sources", false, "list the excerpts used for the answer")
	cmd.Flags().StringVar(&server, "server", "", "ask a running memrag server at this URL instead of the local index")
	_ = opts.v.BindEnv(keyAPIKey, "MEMRAG_API_KEY")
	return cmd
}

func askLocal(cmd *cobra.Command, opts *rootOptions, query string, showSources bool) error {
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

	reply, err := a.answerService(c).Compose(ctx, mem, query)
	out := cmd.OutOrStdout()
	if reply.Text != "" {
		fmt.Fprintln(out, reply.Text)
	}
	if err == nil && showSources {
		printSources(out, toSDKSources(reply.Sources))
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "sessão: %s\n", mem.SessionID())
	if err != nil && reply.Degraded {
		return reportedError{err}
	}
	return err
}

func askRemote(cmd *cobra.Command, server, apiKey, sessionID, query string, showSources bool) error {
	client, err := memragsdk.New(server, memragsdk.WithAPIKey(apiKey))
	if err != nil {
		return err
	}
	ans, err := client.Answer(cmd.Context(), sessionID, query)
	out := cmd.OutOrStdout()
	if err != nil {
		var apiErr *memragsdk.APIError
		if errors.As(err, &apiErr) && apiErr.Answer != "" {
			fmt.Fprintln(out, apiErr.Answer)
			return reportedError{err}
		}
		return err
	}
	fmt.Fprintln(out, ans.Text)
	if showSources {
		printSources(out, ans.Sources)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "sessão: %s\n", ans.SessionID)
	return nil
}

func printSources(out io.Writer, sources []memragsdk.Source) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(out, "\nFontes:")
	for _, s := range sources {
		fmt.Fprintf(out, "  - %s (%.3f)\n", s.Display, s.Score)
	}
}

func toSDKSources(in []answeruc.Source) []memragsdk.Source {
	out := make([]memragsdk.Source, len(in))
	for i, s := range in {
		out[i] = memragsdk.Source{ID: s.ID, Display: s.Display, Score: s.Score}
	}
	return out
}
