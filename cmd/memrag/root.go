package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kailas-cloud/memrag/internal/config"
	logpkg "github.com/kailas-cloud/memrag/internal/logger"
)

// Viper keys.
const (
	keyEnv      = "env"
	keySession  = "session"
	keyLogLevel = "log_level"
)

// annotationLogToFile marks commands whose logs must not reach the terminal.
const annotationLogToFile = "log_to_file"

// rootOptions holds the state resolved before any subcommand runs.
type rootOptions struct {
	v      *viper.Viper
	env    string
	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	root := &cobra.Command{
		Use:           "memrag",
		Short:         "memrag: perguntas e respostas sobre documentos jurídicos com memória de conversa",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.String("env", "", "configuration environment (config/<env>.yaml), default local")
	pf.String("session", "", "session id to resume; empty starts a new session")
	pf.String("log-level", "", "log level override: debug, info, warn, error")

	// Flags override environment variables, which override the YAML file.
	_ = opts.v.BindPFlag(keyEnv, pf.Lookup("env"))
	_ = opts.v.BindPFlag(keySession, pf.Lookup("session"))
	_ = opts.v.BindPFlag(keyLogLevel, pf.Lookup("log-level"))
	_ = opts.v.BindEnv(keyEnv, "MEMRAG_ENV", "ENV")
	_ = opts.v.BindEnv(keySession, "MEMRAG_SESSION_ID", "SESSION_ID")
	_ = opts.v.BindEnv(keyLogLevel, "MEMRAG_LOG_LEVEL")

	root.AddCommand(
		newIngestCmd(opts),
		newAskCmd(opts),
		newChatCmd(opts),
		newServeCmd(opts),
		newConvertCmd(opts),
		newDedupeCmd(opts),
		newSessionCmd(opts),
		newCacheCmd(opts),
		newVersionCmd(),
	)
	return root
}

// load resolves the environment, reads the config and builds the logger.
func (o *rootOptions) load(cmd *cobra.Command) error {
	if cmd.Name() == "version" {
		return nil
	}

	o.env = o.v.GetString(keyEnv)
	if o.env == "" {
		o.env = config.GetEnv()
	}

	cfg, err := config.Load(o.env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	o.cfg = cfg

	level := o.v.GetString(keyLogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}

	if cmd.Annotations[annotationLogToFile] == "true" {
		if err := os.MkdirAll(cfg.Storage.DataDir, 0o750); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		o.logger, err = logpkg.NewFileLogger(o.env, filepath.Join(cfg.Storage.DataDir, "memrag.log"), level)
	} else {
		o.logger, err = logpkg.NewLogger(o.env, level)
	}
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	return nil
}

// sessionID returns the requested session id, read after .env has been loaded.
func (o *rootOptions) sessionID() string {
	return o.v.GetString(keySession)
}
