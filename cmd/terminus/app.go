package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tailored-agentic-units/terminus/core/config"
	"github.com/tailored-agentic-units/terminus/journal"
	"github.com/tailored-agentic-units/terminus/kernel"
	"github.com/tailored-agentic-units/terminus/observability"
	"github.com/tailored-agentic-units/terminus/repl"
	"github.com/tailored-agentic-units/terminus/session"
	"github.com/tailored-agentic-units/terminus/ui"
)

// loadConfig reads the config file, applies command-line overrides, and
// exports the env section.
func loadConfig() (*kernel.Config, error) {
	path := configPath
	if path == "" {
		p, err := kernel.DefaultConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path: %w", err)
		}
		path = p
	}

	cfg, err := kernel.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	applyFlags(cfg)

	if err := cfg.ExportEnv(); err != nil {
		return nil, err
	}
	logger.Debug("config loaded",
		zap.String("path", path),
		zap.String("provider", cfg.Agent.Provider),
		zap.String("model", cfg.Agent.Model),
		zap.String("observer", cfg.Observer),
	)
	return cfg, nil
}

func applyFlags(cfg *kernel.Config) {
	if modelFlag != "" {
		cfg.Agent.Merge(&config.AgentConfig{Model: modelFlag})
	}
	if workDir != "" {
		cfg.Session.WorkingDirectory = workDir
	}
	if yoloFlag {
		cfg.Session.AutoApprove = true
	}
	if noJournal {
		cfg.Journal.Disabled = true
	}
	if debug {
		cfg.Observer = "zap"
	}
}

// openJournal opens the transcript journal, or returns nil when it is
// disabled. A journal that cannot be opened is reported and skipped.
func openJournal(cfg *kernel.Config, warn io.Writer) *journal.Journal {
	if cfg.Journal.Disabled {
		return nil
	}
	path, err := cfg.Journal.Location()
	if err != nil {
		fmt.Fprintf(warn, "journal disabled: %v\n", err)
		return nil
	}

	obs, err := observability.GetObserver(cfg.Observer)
	if err != nil {
		obs = observability.NoOpObserver{}
	}
	j, err := journal.Open(path, journal.WithObserver(obs))
	if err != nil {
		fmt.Fprintf(warn, "journal disabled: %v\n", err)
		return nil
	}
	return j
}

func newSession(k *kernel.Kernel, j *journal.Journal) (session.Session, error) {
	var opts []session.Option
	if j != nil {
		opts = append(opts, session.WithRecorder(j))
	}
	return k.NewSession(opts...)
}

func runInteractive(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	console, err := ui.NewConsole(os.Stdout)
	if err != nil {
		return err
	}
	r := repl.New(console, ui.NewLineReader(os.Stdin, os.Stdout))

	k, err := kernel.New(cfg, kernel.WithPrompter(r.Prompter()))
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer k.Close()

	// The default backend is created lazily; build it now so a bad provider
	// or missing credential fails at startup.
	if _, err := k.Backend(""); err != nil {
		return fmt.Errorf("failed to create backend: %w", err)
	}

	j := openJournal(cfg, cmd.ErrOrStderr())
	if j != nil {
		defer j.Close()
	}

	sess, err := newSession(k, j)
	if err != nil {
		return err
	}
	logger.Debug("session started", zap.String("session", sess.ID()), zap.String("dir", sess.WorkingDirectory()))

	return r.Run(cmd.Context(), k, sess)
}
