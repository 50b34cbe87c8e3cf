package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tailored-agentic-units/terminus/kernel"
	"github.com/tailored-agentic-units/terminus/observability"
	"github.com/tailored-agentic-units/terminus/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve one session over connect RPC",
	Long: `Runs a single session behind a connect RPC endpoint (HTTP/1.1 or h2c)
with the procedures RunTurn, Clear, and History.

There is nobody to ask for confirmation, so every modifying tool call is
declined unless auto-approve is on (--yolo or session.auto_approve).`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8765", "listen address")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	k, err := kernel.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer k.Close()

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

	obs, err := observability.GetObserver(cfg.Observer)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.ErrOrStderr(), "serving session %s on %s\n", sess.ID(), serveAddr)
	logger.Info("serve", zap.String("addr", serveAddr), zap.String("session", sess.ID()))

	return server.New(k, sess, server.WithObserver(obs)).ListenAndServe(ctx, serveAddr)
}
