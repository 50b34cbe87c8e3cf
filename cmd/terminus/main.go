// Command terminus is a terminal coding assistant: a language model that
// inspects and changes the local project through confirmed tool calls.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Set with -ldflags "-X main.version=...".
var version = "0.1.0"

var (
	// Global flags
	configPath string
	debug      bool
	logFile    string
	modelFlag  string
	workDir    string
	yoloFlag   bool
	noJournal  bool

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "terminus",
	Short: "A terminal coding assistant with confirmed tool calls",
	Long: `terminus runs a language model in your terminal. The model answers
questions about the current project and changes it through tools: reading
and writing files, searching, running shell commands, and git.

Anything that modifies the system is shown first and runs only after you
confirm it. Type /help inside the session for commands.

Run without arguments to start the interactive session.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !debug {
			return nil
		}
		l, err := newDebugLogger(logFile)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		zap.ReplaceGlobals(logger)
		logger.Debug("debug logging enabled", zap.String("command", cmd.Name()))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	RunE: runInteractive,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default ~/.config/terminus.json)")
	flags.BoolVar(&debug, "debug", false, "write debug logs to a rotating log file")
	flags.StringVar(&logFile, "log-file", "", "debug log file (default $XDG_STATE_HOME/terminus/debug.log)")
	flags.StringVarP(&modelFlag, "model", "m", "", `backend model as "provider:model"`)
	flags.StringVarP(&workDir, "dir", "C", "", "starting working directory")
	flags.BoolVar(&yoloFlag, "yolo", false, "start with tool confirmations disabled")
	flags.BoolVar(&noJournal, "no-journal", false, "do not record the transcript")

	rootCmd.AddCommand(serveCmd, historyCmd, versionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
