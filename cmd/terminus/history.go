package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tailored-agentic-units/terminus/core/protocol"
	"github.com/tailored-agentic-units/terminus/journal"
	"github.com/tailored-agentic-units/terminus/kernel"
)

var historyYAML bool

var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "List recorded sessions or print one transcript",
	Long: `Without arguments, lists the sessions recorded in the journal, most
recent first. With a session id, prints that session's transcript,
including where the history was cleared.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().BoolVar(&historyYAML, "yaml", false, "print the transcript as YAML")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	j, err := openJournalStrict(cfg)
	if err != nil {
		return err
	}
	defer j.Close()

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		sessions, err := j.Sessions(cmd.Context())
		if err != nil {
			return err
		}
		printSessions(out, sessions, time.Now())
		return nil
	}

	entries, err := j.Transcript(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if historyYAML {
		return printTranscriptYAML(out, entries)
	}
	printTranscript(out, entries)
	return nil
}

func openJournalStrict(cfg *kernel.Config) (*journal.Journal, error) {
	if cfg.Journal.Disabled {
		return nil, errors.New("the journal is disabled")
	}
	path, err := cfg.Journal.Location()
	if err != nil {
		return nil, err
	}
	return journal.Open(path)
}

func printSessions(w io.Writer, sessions []journal.Summary, now time.Time) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No recorded sessions.")
		return
	}
	for _, s := range sessions {
		fmt.Fprintf(w, "%s  %-14s  %s",
			s.ID,
			humanize.RelTime(s.Updated, now, "ago", "from now"),
			plural(s.Turns, "turn"),
		)
		if s.Clears > 0 {
			fmt.Fprintf(w, ", %s", plural(s.Clears, "clear"))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "\n%s. Use: terminus history <session-id>\n", plural(len(sessions), "session"))
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%s %ss", humanize.Comma(int64(n)), noun)
}

func printTranscript(w io.Writer, entries []journal.Entry) {
	for _, e := range entries {
		if e.Clear {
			fmt.Fprintf(w, "---- cleared %s ----\n", e.Time.Local().Format(time.DateTime))
			continue
		}
		fmt.Fprintln(w, formatTurn(e.Turn))
	}
}

func formatTurn(t protocol.Turn) string {
	prefix := fmt.Sprintf("[%d] %s", t.Seq, t.Kind)
	switch {
	case t.Call != nil:
		return fmt.Sprintf("%s %s(%s) id=%s", prefix, t.Call.Name, t.Call.Arguments, t.Call.ID)
	case t.Result != nil:
		status := "ok"
		if t.Result.Failed() {
			status = string(t.Result.Failure.Kind)
		}
		return fmt.Sprintf("%s %s id=%s %s\n%s", prefix, t.Result.Name, t.Result.ID, status, indent(t.Result.Text()))
	default:
		return fmt.Sprintf("%s\n%s", prefix, indent(t.Text))
	}
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}

type transcriptEntry struct {
	Cleared *time.Time     `yaml:"cleared,omitempty"`
	Turn    *protocol.Turn `yaml:"turn,omitempty"`
}

func printTranscriptYAML(w io.Writer, entries []journal.Entry) error {
	out := make([]transcriptEntry, 0, len(entries))
	for _, e := range entries {
		if e.Clear {
			at := e.Time
			out = append(out, transcriptEntry{Cleared: &at})
			continue
		}
		turn := e.Turn
		out = append(out, transcriptEntry{Turn: &turn})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return err
	}
	return enc.Close()
}
