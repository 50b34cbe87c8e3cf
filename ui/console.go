package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

const defaultWidth = 80

type output int

const (
	outputNone output = iota
	outputStatus
	outputPanel
	outputInput
)

// HelpEntry is one row of the help panel.
type HelpEntry struct {
	Command     string
	Description string
}

// Console writes styled output. Markdown answers are rendered with glamour;
// everything else goes through lipgloss. When the destination is not a
// terminal, color and markdown styling are dropped.
type Console struct {
	mu       sync.Mutex
	out      io.Writer
	styles   Styles
	width    int
	markdown *glamour.TermRenderer
	last     output
}

// Option configures a Console.
type Option func(*consoleOptions)

type consoleOptions struct {
	width int
	plain bool
}

// WithWidth fixes the wrap width instead of reading the terminal size.
func WithWidth(n int) Option {
	return func(o *consoleOptions) { o.width = n }
}

// WithPlain disables markdown rendering; answers are printed verbatim.
func WithPlain() Option {
	return func(o *consoleOptions) { o.plain = true }
}

// NewConsole creates a Console writing to out.
func NewConsole(out io.Writer, opts ...Option) (*Console, error) {
	var o consoleOptions
	for _, opt := range opts {
		opt(&o)
	}

	tty := false
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		tty = true
		if o.width == 0 {
			if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
				o.width = w
			}
		}
	}
	if o.width <= 0 {
		o.width = defaultWidth
	}

	c := &Console{
		out:    out,
		styles: NewStyles(out),
		width:  o.width,
	}

	if !o.plain {
		style := glamour.WithStandardStyle("notty")
		if tty {
			style = glamour.WithAutoStyle()
		}
		r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(c.panelWidth()))
		if err != nil {
			return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
		}
		c.markdown = r
	}
	return c, nil
}

// Writer returns the underlying output.
func (c *Console) Writer() io.Writer {
	return c.out
}

// Styles returns the console's styles.
func (c *Console) Styles() Styles {
	return c.styles
}

// panelWidth is the content width inside a bordered, padded, indented panel.
func (c *Console) panelWidth() int {
	w := c.width - 5
	if w < 20 {
		w = 20
	}
	return w
}

// prepare inserts a blank line when switching between panels and status
// lines. Caller holds mu.
func (c *Console) prepare(next output) {
	switch {
	case c.last == outputNone || c.last == outputInput:
	case next == outputStatus && c.last == outputPanel:
		fmt.Fprintln(c.out)
	case next == outputPanel && (c.last == outputStatus || c.last == outputPanel):
		fmt.Fprintln(c.out)
	}
	c.last = next
}

func (c *Console) status(style lipgloss.Style, format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prepare(outputStatus)
	// Rendered per line so lipgloss does not pad short lines.
	for _, line := range strings.Split(fmt.Sprintf(format, args...), "\n") {
		fmt.Fprintln(c.out, style.Render(line))
	}
}

// Info prints an informational status line.
func (c *Console) Info(format string, args ...any) {
	c.status(c.styles.Info, "• "+format, args...)
}

// Success prints a success status line.
func (c *Console) Success(format string, args ...any) {
	c.status(c.styles.Success, "✓ "+format, args...)
}

// Warning prints a warning status line.
func (c *Console) Warning(format string, args ...any) {
	c.status(c.styles.Warning, "⚠ "+format, args...)
}

// Error prints an error status line with an optional cause.
func (c *Console) Error(message string, err error) {
	if err != nil {
		c.status(c.styles.Error, "✗ %s: %v", message, err)
		return
	}
	c.status(c.styles.Error, "✗ %s", message)
}

// Bullet prints an indented list item.
func (c *Console) Bullet(format string, args ...any) {
	c.status(c.styles.Muted, "  - "+format, args...)
}

// Thinking prints a muted progress line; continuation lines are indented.
func (c *Console) Thinking(message string) {
	lines := strings.Split(strings.TrimSpace(message), "\n")
	for i, l := range lines {
		if i == 0 {
			lines[i] = "› " + l
		} else {
			lines[i] = "  " + l
		}
	}
	c.status(c.styles.Muted, "%s", strings.Join(lines, "\n"))
}

// Line prints an empty line.
func (c *Console) Line() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out)
}

// ResetContext marks that the user just typed, so the next output starts
// without a separating blank line.
func (c *Console) ResetContext() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = outputInput
}

// Raw prints text without styling.
func (c *Console) Raw(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prepare(outputStatus)
	fmt.Fprint(c.out, text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(c.out)
	}
}

func (c *Console) panel(style lipgloss.Style, title, body, footer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prepare(outputPanel)

	body = strings.TrimRight(body, "\n")
	if body == "" {
		body = c.styles.Subtle.Render("(empty)")
	}

	if title != "" {
		fmt.Fprintln(c.out, c.styles.Title.Foreground(style.GetBorderTopForeground()).Render(title))
	}
	fmt.Fprintln(c.out, style.Width(c.width-2).Render(body))
	if footer != "" {
		fmt.Fprintln(c.out, c.styles.Muted.Render("  "+footer))
	}
}

// Answer renders a markdown answer from the model.
func (c *Console) Answer(markdown string) {
	body := markdown
	if c.markdown != nil {
		if rendered, err := c.markdown.Render(markdown); err == nil {
			body = strings.Trim(rendered, "\n")
		}
	}
	c.panel(c.styles.AgentPanel, "terminus", body, "")
}

// ToolPanel shows what a tool call would do, with an optional footer line.
func (c *Console) ToolPanel(title, body, footer string) {
	c.panel(c.styles.ToolPanel, title, body, footer)
}

// ErrorPanel shows an error with optional detail.
func (c *Console) ErrorPanel(title, message, detail string) {
	if detail != "" {
		message += "\n\n" + detail
	}
	c.panel(c.styles.ErrorPanel, title, message, "")
}

// InfoPanel shows auxiliary information.
func (c *Console) InfoPanel(title, body string) {
	c.panel(c.styles.InfoPanel, title, body, "")
}

// Help renders a two-column command table in an info panel.
func (c *Console) Help(title string, entries []HelpEntry, tips ...string) {
	width := 0
	for _, e := range entries {
		width = max(width, lipgloss.Width(e.Command))
	}

	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		cmd := c.styles.Info.Render(e.Command + strings.Repeat(" ", width-lipgloss.Width(e.Command)))
		b.WriteString(cmd + "  " + e.Description)
	}
	if len(tips) > 0 {
		b.WriteString("\n")
		for _, tip := range tips {
			b.WriteString("\n" + c.styles.Muted.Render("• "+tip))
		}
	}
	c.InfoPanel(title, b.String())
}
