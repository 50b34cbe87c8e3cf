package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// LineReader reads one line of user input after showing prompt. It returns
// io.EOF when input ends or the user interrupts the read.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// NewLineReader returns a Terminal for an interactive in and a Scanner
// otherwise.
func NewLineReader(in *os.File, out io.Writer) LineReader {
	if term.IsTerminal(int(in.Fd())) {
		return NewTerminal(in, out)
	}
	return NewScanner(in, out)
}

// Terminal reads lines with x/term line editing. The terminal is in raw
// mode only while a read is in progress, so interrupt signals reach the
// process while a turn runs.
type Terminal struct {
	mu sync.Mutex
	fd int
	t  *term.Terminal
}

// NewTerminal creates a Terminal on in, echoing to out.
func NewTerminal(in *os.File, out io.Writer) *Terminal {
	rw := struct {
		io.Reader
		io.Writer
	}{in, out}
	return &Terminal{
		fd: int(in.Fd()),
		t:  term.NewTerminal(rw, ""),
	}
}

func (t *Terminal) ReadLine(prompt string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := term.MakeRaw(t.fd)
	if err != nil {
		return "", fmt.Errorf("failed to enter raw mode: %w", err)
	}
	if w, h, err := term.GetSize(t.fd); err == nil {
		t.t.SetSize(w, h)
	}

	t.t.SetPrompt(prompt)
	line, err := t.t.ReadLine()
	if rerr := term.Restore(t.fd, state); rerr != nil && err == nil {
		err = fmt.Errorf("failed to restore terminal: %w", rerr)
	}
	return line, err
}

// Scanner reads newline-terminated input from a non-interactive source.
type Scanner struct {
	mu  sync.Mutex
	out io.Writer
	s   *bufio.Scanner
}

// NewScanner creates a Scanner over in. Prompts are written to out, which
// may be nil.
func NewScanner(in io.Reader, out io.Writer) *Scanner {
	s := bufio.NewScanner(in)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Scanner{out: out, s: s}
}

func (s *Scanner) ReadLine(prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.out != nil && prompt != "" {
		fmt.Fprint(s.out, prompt)
	}
	if !s.s.Scan() {
		if err := s.s.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSuffix(s.s.Text(), "\r"), nil
}

// ReadMessage reads a message that may span several lines: a line ending
// in a backslash continues on the next line under the continuation prompt.
func ReadMessage(r LineReader, prompt, continuation string) (string, error) {
	var lines []string
	p := prompt
	for {
		line, err := r.ReadLine(p)
		if err != nil {
			if len(lines) > 0 && err == io.EOF {
				return strings.Join(lines, "\n"), nil
			}
			return "", err
		}
		if strings.HasSuffix(line, `\`) {
			lines = append(lines, strings.TrimSuffix(line, `\`))
			p = continuation
			continue
		}
		lines = append(lines, line)
		return strings.Join(lines, "\n"), nil
	}
}
