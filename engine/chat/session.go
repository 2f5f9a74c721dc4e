// Package chat is the interactive front end: a line REPL and a Bubble Tea
// TUI. Query errors are shown to the user and the session keeps going.
package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/WessleyAI/pdfqa/engine/rag"
)

// User-facing text.
const (
	Banner     = "PDF Q&A Chat System"
	Usage      = "Type 'quit', 'exit', or 'q' to end the session"
	PromptText = "Ask your question: "
	Processing = "Processing..."
	Goodbye    = "Ending chat session. Goodbye!"
	RetryHint  = "Please try again or type 'quit' to exit."
)

// Rule separates answers.
var Rule = strings.Repeat("-", 50)

const maxLine = 1 << 20

// Asker answers one question.
type Asker interface {
	Query(ctx context.Context, question string) (*rag.Answer, error)
}

// IsQuit reports whether input ends the session. Blank input counts.
func IsQuit(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", "quit", "exit", "q":
		return true
	}
	return false
}

// Session is a line-oriented chat loop.
type Session struct {
	asker  Asker
	in     io.Reader
	out    io.Writer
	logger *slog.Logger
}

// NewSession creates a Session reading questions from in and writing to out.
func NewSession(asker Asker, in io.Reader, out io.Writer, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{asker: asker, in: in, out: out, logger: logger}
}

type line struct {
	text string
	err  error
	eof  bool
}

func (s *Session) readLines(ctx context.Context) <-chan line {
	ch := make(chan line)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(s.in)
		sc.Buffer(make([]byte, 0, 64*1024), maxLine)
		for sc.Scan() {
			select {
			case ch <- line{text: sc.Text()}:
			case <-ctx.Done():
				return
			}
		}
		l := line{eof: true, err: sc.Err()}
		select {
		case ch <- l:
		case <-ctx.Done():
		}
	}()
	return ch
}

// Run loops until a quit word, end of input or ctx cancellation.
func (s *Session) Run(ctx context.Context) error {
	fmt.Fprintln(s.out, Banner)
	fmt.Fprintln(s.out, Usage)
	fmt.Fprintln(s.out, Rule)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := s.readLines(ctx)
	for {
		fmt.Fprint(s.out, "\n"+PromptText)

		var l line
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out, "\n\n"+Goodbye)
			return nil
		case l = <-lines:
		}
		if l.eof {
			fmt.Fprintln(s.out, "\n"+Goodbye)
			return l.err
		}

		q := strings.TrimSpace(l.text)
		if IsQuit(q) {
			fmt.Fprintln(s.out, Goodbye)
			return nil
		}

		fmt.Fprintln(s.out, "\n"+Processing)
		ans, err := s.asker.Query(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				fmt.Fprintln(s.out, "\n\n"+Goodbye)
				return nil
			}
			s.logger.Debug("chat: query failed", "error", err)
			fmt.Fprintf(s.out, "\nError: %v\n", err)
			fmt.Fprintln(s.out, RetryHint)
			continue
		}
		fmt.Fprintf(s.out, "\nANSWER: %s\n", ans.Text)
		fmt.Fprintln(s.out, Rule)
	}
}
