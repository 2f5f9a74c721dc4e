package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/WessleyAI/pdfqa/engine/rag"
)

type mockAsker struct {
	mu        sync.Mutex
	questions []string
	replies   map[string]string
	errs      map[string]error
}

func (m *mockAsker) Query(_ context.Context, q string) (*rag.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions = append(m.questions, q)
	if err := m.errs[q]; err != nil {
		return nil, err
	}
	return &rag.Answer{Text: m.replies[q]}, nil
}

func run(t *testing.T, a Asker, input string) string {
	t.Helper()
	var out strings.Builder
	if err := NewSession(a, strings.NewReader(input), &out, nil).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out.String()
}

func TestIsQuit(t *testing.T) {
	for _, in := range []string{"quit", "EXIT", " q ", "", "   ", "Quit"} {
		if !IsQuit(in) {
			t.Errorf("IsQuit(%q) = false", in)
		}
	}
	for _, in := range []string{"what?", "quite", "qq"} {
		if IsQuit(in) {
			t.Errorf("IsQuit(%q) = true", in)
		}
	}
}

func TestSession_AnswerThenQuit(t *testing.T) {
	a := &mockAsker{replies: map[string]string{"What color is the sky?": "Blue."}}
	out := run(t, a, "  What color is the sky?  \nquit\n")

	wantInOrder := []string{
		Banner + "\n",
		Usage + "\n",
		Rule + "\n",
		"\n" + PromptText,
		"\n" + Processing + "\n",
		"\nANSWER: Blue.\n" + Rule + "\n",
		"\n" + PromptText + Goodbye + "\n",
	}
	pos := 0
	for _, w := range wantInOrder {
		i := strings.Index(out[pos:], w)
		if i < 0 {
			t.Fatalf("missing %q after offset %d in:\n%s", w, pos, out)
		}
		pos += i + len(w)
	}
	if len(a.questions) != 1 || a.questions[0] != "What color is the sky?" {
		t.Errorf("questions = %q", a.questions)
	}
}

func TestSession_ErrorKeepsGoing(t *testing.T) {
	a := &mockAsker{
		replies: map[string]string{"second": "ok"},
		errs:    map[string]error{"first": errors.New("rag: search: connection refused")},
	}
	out := run(t, a, "first\nsecond\nq\n")

	if !strings.Contains(out, "\nError: rag: search: connection refused\n"+RetryHint+"\n") {
		t.Errorf("error block missing:\n%s", out)
	}
	if !strings.Contains(out, "ANSWER: ok") {
		t.Errorf("session did not continue after the error:\n%s", out)
	}
	if len(a.questions) != 2 {
		t.Errorf("questions = %q", a.questions)
	}
}

func TestSession_EmptyLineQuits(t *testing.T) {
	a := &mockAsker{}
	out := run(t, a, "\nnever asked\n")
	if len(a.questions) != 0 {
		t.Errorf("asked %q after an empty line", a.questions)
	}
	if !strings.HasSuffix(out, Goodbye+"\n") {
		t.Errorf("output should end with goodbye:\n%s", out)
	}
}

func TestSession_EOF(t *testing.T) {
	out := run(t, &mockAsker{replies: map[string]string{"hi": "hello"}}, "hi")
	if !strings.Contains(out, "ANSWER: hello") || !strings.HasSuffix(out, "\n"+Goodbye+"\n") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestSession_ContextCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	var out safeBuffer
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewSession(&mockAsker{}, pr, &out, nil).Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if !strings.HasSuffix(out.String(), "\n\n"+Goodbye+"\n") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

type safeBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (s *safeBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *safeBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}
