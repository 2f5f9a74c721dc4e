package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func typeText(m Model, s string) Model {
	for _, r := range s {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	return m
}

func sized(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

func TestModel_LoadingUntilSized(t *testing.T) {
	m := NewModel(context.Background(), &mockAsker{})
	if m.View() != "Loading..." {
		t.Errorf("view = %q", m.View())
	}
	if !strings.Contains(sized(m).View(), Banner) {
		t.Error("banner missing after resize")
	}
}

func TestModel_AskAndAnswer(t *testing.T) {
	a := &mockAsker{replies: map[string]string{"sky?": "Blue."}}
	m := typeText(sized(NewModel(context.Background(), a)), "sky?")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if !m.busy || cmd == nil {
		t.Fatal("enter should start a query")
	}
	if m.input.Value() != "" {
		t.Error("input not cleared")
	}

	// Run the query command directly.
	msg := m.ask("sky?")()
	next, _ = m.Update(msg)
	m = next.(Model)
	if m.busy {
		t.Error("still busy after answer")
	}
	if !strings.Contains(strings.Join(m.log, "\n"), "Blue.") {
		t.Errorf("log = %q", m.log)
	}
}

func TestModel_ErrorRecovery(t *testing.T) {
	a := &mockAsker{errs: map[string]error{"bad": errors.New("store down")}}
	m := sized(NewModel(context.Background(), a))
	next, _ := m.Update(m.ask("bad")())
	m = next.(Model)

	joined := strings.Join(m.log, "\n")
	if !strings.Contains(joined, "store down") || !strings.Contains(joined, RetryHint) {
		t.Errorf("log = %q", m.log)
	}
	m = typeText(m, "again")
	if m.input.Value() != "again" {
		t.Error("input should keep working after an error")
	}
}

func TestModel_QuitWords(t *testing.T) {
	for _, word := range []string{"quit", "exit", "q", ""} {
		m := typeText(sized(NewModel(context.Background(), &mockAsker{})), word)
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if cmd == nil {
			t.Fatalf("%q: expected quit command", word)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%q: expected tea.QuitMsg", word)
		}
	}
}

func TestModel_CtrlC(t *testing.T) {
	m := sized(NewModel(context.Background(), &mockAsker{}))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}
