package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/WessleyAI/pdfqa/engine/domain"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	answerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type answerMsg struct {
	question string
	text     string
}

type errMsg struct {
	question string
	err      error
}

// Model is the Bubble Tea model for the chat TUI.
type Model struct {
	ctx      context.Context
	asker    Asker
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	log      []string
	busy     bool
	ready    bool
}

// NewModel creates a TUI model. ctx bounds every query.
func NewModel(ctx context.Context, asker Asker) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = PromptText
	ti.CharLimit = domain.MaxQuestionRunes
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		asker:    asker,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
	}
}

// Init starts the cursor blinking.
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		ans, err := m.asker.Query(m.ctx, q)
		if err != nil {
			return errMsg{question: q, err: err}
		}
		return answerMsg{question: q, text: ans.Text}
	}
}

// Update handles input, window and query result messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := boxStyle.GetFrameSize()
		h := msg.Height - 4 - bh // title, hint, input line, status
		if h < 3 {
			h = 3
		}
		m.viewport.Width = msg.Width
		m.viewport.Height = h
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			q := strings.TrimSpace(m.input.Value())
			if IsQuit(q) {
				return m, tea.Quit
			}
			m.input.Reset()
			m.busy = true
			m.log = append(m.log, titleStyle.Render("Q: ")+q)
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, m.ask(q))
		}

	case answerMsg:
		m.busy = false
		m.log = append(m.log, answerStyle.Render("ANSWER: ")+msg.text, Rule)
		m.refresh()
		return m, nil

	case errMsg:
		m.busy = false
		m.log = append(m.log, errorStyle.Render(fmt.Sprintf("Error: %v", msg.err)), hintStyle.Render(RetryHint))
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) refresh() {
	m.viewport.SetContent(strings.Join(m.log, "\n"))
	m.viewport.GotoBottom()
}

// View renders the transcript, input and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	status := hintStyle.Render(Usage)
	if m.busy {
		status = m.spinner.View() + " " + Processing
	}
	return titleStyle.Render(Banner) + "\n" +
		boxStyle.Render(m.viewport.View()) + "\n" +
		m.input.View() + "\n" +
		status
}

// RunTUI runs the TUI until the user quits.
func RunTUI(ctx context.Context, asker Asker) error {
	p := tea.NewProgram(NewModel(ctx, asker), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
