package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dgallion1/docqa/internal/pipeline"
)

// QAPort is the TUI-facing subset of the orchestrator.
type QAPort interface {
	Ingest(ctx context.Context, sessionID, path string) (pipeline.IngestResult, error)
	Ask(ctx context.Context, sessionID, question string, topK int) (pipeline.Answer, error)
}

type focus int

const (
	focusPath focus = iota
	focusQuestion
)

type ingestDoneMsg struct {
	res pipeline.IngestResult
	err error
}

type answerMsg struct {
	question string
	answer   pipeline.Answer
	err      error
}

// Model is the Bubble Tea model for the document QA screen.
type Model struct {
	ctx      context.Context
	service  QAPort
	session  string
	topK     int
	path     textinput.Model
	question textinput.Model
	viewport viewport.Model
	focus    focus
	answer   *pipeline.Answer
	document string
	status   string
	busy     bool
	ready    bool
}

// New creates a TUI model bound to one session.
func New(ctx context.Context, service QAPort, sessionID string, topK int) Model {
	path := textinput.New()
	path.Prompt = "document> "
	path.Placeholder = "path to a .pdf, .docx or .txt file"
	path.Focus()

	q := textinput.New()
	q.Prompt = "question> "
	q.Placeholder = "ask something about the document"

	return Model{
		ctx:      ctx,
		service:  service,
		session:  sessionID,
		topK:     topK,
		path:     path,
		question: q,
		viewport: viewport.New(0, 0),
		status:   "Enter a document path and press Enter. Tab switches fields, Esc clears.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ah := answerBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + 2*(ih+1) // header, status, two input boxes
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-ah)
		m.viewport.SetContent(m.renderAnswer())
		return m, nil

	case ingestDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.document = msg.res.Filename
		m.answer = nil
		m.status = fmt.Sprintf("Indexed %s: %d chunks in %dms", msg.res.Filename, msg.res.Chunks, msg.res.DurationMs)
		m.viewport.SetContent(m.renderAnswer())
		return m, m.setFocus(focusQuestion)

	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		a := msg.answer
		m.answer = &a
		m.status = fmt.Sprintf("Answered %q", msg.question)
		m.viewport.SetContent(m.renderAnswer())
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "tab", "shift+tab":
			if m.focus == focusPath {
				return m, m.setFocus(focusQuestion)
			}
			return m, m.setFocus(focusPath)
		case "esc":
			// Clears the question and answer only. The index stays.
			m.question.Reset()
			m.answer = nil
			m.status = "Cleared."
			m.viewport.SetContent(m.renderAnswer())
			return m, nil
		case "enter":
			if m.busy {
				return m, nil
			}
			if m.focus == focusPath {
				p := strings.TrimSpace(m.path.Value())
				if p == "" {
					return m, nil
				}
				m.busy = true
				m.status = "Indexing " + filepath.Base(p) + "..."
				return m, m.ingest(p)
			}
			q := strings.TrimSpace(m.question.Value())
			if q == "" {
				return m, nil
			}
			m.busy = true
			m.status = "Thinking..."
			return m, m.ask(q)
		}
	}

	var cmd tea.Cmd
	if m.focus == focusPath {
		m.path, cmd = m.path.Update(msg)
	} else {
		m.question, cmd = m.question.Update(msg)
	}
	return m, cmd
}

func (m *Model) setFocus(f focus) tea.Cmd {
	m.focus = f
	if f == focusPath {
		m.question.Blur()
		return m.path.Focus()
	}
	m.path.Blur()
	return m.question.Focus()
}

func (m Model) ingest(path string) tea.Cmd {
	ctx, svc, session := m.ctx, m.service, m.session
	return func() tea.Msg {
		res, err := svc.Ingest(ctx, session, path)
		return ingestDoneMsg{res: res, err: err}
	}
}

func (m Model) ask(question string) tea.Cmd {
	ctx, svc, session, topK := m.ctx, m.service, m.session, m.topK
	return func() tea.Msg {
		a, err := svc.Ask(ctx, session, question, topK)
		return answerMsg{question: question, answer: a, err: err}
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Document QA")
	doc := "no document indexed"
	if m.document != "" {
		doc = "document: " + m.document
	}
	sub := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(doc)
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + sub + "\n" +
		inputBoxStyle.Render(m.path.View()) + "\n" +
		inputBoxStyle.Render(m.question.View()) + "\n" +
		answerBoxStyle.Render(m.viewport.View()) + "\n" +
		status
}

func (m Model) renderAnswer() string {
	if m.answer == nil {
		return "No answer yet."
	}
	var b strings.Builder
	b.WriteString(answerStyle.Render(m.answer.Text))
	if len(m.answer.Sources) > 0 {
		b.WriteString("\n\nSources:")
		for _, h := range m.answer.Sources {
			fmt.Fprintf(&b, "\n  [%d] score=%.3f %s", h.Order, h.Score, snippet(h.Text, 80))
		}
	}
	return b.String()
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

var (
	answerBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	answerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)
