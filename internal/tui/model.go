// Package tui is the interactive chat interface over the answer pipeline.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ChatPort answers one question within the current session.
// On failure it returns the user-facing degraded text together with the error.
type ChatPort interface {
	Answer(ctx context.Context, query string) (string, error)
}

// quitCommand ends the chat when typed as a message.
const quitCommand = "/sair"

type speaker int

const (
	speakerUser speaker = iota
	speakerAssistant
	speakerError
)

type entry struct {
	who  speaker
	text string
}

// failedStatus replaces the raw error, which is written to the log file instead.
const failedStatus = "Erro: resposta indisponível, detalhes em memrag.log"

// answerMsg carries the result of an asynchronous Answer call.
type answerMsg struct {
	text string
	err  error
}

// Model is the Bubble Tea model for the chat.
type Model struct {
	ctx        context.Context
	port       ChatPort
	sessionID  string
	input      textinput.Model
	viewport   viewport.Model
	spinner    spinner.Model
	transcript []entry
	waiting    bool
	ready      bool
	status     string
}

// New creates a chat model for sessionID.
func New(ctx context.Context, port ChatPort, sessionID string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Digite sua pergunta aqui..."
	ti.Focus()
	ti.CharLimit = 0

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	return Model{
		ctx:       ctx,
		port:      port,
		sessionID: sessionID,
		input:     ti,
		viewport:  viewport.New(80, 10),
		spinner:   s,
		status:    "Enter envia, " + quitCommand + " ou Ctrl+C sai.",
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window, spinner and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, fh := transcriptStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		reserved := 2 + 1 + ih + 1 // header, status, input box
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-fh)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.transcript = append(m.transcript, entry{who: speakerError, text: msg.text})
			m.status = failedStatus
		} else {
			m.transcript = append(m.transcript, entry{who: speakerAssistant, text: msg.text})
			m.status = ""
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
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

func (m Model) submit() (tea.Model, tea.Cmd) {
	q := strings.TrimSpace(m.input.Value())
	if q == "" || m.waiting {
		return m, nil
	}
	if q == quitCommand {
		return m, tea.Quit
	}

	m.input.Reset()
	m.transcript = append(m.transcript, entry{who: speakerUser, text: q})
	m.waiting = true
	m.status = ""
	m.refresh()
	return m, tea.Batch(m.spinner.Tick, m.ask(q))
}

func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		text, err := m.port.Answer(m.ctx, q)
		return answerMsg{text: text, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(renderTranscript(m.transcript, m.viewport.Width))
	m.viewport.GotoBottom()
}

// View renders the header, transcript, input box and status line.
func (m Model) View() string {
	if !m.ready {
		return "Carregando..."
	}
	header := headerStyle.Render("MemoryRAG") + " " + mutedStyle.Render("sessão "+m.sessionID)

	status := statusStyle.Render(m.status)
	if m.waiting {
		status = m.spinner.View() + " " + mutedStyle.Render("Consultando os documentos...")
	}

	return header + "\n" +
		transcriptStyle.Render(m.viewport.View()) + "\n" +
		inputStyle.Render(m.input.View()) + "\n" +
		status
}

func renderTranscript(entries []entry, width int) string {
	if len(entries) == 0 {
		return mutedStyle.Render("Faça perguntas sobre seus documentos jurídicos.")
	}
	wrap := lipgloss.NewStyle().Width(max(10, width-2))

	parts := make([]string, len(entries))
	for i, e := range entries {
		switch e.who {
		case speakerUser:
			parts[i] = userStyle.Render("Você: ") + wrap.Render(e.text)
		case speakerAssistant:
			parts[i] = assistantStyle.Render("Assistente: ") + wrap.Render(e.text)
		default:
			parts[i] = errorStyle.Render(wrap.Render(e.text))
		}
	}
	return strings.Join(parts, "\n\n")
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	spinnerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
