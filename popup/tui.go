package popup

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type action int

const (
	actRefresh action = iota
	actSettings
	actFeedback
	actHelp
)

var actionLabels = [...]string{
	actRefresh:  "Refresh page",
	actSettings: "Settings",
	actFeedback: "Feedback",
	actHelp:     "Help",
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1)
	noteStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Padding(0, 1)
	buttonStyle  = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240"))
	focusedStyle = buttonStyle.BorderForeground(lipgloss.Color("39")).Bold(true)
	frameStyle   = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)
)

type statusMsg Status

type refreshMsg bool

type openedMsg string

// Model is the bubbletea popup.
type Model struct {
	ctx  context.Context
	ctrl *Controller

	status  Status
	checked bool
	cursor  int
	note    string
	closed  bool
}

// NewModel builds the popup model. ctx bounds every browser call.
func NewModel(ctx context.Context, ctrl *Controller) Model {
	return Model{ctx: ctx, ctrl: ctrl}
}

// Run shows the popup until it is dismissed or a refresh closes it.
func Run(ctx context.Context, ctrl *Controller) error {
	_, err := tea.NewProgram(NewModel(ctx, ctrl), tea.WithContext(ctx)).Run()
	if err != nil {
		return fmt.Errorf("popup: %w", err)
	}
	return nil
}

func (m Model) Init() tea.Cmd {
	return func() tea.Msg { return statusMsg(m.ctrl.Check(m.ctx)) }
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statusMsg:
		m.status = Status(msg)
		m.checked = true
	case refreshMsg:
		if msg {
			m.closed = true
			return m, tea.Quit
		}
		m.note = "Refresh failed."
	case openedMsg:
		m.note = string(msg)
	case tea.KeyMsg:
		n := len(actionLabels)
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.closed = true
			return m, tea.Quit
		case "left", "up", "shift+tab", "h", "k":
			m.cursor = (m.cursor + n - 1) % n
		case "right", "down", "tab", "l", "j":
			m.cursor = (m.cursor + 1) % n
		case "enter", " ":
			return m, m.activate(action(m.cursor))
		}
	}
	return m, nil
}

func (m Model) activate(a action) tea.Cmd {
	ctx, c := m.ctx, m.ctrl
	switch a {
	case actRefresh:
		return func() tea.Msg { return refreshMsg(c.Refresh(ctx)) }
	case actSettings:
		return func() tea.Msg { c.OpenSettings(ctx); return openedMsg("Opened settings.") }
	case actFeedback:
		return func() tea.Msg { c.OpenFeedback(ctx); return openedMsg("Opened feedback.") }
	case actHelp:
		return func() tea.Msg { c.OpenHelp(ctx); return openedMsg("Opened help.") }
	}
	return nil
}

func (m Model) View() string {
	if m.closed {
		return ""
	}
	var b strings.Builder
	if m.checked {
		b.WriteString(titleStyle.Render(m.status.Title()))
		b.WriteString("\n")
		b.WriteString(messageStyle.Render(m.status.Message))
	} else {
		b.WriteString(messageStyle.Render("Checking page..."))
	}
	b.WriteString("\n")

	buttons := make([]string, len(actionLabels))
	for i, label := range actionLabels {
		if i == m.cursor {
			buttons[i] = focusedStyle.Render(label)
		} else {
			buttons[i] = buttonStyle.Render(label)
		}
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, buttons...))
	if m.note != "" {
		b.WriteString("\n")
		b.WriteString(noteStyle.Render(m.note))
	}
	return frameStyle.Render(b.String()) + "\n"
}
