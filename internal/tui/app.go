// Package tui is the terminal composer: a conversation sidebar, the selected
// transcript and an input line for the interactive conversation.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MikeSquared-Agency/flowchat/internal/chat"
	"github.com/MikeSquared-Agency/flowchat/internal/render"
	"github.com/MikeSquared-Agency/flowchat/internal/transcript"
)

// Chats is the conversation state the composer drives.
type Chats interface {
	ConversationID() string
	LoadConversationList(ctx context.Context) error
	LoadTranscript(ctx context.Context, conversationID string) error
	SendMessage(ctx context.Context, text string) error
	ClearConversation(ctx context.Context) error
	Filter(query string) []chat.Summary
	Selected() (chat.Summary, bool)
	Messages() []transcript.Entry
	Err() string
	Sending() bool
}

type focus int

const (
	focusSidebar focus = iota
	focusSearch
	focusInput
)

const sidebarWidth = 26

// Results of the round trips started by the model.
type (
	listLoadedMsg       struct{ err error }
	transcriptLoadedMsg struct {
		id  string
		err error
	}
	sentMsg struct {
		text string
		err  error
	}
	clearedMsg struct{ err error }
)

type Model struct {
	ctx         context.Context
	chats       Chats
	filtered    []chat.Summary
	cursor      int
	width       int
	height      int
	focus       focus
	searchInput textinput.Model
	input       textinput.Model
	status      string
	quitting    bool
}

func NewModel(ctx context.Context, chats Chats) Model {
	si := textinput.New()
	si.Placeholder = "search..."
	si.CharLimit = 100

	in := textinput.New()
	in.Placeholder = "Type a message"
	in.CharLimit = 4000

	return Model{
		ctx:         ctx,
		chats:       chats,
		searchInput: si,
		input:       in,
		width:       100,
		height:      30,
		status:      "loading chats...",
	}
}

func (m Model) Init() tea.Cmd {
	return m.loadList()
}

func (m Model) loadList() tea.Cmd {
	return func() tea.Msg {
		return listLoadedMsg{err: m.chats.LoadConversationList(m.ctx)}
	}
}

func (m Model) loadTranscript(id string) tea.Cmd {
	return func() tea.Msg {
		return transcriptLoadedMsg{id: id, err: m.chats.LoadTranscript(m.ctx, id)}
	}
}

func (m Model) send(text string) tea.Cmd {
	return func() tea.Msg {
		return sentMsg{text: text, err: m.chats.SendMessage(m.ctx, text)}
	}
}

func (m Model) clear() tea.Cmd {
	return func() tea.Msg {
		return clearedMsg{err: m.chats.ClearConversation(m.ctx)}
	}
}

func (m *Model) applyFilter() {
	m.filtered = m.chats.Filter(m.searchInput.Value())
	if m.cursor >= len(m.filtered) {
		m.cursor = max(0, len(m.filtered)-1)
	}
}

// outcome sets the status line from a finished round trip.
func (m *Model) outcome(err error, ok string) {
	if err != nil {
		m.status = ""
		return
	}
	m.status = ok
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case listLoadedMsg:
		m.applyFilter()
		m.outcome(msg.err, fmt.Sprintf("%d chats", len(m.filtered)))
		if msg.err != nil {
			return m, nil
		}
		if sel, ok := m.chats.Selected(); ok {
			m.moveCursorTo(sel.ID)
			return m, m.loadTranscript(sel.ID)
		}
		return m, nil

	case transcriptLoadedMsg:
		m.applyFilter()
		m.outcome(msg.err, "loaded "+msg.id)
		if msg.err == nil && m.isComposer() {
			m.focus = focusInput
			m.input.Focus()
		}
		return m, nil

	case sentMsg:
		m.applyFilter()
		m.outcome(msg.err, "sent")
		if msg.err == nil && m.input.Value() == msg.text {
			m.input.Reset()
		}
		return m, nil

	case clearedMsg:
		m.applyFilter()
		m.outcome(msg.err, "cleared "+m.chats.ConversationID())
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "ctrl+l":
			m.status = "clearing..."
			return m, m.clear()
		}
		switch m.focus {
		case focusSearch:
			return m.updateSearch(msg)
		case focusInput:
			return m.updateInput(msg)
		default:
			return m.updateSidebar(msg)
		}
	}
	return m, nil
}

func (m Model) updateSidebar(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.filtered)-1 {
			m.cursor++
		}

	case "enter":
		if len(m.filtered) > 0 {
			id := m.filtered[m.cursor].ID
			m.status = "loading " + id + "..."
			return m, m.loadTranscript(id)
		}

	case "r":
		m.status = "loading chats..."
		return m, m.loadList()

	case "/":
		m.searchInput.Focus()
		m.focus = focusSearch

	case "tab":
		m.focus = focusInput
		m.input.Focus()
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.searchInput.Blur()
		m.focus = focusSidebar
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "esc":
		m.input.Blur()
		m.focus = focusSidebar
		return m, nil

	case "enter":
		if !m.isComposer() {
			m.status = "select " + m.chats.ConversationID() + " to send messages"
			return m, nil
		}
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		m.status = "sending..."
		return m, m.send(text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) isComposer() bool {
	sel, ok := m.chats.Selected()
	return ok && sel.ID == m.chats.ConversationID()
}

func (m *Model) moveCursorTo(id string) {
	for i, s := range m.filtered {
		if s.ID == id {
			m.cursor = i
			return
		}
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	bodyHeight := max(1, m.height-4)
	sidebar := sidebarStyle.Height(bodyHeight).Width(sidebarWidth).Render(m.renderSidebar(bodyHeight))
	pane := m.renderTranscript(max(20, m.width-sidebarWidth-2), bodyHeight)

	status := m.status
	if m.chats.Sending() {
		status = "sending..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("flowchat") + dimStyle.Render("  "+status) + "\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, sidebar, pane) + "\n")

	if e := m.chats.Err(); e != "" {
		b.WriteString(errorStyle.Render(e))
	}
	b.WriteString("\n")

	switch m.focus {
	case focusSearch:
		b.WriteString(statusBarStyle.Render("Search: ") + m.searchInput.View())
	case focusInput:
		b.WriteString(statusBarStyle.Render("> ") + m.input.View())
	default:
		b.WriteString(helpStyle.Render("  Enter: open  /: search  Tab: compose  Ctrl+L: clear  r: reload  q: quit"))
	}
	return b.String()
}

func (m Model) renderSidebar(height int) string {
	sel, _ := m.chats.Selected()
	var lines []string
	for i, s := range m.filtered {
		if len(lines) >= height {
			break
		}
		label := pad(fmt.Sprintf("%s (%d)", s.ID, s.MessageCount), sidebarWidth-2)
		switch {
		case i == m.cursor && m.focus == focusSidebar:
			lines = append(lines, selectedStyle.Render(label))
		case s.ID == sel.ID:
			lines = append(lines, activeStyle.Render(label))
		default:
			lines = append(lines, normalStyle.Render(label))
		}
	}
	if len(lines) == 0 {
		lines = append(lines, dimStyle.Render(" no chats"))
	}
	return strings.Join(lines, "\n")
}

// renderTranscript renders the selected conversation, keeping the newest
// lines when it does not fit.
func (m Model) renderTranscript(width, height int) string {
	msgs := m.chats.Messages()
	if len(msgs) == 0 {
		return dimStyle.Render(" no messages")
	}

	var lines []string
	for _, e := range msgs {
		role := botRoleStyle.Render(" Bot ")
		if e.IsFromUser {
			role = userRoleStyle.Render(" You ")
		}
		body := lipgloss.NewStyle().Width(width - 2).PaddingLeft(1)
		if render.IsRTL(e.Text) {
			body = body.Align(lipgloss.Right)
		}
		lines = append(lines, " "+role)
		lines = append(lines, strings.Split(body.Render(e.Text), "\n")...)
		lines = append(lines, "")
	}
	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	return strings.Join(lines, "\n")
}

func pad(s string, width int) string {
	runes := []rune(s)
	if len(runes) >= width {
		return string(runes[:width])
	}
	return s + strings.Repeat(" ", width-len(runes))
}
