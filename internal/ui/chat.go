package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/BioHazard786/warpchat/internal/protocol"
)

// ChatBackend is the conversation driven by the chat screen.
type ChatBackend interface {
	Send(ctx context.Context, text string) (*protocol.SendResponse, error)
	Wait(ctx context.Context) (*protocol.WaitResponse, error)
}

type ChatOptions struct {
	RoomID   string
	SelfName string

	// Partner is empty when the room has no other member yet.
	Partner string

	// MaxMessage limits the input, in bytes. Zero means no limit.
	MaxMessage int
}

// ChatEnd says how a chat session finished.
type ChatEnd int

const (
	ChatQuit ChatEnd = iota
	ChatPartnerLeft
	ChatFailed
)

type (
	incomingMsg   struct{ res *protocol.WaitResponse }
	waitFailedMsg struct{ err error }
	sentMsg       struct {
		text string
		res  *protocol.SendResponse
	}
	sendFailedMsg struct {
		text string
		err  error
	}
)

type chatModel struct {
	ctx     context.Context
	cancel  context.CancelFunc
	backend ChatBackend
	opts    ChatOptions

	viewport viewport.Model
	input    textinput.Model
	lines    []string
	width    int

	end ChatEnd
	err error
}

// RunChat shows the chat screen until the user quits, the partner leaves,
// or the backend fails.
func RunChat(ctx context.Context, backend ChatBackend, opts ChatOptions) (ChatEnd, error) {
	m := newChatModel(ctx, backend, opts)
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return ChatFailed, err
	}
	fm := final.(*chatModel)
	return fm.end, fm.err
}

func newChatModel(ctx context.Context, backend ChatBackend, opts ChatOptions) *chatModel {
	ctx, cancel := context.WithCancel(ctx)

	input := textinput.New()
	input.Placeholder = "Say something..."
	input.Prompt = "› "
	input.PromptStyle = SelfNameStyle
	if opts.MaxMessage > 0 {
		input.CharLimit = opts.MaxMessage
	}
	input.Focus()

	vp := viewport.New(80, 15)
	vp.KeyMap = viewport.KeyMap{
		PageUp:   key.NewBinding(key.WithKeys("pgup")),
		PageDown: key.NewBinding(key.WithKeys("pgdown")),
	}

	m := &chatModel{
		ctx:      ctx,
		cancel:   cancel,
		backend:  backend,
		opts:     opts,
		viewport: vp,
		input:    input,
		width:    80,
	}
	if opts.Partner != "" {
		m.appendSystem(fmt.Sprintf("You are chatting with %s.", opts.Partner))
	} else {
		m.appendSystem("Waiting for someone to join...")
	}
	return m
}

func (m *chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.wait())
}

func (m *chatModel) wait() tea.Cmd {
	return func() tea.Msg {
		res, err := m.backend.Wait(m.ctx)
		if err != nil {
			return waitFailedMsg{err: err}
		}
		return incomingMsg{res: res}
	}
}

func (m *chatModel) send(text string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.backend.Send(m.ctx, text)
		if err != nil {
			return sendFailedMsg{text: text, err: err}
		}
		return sentMsg{text: text, res: res}
	}
}

func (m *chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.end = ChatQuit
			m.cancel()
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.Reset()
			return m, m.send(text)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = msg.Width
		m.viewport.Height = max(3, msg.Height-4)
		m.input.Width = max(10, msg.Width-4)
		m.refresh()
		return m, nil

	case incomingMsg:
		switch msg.res.Status {
		case protocol.StatusMessage:
			m.appendIncoming(msg.res)
		case protocol.StatusPartnerLeft:
			m.appendSystem("Your partner left the chat.")
			m.end = ChatPartnerLeft
			m.cancel()
			return m, tea.Quit
		}
		return m, m.wait()

	case waitFailedMsg:
		if m.ctx.Err() != nil {
			return m, nil
		}
		m.end = ChatFailed
		m.err = msg.err
		m.cancel()
		return m, tea.Quit

	case sentMsg:
		line := m.format(msg.res.SentAt, m.opts.SelfName, SelfNameStyle, msg.text)
		if !msg.res.Delivered {
			line += MutedStyle.Render(" (not delivered)")
		}
		m.appendLine(line)
		return m, nil

	case sendFailedMsg:
		if m.ctx.Err() != nil {
			return m, nil
		}
		m.appendLine(ErrorStyle.Render(fmt.Sprintf("%s not sent: %v", IconError, msg.err)))
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *chatModel) appendIncoming(res *protocol.WaitResponse) {
	if res.System {
		m.appendSystem(res.Message)
		return
	}
	if m.opts.Partner == "" {
		m.opts.Partner = res.Sender
	}

	at := time.Now()
	if res.Timestamp != nil {
		at = *res.Timestamp
	}
	m.appendLine(m.format(at, res.Sender, PartnerNameStyle, res.Message))
}

func (m *chatModel) appendSystem(text string) {
	m.appendLine(SystemLineStyle.Render(text))
}

func (m *chatModel) appendLine(line string) {
	m.lines = append(m.lines, line)
	m.refresh()
}

func (m *chatModel) refresh() {
	wrap := lipgloss.NewStyle().Width(max(10, m.width))
	rendered := make([]string, len(m.lines))
	for i, l := range m.lines {
		rendered[i] = wrap.Render(l)
	}
	m.viewport.SetContent(strings.Join(rendered, "\n"))
	m.viewport.GotoBottom()
}

func (m *chatModel) format(at time.Time, name string, style lipgloss.Style, content string) string {
	return fmt.Sprintf("%s %s %s", TimestampStyle.Render(at.Local().Format("15:04")), style.Render(name+":"), content)
}

func (m *chatModel) View() string {
	status := "waiting for a partner"
	if m.opts.Partner != "" {
		status = "with " + m.opts.Partner
	}
	header := ChatHeaderStyle.Render(fmt.Sprintf("%s %s", IconChat, m.opts.RoomID)) + " " + MutedStyle.Render(status)
	footer := ChatFooterStyle.Render("Enter to send • PgUp/PgDn to scroll • Ctrl+C to leave")

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		m.input.View(),
		footer,
	)
}
