package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	stylePrompt    = lipgloss.NewStyle().Foreground(lipgloss.Color("180"))
	styleUser      = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
	styleAssistant = lipgloss.NewStyle().Foreground(lipgloss.Color("47"))
	styleSystem    = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	styleError     = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	styleMessage   = lipgloss.NewStyle().Foreground(lipgloss.Color("251"))
	styleOwnBody   = lipgloss.NewStyle().Foreground(lipgloss.Color("159"))
	styleTimestamp = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleTitle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	borderSystem   = lipgloss.NewStyle().Foreground(lipgloss.Color("140"))
	borderOther    = lipgloss.NewStyle().Foreground(lipgloss.Color("24"))
	borderSelf     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

const (
	maxScrollback = 500
	defaultWrap   = 80
)

// conversation is what the UI needs from a Session.
type conversation interface {
	HandleInput(text string) error
	SetPendingInput(text string)
	Events() <-chan Event
	Snapshot() State
}

// credentialGate is what the UI needs from the credential store.
type credentialGate interface {
	Set(value string) bool
	IsConfigured() bool
}

type uiOptions struct {
	model  string
	render string
}

// runBubbleUI starts the Bubble Tea interface and blocks until it exits.
func runBubbleUI(conv conversation, gate credentialGate, opts uiOptions) error {
	m := newBubbleModel(conv, gate, opts)
	program := tea.NewProgram(m)
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, ErrQuit) {
		return nil
	}
	return err
}

// bubbleModel implements tea.Model. It renders the latest State snapshot and
// forwards key presses to the session and the credential store.
type bubbleModel struct {
	conv       conversation
	gate       credentialGate
	configured bool
	keyInput   textinput.Model
	input      textinput.Model
	spinner    spinner.Model
	state      State
	history    []block
	rendered   int
	renderer   *glamour.TermRenderer
	opts       uiOptions
	width      int
	quitting   bool
}

// newBubbleModel constructs the UI state machine. Whether the credential
// screen is shown is decided here, once, from the store's restored state.
func newBubbleModel(conv conversation, gate credentialGate, opts uiOptions) *bubbleModel {
	keyInput := textinput.New()
	keyInput.Placeholder = "Paste your API key here"
	keyInput.EchoMode = textinput.EchoPassword
	keyInput.EchoCharacter = '•'
	keyInput.Prompt = "🔑 "

	input := textinput.New()
	input.Placeholder = "Type your message..."
	input.Prompt = "▸ "
	input.PromptStyle = stylePrompt

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styleSystem

	m := &bubbleModel{
		conv:       conv,
		gate:       gate,
		configured: gate.IsConfigured(),
		keyInput:   keyInput,
		input:      input,
		spinner:    sp,
		state:      conv.Snapshot(),
		history:    make([]block, 0, 256),
		opts:       opts,
		width:      defaultWrap,
	}
	m.renderer = newRenderer(opts.render, m.width)
	if m.configured {
		m.input.Focus()
	} else {
		m.keyInput.Focus()
	}
	m.syncHistory()
	return m
}

// Init requests the first event from the session stream.
func (m *bubbleModel) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.conv.Events()), textinput.Blink)
}

// waitForEvent blocks until the next session event or closure.
func waitForEvent(events <-chan Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return tea.Quit()
		}
		return ev
	}
}

// Update handles key presses, session events, and terminal signals.
func (m *bubbleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}
		if !m.configured {
			return m.updateCredential(msg)
		}
		return m.updateChat(msg)
	case Event:
		wasBusy := m.state.Busy
		m.state = msg.State
		m.syncHistory()
		if msg.Notice != "" {
			m.append(renderNotice(msg.Notice))
		}
		cmds := []tea.Cmd{waitForEvent(m.conv.Events())}
		switch {
		case m.state.Busy && !wasBusy:
			m.input.Blur()
			cmds = append(cmds, m.spinner.Tick)
		case !m.state.Busy && wasBusy:
			cmds = append(cmds, m.input.Focus())
		}
		return m, tea.Batch(cmds...)
	case spinner.TickMsg:
		if !m.state.Busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.input.Width = max(msg.Width-4, 10)
			m.keyInput.Width = max(msg.Width-4, 10)
			m.renderer = newRenderer(m.opts.render, min(msg.Width-4, defaultWrap))
		}
		return m, nil
	case tea.QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *bubbleModel) updateCredential(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEnter {
		if !m.gate.Set(m.keyInput.Value()) {
			return m, nil
		}
		m.configured = true
		m.keyInput.Reset()
		m.keyInput.Blur()
		return m, m.input.Focus()
	}
	var cmd tea.Cmd
	m.keyInput, cmd = m.keyInput.Update(msg)
	return m, cmd
}

func (m *bubbleModel) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEnter {
		if m.state.Busy {
			return m, nil
		}
		err := m.conv.HandleInput(m.input.Value())
		switch {
		case errors.Is(err, ErrQuit):
			m.quitting = true
			return m, tea.Quit
		case errors.Is(err, ErrRejected):
			return m, nil
		case err != nil:
			m.append(renderNotice(err.Error()))
			return m, nil
		}
		m.input.Reset()
		return m, nil
	}
	if m.state.Busy {
		return m, nil
	}
	var cmd tea.Cmd
	before := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.conv.SetPendingInput(after)
	}
	return m, cmd
}

// View renders either the credential screen or the transcript and prompt.
func (m *bubbleModel) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	if !m.configured {
		b.WriteString(styleTitle.Render("Enter API Key"))
		b.WriteString("\n\n")
		b.WriteString(m.keyInput.View())
		b.WriteString("\n\n")
		b.WriteString(styleTimestamp.Render("The key is kept for this terminal session only. Ctrl+C to quit."))
		b.WriteByte('\n')
		return b.String()
	}

	for _, blk := range m.history {
		b.WriteString(renderBlockString(blk))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	if m.state.Busy {
		b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), styleSystem.Render("Sending...")))
	}
	b.WriteString(m.input.View())
	return b.String()
}

// syncHistory turns transcript entries not yet rendered into blocks.
func (m *bubbleModel) syncHistory() {
	for m.rendered < len(m.state.Transcript) {
		m.append(m.renderEntry(m.state.Transcript[m.rendered]))
		m.rendered++
	}
}

// append adds a block to the scrollback, keeping it bounded.
func (m *bubbleModel) append(blk block) {
	if len(m.history) >= maxScrollback {
		m.history = m.history[len(m.history)-maxScrollback+1:]
	}
	m.history = append(m.history, blk)
}

func newRenderer(style string, width int) *glamour.TermRenderer {
	if style == "" || style == "plain" {
		return nil
	}
	if width <= 0 {
		width = defaultWrap
	}
	r, err := glamour.NewTermRenderer(glamour.WithStylePath(style), glamour.WithWordWrap(width))
	if err != nil {
		return nil
	}
	return r
}

// renderNotice formats a system notification block.
func renderNotice(text string) block {
	header := fmt.Sprintf("%s %s", styleTimestamp.Render("["+time.Now().Format("15:04:05")+"]"), styleSystem.Render("system"))
	return block{border: borderSystem, header: header, lines: styledLines(text, styleSystem)}
}

// renderEntry styles a transcript entry for display.
func (m *bubbleModel) renderEntry(msg Message) block {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	timestamp := styleTimestamp.Render("[" + ts.Format("15:04:05") + "]")

	switch {
	case msg.Role == RoleUser:
		header := fmt.Sprintf("%s %s", timestamp, styleUser.Render("you"))
		return block{border: borderSelf, header: header, lines: styledLines(msg.Content, styleOwnBody)}
	case msg.Failed:
		header := fmt.Sprintf("%s %s", timestamp, styleError.Render("error"))
		return block{border: borderSystem, header: header, lines: styledLines(msg.Content, styleError)}
	default:
		label := "assistant"
		if m.opts.model != "" {
			label = m.opts.model
		}
		header := fmt.Sprintf("%s %s", timestamp, styleAssistant.Render(label))
		if m.renderer != nil {
			if out, err := m.renderer.Render(msg.Content); err == nil {
				return block{border: borderOther, header: header, lines: strings.Split(strings.Trim(out, "\n"), "\n")}
			}
		}
		return block{border: borderOther, header: header, lines: styledLines(msg.Content, styleMessage)}
	}
}

// styledLines splits a body into lines and colours each one.
func styledLines(text string, style lipgloss.Style) []string {
	if text == "" {
		text = "[empty message]"
	}
	raw := strings.Split(text, "\n")
	lines := make([]string, len(raw))
	for i, line := range raw {
		if line == "" {
			line = " "
		}
		lines[i] = style.Render(line)
	}
	return lines
}

type block struct {
	border lipgloss.Style
	header string
	lines  []string
}

// renderBlockString assembles the bordered block string for output.
func renderBlockString(blk block) string {
	var b strings.Builder
	b.WriteString(blk.border.Render("┌ "))
	b.WriteString(blk.header)
	b.WriteString("\n")
	for _, line := range blk.lines {
		b.WriteString(blk.border.Render("│ "))
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(blk.border.Render("└"))
	return b.String()
}
