package chat

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConversation struct {
	inputs  []string
	pending []string
	err     error
	events  chan Event
	state   State
}

func newFakeConversation() *fakeConversation {
	return &fakeConversation{events: make(chan Event, 8)}
}

func (f *fakeConversation) HandleInput(text string) error {
	f.inputs = append(f.inputs, text)
	return f.err
}

func (f *fakeConversation) SetPendingInput(text string) {
	f.pending = append(f.pending, text)
}

func (f *fakeConversation) Events() <-chan Event { return f.events }
func (f *fakeConversation) Snapshot() State      { return f.state }

type fakeGate struct {
	value string
}

func (g *fakeGate) Set(value string) bool {
	if strings.TrimSpace(value) == "" {
		return false
	}
	g.value = strings.TrimSpace(value)
	return true
}

func (g *fakeGate) IsConfigured() bool { return g.value != "" }

func typeText(m *bubbleModel, text string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func pressEnter(m *bubbleModel) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

func TestUICredentialScreenGatesChat(t *testing.T) {
	conv := newFakeConversation()
	gate := &fakeGate{}
	m := newBubbleModel(conv, gate, uiOptions{render: "plain"})

	require.False(t, m.configured)
	assert.Contains(t, m.View(), "Enter API Key")

	pressEnter(m)
	assert.False(t, m.configured, "empty key must keep the chat locked")

	typeText(m, "   ")
	pressEnter(m)
	assert.False(t, m.configured)

	m.keyInput.Reset()
	typeText(m, "secret-key")
	assert.NotContains(t, m.View(), "secret-key")
	pressEnter(m)

	assert.True(t, m.configured)
	assert.Equal(t, "secret-key", gate.value)
	assert.Empty(t, conv.inputs, "credential entry never reaches the conversation")
	assert.NotContains(t, m.View(), "secret-key")
}

func TestUISkipsCredentialScreenWhenRestored(t *testing.T) {
	m := newBubbleModel(newFakeConversation(), &fakeGate{value: "K"}, uiOptions{render: "plain"})
	assert.True(t, m.configured)
	assert.NotContains(t, m.View(), "Enter API Key")
}

func TestUISubmitsAndClearsInput(t *testing.T) {
	conv := newFakeConversation()
	m := newBubbleModel(conv, &fakeGate{value: "K"}, uiOptions{render: "plain"})

	typeText(m, "Hello")
	assert.Equal(t, []string{"Hello"}, conv.pending)

	pressEnter(m)
	assert.Equal(t, []string{"Hello"}, conv.inputs)
	assert.Empty(t, m.input.Value())
}

func TestUIKeepsInputWhenRejected(t *testing.T) {
	conv := newFakeConversation()
	conv.err = ErrNotConfigured
	m := newBubbleModel(conv, &fakeGate{value: "K"}, uiOptions{render: "plain"})

	typeText(m, "Hello")
	pressEnter(m)
	assert.Equal(t, "Hello", m.input.Value())
	assert.Empty(t, m.history, "rejections are not shown")
}

func TestUIIgnoresEnterWhileBusy(t *testing.T) {
	conv := newFakeConversation()
	m := newBubbleModel(conv, &fakeGate{value: "K"}, uiOptions{render: "plain"})

	busy := State{Busy: true, Transcript: []Message{{Role: RoleUser, Content: "Hello", Timestamp: time.Now()}}}
	_, cmd := m.Update(Event{State: busy})
	assert.NotNil(t, cmd)

	typeText(m, "more")
	pressEnter(m)
	assert.Empty(t, conv.inputs)
	assert.Contains(t, m.View(), "Sending...")

	idle := busy
	idle.Busy = false
	idle.Transcript = append(idle.Transcript, Message{Role: RoleAssistant, Content: "Hi there", Timestamp: time.Now()})
	m.Update(Event{State: idle})
	assert.NotContains(t, m.View(), "Sending...")

	typeText(m, "next")
	pressEnter(m)
	assert.Equal(t, []string{"next"}, conv.inputs)
}

func TestUIRendersTranscriptOnceEach(t *testing.T) {
	conv := newFakeConversation()
	m := newBubbleModel(conv, &fakeGate{value: "K"}, uiOptions{render: "plain", model: "gemini-test"})

	state := State{Transcript: []Message{
		{Role: RoleUser, Content: "Hello"},
		{Role: RoleAssistant, Content: "Error: quota exceeded", Failed: true},
	}}
	m.Update(Event{State: state})
	m.Update(Event{State: state})
	m.Update(Event{State: state, Notice: "goodbye"})

	require.Len(t, m.history, 3)
	view := m.View()
	assert.Contains(t, view, "Hello")
	assert.Contains(t, view, "quota exceeded")
	assert.Contains(t, view, "goodbye")
	assert.Contains(t, view, "error")
}

func TestUIQuitCommand(t *testing.T) {
	conv := newFakeConversation()
	conv.err = ErrQuit
	m := newBubbleModel(conv, &fakeGate{value: "K"}, uiOptions{render: "plain"})

	typeText(m, "/quit")
	cmd := pressEnter(m)
	require.NotNil(t, cmd)
	assert.True(t, m.quitting)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestUIMarkdownRenderer(t *testing.T) {
	m := newBubbleModel(newFakeConversation(), &fakeGate{value: "K"}, uiOptions{render: "notty"})
	require.NotNil(t, m.renderer)

	m.Update(Event{State: State{Transcript: []Message{{Role: RoleAssistant, Content: "**bold** reply"}}}})
	assert.Contains(t, m.View(), "bold")
}

func TestWaitForEventQuitsOnClose(t *testing.T) {
	events := make(chan Event)
	close(events)
	assert.IsType(t, tea.QuitMsg{}, waitForEvent(events)())
}
