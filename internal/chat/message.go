package chat

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry. Messages are values: once appended they
// are never edited, and snapshots hand out copies.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
	// Failed marks an assistant entry that describes a generation failure.
	Failed bool
}

func newMessage(role Role, content string, failed bool) Message {
	return Message{
		ID:        newMessageID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		Failed:    failed,
	}
}

func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// State is the observable conversation: the transcript, the text being typed,
// and whether a request is in flight.
type State struct {
	Transcript   []Message
	PendingInput string
	Busy         bool
}

func (s State) clone() State {
	out := s
	out.Transcript = append([]Message(nil), s.Transcript...)
	return out
}

// Event is delivered to observers after every state change. Notice is set
// for informational lines that are not part of the transcript.
type Event struct {
	State  State
	Notice string
}
