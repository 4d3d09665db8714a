package chat

import (
	"context"
	"sync"
)

// Turn tracks one accepted submission until its reply is in the transcript.
// It completes exactly once.
type Turn struct {
	prompt Message
	reply  Message
	done   chan struct{}
	once   sync.Once
}

func newTurn(prompt Message) *Turn {
	return &Turn{prompt: prompt, done: make(chan struct{})}
}

// Prompt returns the user entry appended when the submission was accepted.
func (t *Turn) Prompt() Message {
	return t.prompt
}

// Done is closed once the reply has been appended.
func (t *Turn) Done() <-chan struct{} {
	return t.done
}

// Reply returns the assistant entry. It is the zero Message until Done is closed.
func (t *Turn) Reply() Message {
	select {
	case <-t.done:
		return t.reply
	default:
		return Message{}
	}
}

// Wait blocks until the turn completes or ctx ends.
func (t *Turn) Wait(ctx context.Context) (Message, error) {
	select {
	case <-t.done:
		return t.reply, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (t *Turn) complete(reply Message) {
	t.once.Do(func() {
		t.reply = reply
		close(t.done)
	})
}
