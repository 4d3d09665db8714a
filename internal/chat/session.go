package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"gemchat/internal/config"
	"gemchat/internal/generation"
	"gemchat/internal/logging"
)

var (
	// ErrRejected is wrapped by every error Submit returns. A rejected
	// submission leaves the state untouched and never reaches the generator.
	ErrRejected      = errors.New("submission rejected")
	ErrBusy          = fmt.Errorf("%w: a request is already in flight", ErrRejected)
	ErrEmptyInput    = fmt.Errorf("%w: input is empty", ErrRejected)
	ErrNotConfigured = fmt.Errorf("%w: no API key configured", ErrRejected)
	ErrClosed        = fmt.Errorf("%w: session is shut down", ErrRejected)
)

// Credentials is the read-only view of the credential store a session needs.
type Credentials interface {
	Get() (string, bool)
}

// Options describe how to initialise a chat session.
type Options struct {
	Config      config.Config
	Store       config.Store
	Credentials Credentials
	Generator   generation.Generator
	Logger      *zap.Logger
}

// Session owns the conversation state and drives the submission state
// machine: Idle -> Submitting -> Idle, with at most one request in flight.
type Session struct {
	cfg         config.Config
	store       config.Store
	credentials Credentials
	generator   generation.Generator
	logger      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	state   State
	events  chan Event
	closed  chan struct{}
	closing bool

	shutdownOnce sync.Once
	statusMu     sync.RWMutex
	lastEvent    string
}

// NewSession creates a new chat session.
func NewSession(opts Options) (*Session, error) {
	if opts.Credentials == nil {
		return nil, errors.New("session requires a credential source")
	}
	if opts.Generator == nil {
		return nil, errors.New("session requires a generator")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:         config.Normalize(opts.Config),
		store:       opts.Store,
		credentials: opts.Credentials,
		generator:   opts.Generator,
		logger:      logging.OrNop(opts.Logger).Named("session"),
		ctx:         ctx,
		cancel:      cancel,
		state:       State{Transcript: make([]Message, 0, 64)},
		events:      make(chan Event, 128),
		closed:      make(chan struct{}),
	}
	s.recordEvent("session ready")
	return s, nil
}

// Events returns the observer stream. Each event carries a full snapshot, so
// an observer that falls behind only needs the latest one.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// SetPendingInput records the text currently being typed.
func (s *Session) SetPendingInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.PendingInput == text {
		return
	}
	s.state.PendingInput = text
	s.emitLocked(Event{})
}

// Submit accepts text for generation. On success the user entry is already in
// the transcript, the session is busy, and exactly one generator call is
// running; the returned Turn completes once the reply is appended.
func (s *Session) Submit(text string) (*Turn, error) {
	prompt := strings.TrimSpace(text)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closing:
		return nil, ErrClosed
	case s.state.Busy:
		return nil, ErrBusy
	case prompt == "":
		return nil, ErrEmptyInput
	}
	credential, ok := s.credentials.Get()
	if !ok || credential == "" {
		return nil, ErrNotConfigured
	}

	msg := newMessage(RoleUser, prompt, false)
	s.state.Transcript = append(s.state.Transcript, msg)
	s.state.PendingInput = ""
	s.state.Busy = true

	turn := newTurn(msg)
	s.wg.Add(1)
	go s.generate(turn, credential)

	s.emitLocked(Event{})
	s.recordEvent("submitted message %d", len(s.state.Transcript))
	return turn, nil
}

// generate runs the single generator call for turn and records its outcome.
func (s *Session) generate(turn *Turn, credential string) {
	defer s.wg.Done()

	start := time.Now()
	text, err := s.callGenerator(credential, turn.prompt.Content)

	var reply Message
	if err != nil {
		kind, _ := generation.KindOf(err)
		s.logger.Warn("generation failed", zap.Stringer("kind", kind), zap.Duration("elapsed", time.Since(start)))
		reply = newMessage(RoleAssistant, DescribeFailure(err), true)
	} else {
		s.logger.Debug("generation completed", zap.Duration("elapsed", time.Since(start)))
		reply = newMessage(RoleAssistant, text, false)
	}

	s.mu.Lock()
	s.state.Transcript = append(s.state.Transcript, reply)
	s.state.Busy = false
	s.emitLocked(Event{})
	s.mu.Unlock()

	if reply.Failed {
		s.recordEvent("last request failed")
	} else {
		s.recordEvent("reply received")
	}
	turn.complete(reply)
}

func (s *Session) callGenerator(credential, prompt string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("generator panicked", zap.Any("panic", r))
			err = fmt.Errorf("generator panicked: %v", r)
		}
	}()
	return s.generator.Generate(s.ctx, credential, prompt)
}

// Shutdown stops the session. It waits for an in-flight request to record
// its outcome before closing the event stream, and is safe to call twice.
func (s *Session) Shutdown() error {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()

		s.cancel()
		s.wg.Wait()

		s.mu.Lock()
		close(s.closed)
		close(s.events)
		s.mu.Unlock()
		s.logger.Debug("session shut down")
	})
	return nil
}

// DescribeFailure turns a generation error into the text shown in the
// transcript.
func DescribeFailure(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return "Error: request cancelled"
	}

	var f *generation.Failure
	if !errors.As(err, &f) {
		return "Error: " + err.Error()
	}
	switch f.Kind {
	case generation.KindTransport:
		return fmt.Sprintf("Error: could not reach the generation service: %v", f.Err)
	case generation.KindRemoteRejected:
		if f.Status != 0 {
			return fmt.Sprintf("Error: %s (HTTP %d)", f.Message, f.Status)
		}
		return "Error: " + f.Message
	case generation.KindMalformedResponse:
		return "Error: unexpected response from the generation service: " + f.Message
	default:
		return "Error: " + f.Error()
	}
}
