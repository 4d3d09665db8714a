package chat

import (
	"fmt"
	"strings"
)

// emitLocked publishes the current state. The caller holds s.mu, which keeps
// events in the same order as the mutations they describe. A full buffer
// drops its oldest event instead of blocking the state machine.
func (s *Session) emitLocked(ev Event) {
	select {
	case <-s.closed:
		return
	default:
	}

	ev.State = s.state.clone()
	select {
	case s.events <- ev:
	default:
		select {
		case <-s.events:
		default:
		}
		select {
		case s.events <- ev:
		default:
		}
	}
}

func (s *Session) emitNotice(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitLocked(Event{Notice: fmt.Sprintf(format, args...)})
}

func (s *Session) recordEvent(format string, args ...any) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.lastEvent = fmt.Sprintf(format, args...)
}

func (s *Session) lastEventValue() string {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.lastEvent
}

func (s *Session) statusSummary() string {
	snapshot := s.Snapshot()

	credential := "not configured"
	if _, ok := s.credentials.Get(); ok {
		credential = "configured"
	}
	state := "idle"
	if snapshot.Busy {
		state = "waiting for reply"
	}

	lines := []string{
		fmt.Sprintf("model: %s", s.cfg.Model),
		fmt.Sprintf("endpoint: %s", s.cfg.Endpoint),
		fmt.Sprintf("api key: %s", credential),
		fmt.Sprintf("state: %s", state),
		fmt.Sprintf("messages: %d", len(snapshot.Transcript)),
	}
	if last := s.lastEventValue(); last != "" {
		lines = append(lines, fmt.Sprintf("last event: %s", last))
	}
	return strings.Join(lines, "\n")
}
