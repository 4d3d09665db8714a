package chat

import (
	"errors"
	"strings"

	"gemchat/internal/config"
)

// ErrQuit is returned by HandleInput when the user asks to leave.
var ErrQuit = errors.New("quit")

const helpText = `commands:
  /status        show model, key and request state
  /save <name>   save the current settings as a profile
  /help          show this help
  /quit          leave the chat
start a prompt with // to send a literal leading slash`

var commandNames = map[string]bool{
	"/quit": true, "/exit": true, "/q": true,
	"/help": true, "/status": true, "/save": true,
}

// HandleInput routes a line typed by the user: known slash commands are
// handled locally, everything else is submitted for generation. A leading
// "//" is sent as a single "/".
func (s *Session) HandleInput(text string) error {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "//") {
		_, err := s.Submit(trimmed[1:])
		return err
	}
	if fields := strings.Fields(trimmed); len(fields) > 0 && commandNames[fields[0]] {
		err := s.handleCommand(trimmed)
		if err == nil {
			s.SetPendingInput("")
		}
		return err
	}
	_, err := s.Submit(text)
	return err
}

func (s *Session) handleCommand(cmd string) error {
	switch {
	case cmd == "/quit" || cmd == "/exit" || cmd == "/q":
		s.emitNotice("goodbye")
		return ErrQuit
	case cmd == "/help":
		s.emitNotice("%s", helpText)
		return nil
	case cmd == "/status":
		s.emitNotice("%s", s.statusSummary())
		return nil
	case strings.HasPrefix(cmd, "/save"):
		parts := strings.Fields(cmd)
		if len(parts) != 2 {
			s.emitNotice("usage: /save <name>")
			return nil
		}
		if s.store == nil {
			s.emitNotice("config saving is not available")
			return nil
		}
		if err := s.store.Save(parts[1], s.cfg); err != nil {
			s.emitNotice("failed to save profile: %v", err)
			return nil
		}
		s.emitNotice("saved profile %q\n%s", parts[1], strings.Join(config.Summary(s.cfg), "\n"))
		s.recordEvent("saved profile %q", parts[1])
		return nil
	default:
		s.emitNotice("usage: %s takes no arguments", strings.Fields(cmd)[0])
		return nil
	}
}
