// Package credential holds the API key for the generation endpoint for the
// lifetime of one terminal session.
package credential

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"gemchat/internal/logging"
)

// Store keeps the current credential in memory and mirrors every accepted
// value into a session-scoped Mirror. It never logs the value itself.
type Store struct {
	mu     sync.RWMutex
	value  string
	mirror Mirror
	logger *zap.Logger
}

// New builds a Store and restores a previously mirrored credential. The
// restore happens once, here, so callers can take the configured/unconfigured
// decision exactly once per session start.
func New(mirror Mirror, logger *zap.Logger) *Store {
	if mirror == nil {
		mirror = NewMemoryMirror()
	}
	s := &Store{mirror: mirror, logger: logging.OrNop(logger).Named("credential")}

	value, ok, err := mirror.Load()
	switch {
	case err != nil:
		s.logger.Warn("restore credential from session mirror failed", zap.Error(err))
	case ok && strings.TrimSpace(value) != "":
		s.value = strings.TrimSpace(value)
		s.logger.Info("restored credential from session mirror")
	}
	return s
}

// Set stores value and mirrors it. Empty or whitespace-only input is rejected
// and leaves the store untouched.
func (s *Store) Set(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.value = trimmed
	if err := s.mirror.Save(trimmed); err != nil {
		s.logger.Warn("mirror credential failed", zap.Error(err))
	}
	s.logger.Info("credential configured")
	return true
}

// Get returns the current credential, or false when none is configured.
func (s *Store) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, s.value != ""
}

func (s *Store) IsConfigured() bool {
	_, ok := s.Get()
	return ok
}

// Forget drops the credential from memory and from the mirror.
func (s *Store) Forget() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.value = ""
	if err := s.mirror.Clear(); err != nil {
		return err
	}
	s.logger.Info("credential forgotten")
	return nil
}
