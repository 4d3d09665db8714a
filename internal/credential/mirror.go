package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Mirror is session-scoped key/value storage for the credential. It must
// never be durable: its contents disappear when the terminal session ends.
type Mirror interface {
	Load() (string, bool, error)
	Save(value string) error
	Clear() error
}

// MemoryMirror lives only as long as the process.
type MemoryMirror struct {
	mu    sync.Mutex
	value string
	set   bool
}

func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{}
}

func (m *MemoryMirror) Load() (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, m.set, nil
}

func (m *MemoryMirror) Save(value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = value
	m.set = true
	return nil
}

func (m *MemoryMirror) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = ""
	m.set = false
	return nil
}

// RuntimeMirror stores the credential in a 0600 file inside the user's
// runtime directory. That directory is a tmpfs owned by the login session and
// is removed by the OS at logout.
type RuntimeMirror struct {
	path string
}

var sessionNamespace = uuid.MustParse("6f1c2b7e-3d4a-5e8f-9a0b-1c2d3e4f5a6b")

// NewRuntimeMirror returns a mirror for the given terminal session key,
// rooted at runtimeDir.
func NewRuntimeMirror(runtimeDir, sessionKey string) (*RuntimeMirror, error) {
	if strings.TrimSpace(runtimeDir) == "" {
		return nil, errors.New("runtime directory is not set")
	}
	if strings.TrimSpace(sessionKey) == "" {
		return nil, errors.New("session key cannot be empty")
	}
	name := uuid.NewSHA1(sessionNamespace, []byte(sessionKey)).String()
	return &RuntimeMirror{path: filepath.Join(runtimeDir, "gemchat", name+".cred")}, nil
}

// DefaultMirror picks a RuntimeMirror for the current terminal session, or a
// MemoryMirror when no runtime directory is available.
func DefaultMirror() Mirror {
	mirror, err := NewRuntimeMirror(os.Getenv("XDG_RUNTIME_DIR"), SessionKey())
	if err != nil {
		return NewMemoryMirror()
	}
	return mirror
}

// SessionKey identifies the terminal session the process runs in. Every key
// is tied to something that cannot recur in a later session: a terminal-issued
// GUID or an anchor process paired with its start time. It returns "" when no
// such anchor exists, which makes DefaultMirror fall back to memory.
func SessionKey() string {
	return sessionEnv{getenv: os.Getenv, ppid: os.Getppid(), startTime: procStartTime}.key()
}

type sessionEnv struct {
	getenv    func(string) string
	ppid      int
	startTime func(pid int) (string, error)
}

func (e sessionEnv) key() string {
	if v := strings.TrimSpace(e.getenv("GEMCHAT_SESSION")); v != "" {
		return "GEMCHAT_SESSION=" + v
	}

	// $TMUX is "socket,server pid,session"; pane ids restart at %0 with each
	// server, so the server's start time is part of the key.
	if tmux := strings.TrimSpace(e.getenv("TMUX")); tmux != "" {
		fields := strings.Split(tmux, ",")
		if len(fields) >= 3 {
			if pid, err := strconv.Atoi(fields[1]); err == nil {
				if start, err := e.startTime(pid); err == nil {
					return "TMUX=" + tmux + ";pane=" + strings.TrimSpace(e.getenv("TMUX_PANE")) + ";start=" + start
				}
			}
		}
	}

	for _, name := range []string{"TERM_SESSION_ID", "WT_SESSION"} {
		if v := strings.TrimSpace(e.getenv(name)); v != "" {
			return name + "=" + v
		}
	}

	if e.ppid > 1 {
		if start, err := e.startTime(e.ppid); err == nil {
			return "ppid=" + strconv.Itoa(e.ppid) + ";start=" + start
		}
	}
	return ""
}

// procStartTime reads field 22 (starttime, in clock ticks since boot) of
// /proc/<pid>/stat.
func procStartTime(pid int) (string, error) {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return "", fmt.Errorf("read process stat: %w", err)
	}
	return parseStartTime(string(data))
}

func parseStartTime(stat string) (string, error) {
	// comm (field 2) is parenthesised and may contain spaces.
	end := strings.LastIndexByte(stat, ')')
	if end < 0 {
		return "", errors.New("malformed process stat")
	}
	fields := strings.Fields(stat[end+1:])
	// fields[0] is field 3 (state).
	const startTimeIndex = 22 - 3
	if len(fields) <= startTimeIndex {
		return "", errors.New("process stat has no start time")
	}
	return fields[startTimeIndex], nil
}

func (m *RuntimeMirror) Path() string {
	return m.path
}

func (m *RuntimeMirror) Load() (string, bool, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read session credential: %w", err)
	}
	value := strings.TrimSpace(string(data))
	return value, value != "", nil
}

func (m *RuntimeMirror) Save(value string) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(value), 0o600); err != nil {
		return fmt.Errorf("write session credential: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("persist session credential: %w", err)
	}
	return nil
}

func (m *RuntimeMirror) Clear() error {
	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session credential: %w", err)
	}
	return nil
}
