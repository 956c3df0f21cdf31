package evalclient

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// TokenStore holds the bearer token used when the server issues one in addition to the
// session cookie. An empty token means cookie authentication only.
type TokenStore interface {
	Token() string
	SetToken(token string) error
	Clear() error
}

// MemoryTokenStore keeps the token for the lifetime of the process.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *MemoryTokenStore) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryTokenStore) Clear() error {
	return s.SetToken("")
}

// FileTokenStore persists the token in a file readable only by the current user so that
// the command line keeps the session between invocations.
type FileTokenStore struct {
	path string
	mem  MemoryTokenStore
}

func NewFileTokenStore(path string) (*FileTokenStore, error) {
	s := &FileTokenStore{path: path}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	_ = s.mem.SetToken(strings.TrimSpace(string(data)))
	return s, nil
}

func (s *FileTokenStore) Token() string {
	return s.mem.Token()
}

func (s *FileTokenStore) SetToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(s.path, []byte(token), 0o600); err != nil {
		return err
	}
	return s.mem.SetToken(token)
}

func (s *FileTokenStore) Clear() error {
	_ = s.mem.Clear()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
