package blockchain

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// FlagStore persists the "manually disconnected" flag across runs.
type FlagStore interface {
	ManuallyDisconnected() bool
	SetManuallyDisconnected(v bool) error
}

// MemoryFlagStore keeps the flag for the lifetime of the process.
type MemoryFlagStore struct {
	mu sync.Mutex
	v  bool
}

func (s *MemoryFlagStore) ManuallyDisconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v
}

func (s *MemoryFlagStore) SetManuallyDisconnected(v bool) error {
	s.mu.Lock()
	s.v = v
	s.mu.Unlock()
	return nil
}

// Session is the on-disk wallet session.
type Session struct {
	ManuallyDisconnected bool   `yaml:"manually_disconnected"`
	LastAddress          string `yaml:"last_address,omitempty"`
	LastChainID          string `yaml:"last_chain_id,omitempty"`
}

// FileSessionStore keeps the wallet session in a YAML file.
type FileSessionStore struct {
	path string

	mu      sync.Mutex
	session Session
}

// OpenSessionStore loads path if it exists. A missing file is an empty
// session.
func OpenSessionStore(path string) (*FileSessionStore, error) {
	s := &FileSessionStore{path: path}
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, errors.Wrap(err, "read session")
	}
	if err := yaml.Unmarshal(b, &s.session); err != nil {
		return nil, errors.Wrapf(err, "parse session %s", path)
	}
	return s, nil
}

func (s *FileSessionStore) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *FileSessionStore) ManuallyDisconnected() bool {
	return s.Session().ManuallyDisconnected
}

func (s *FileSessionStore) SetManuallyDisconnected(v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.ManuallyDisconnected = v
	return s.save()
}

// Remember records the last connection so the CLI can report it without
// prompting the wallet. A nil connection forgets it.
func (s *FileSessionStore) Remember(c *Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c == nil {
		s.session.LastAddress, s.session.LastChainID = "", ""
	} else {
		s.session.LastAddress, s.session.LastChainID = c.Address, c.ChainID
	}
	return s.save()
}

func (s *FileSessionStore) save() error {
	b, err := yaml.Marshal(&s.session)
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, "create session dir")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return errors.Wrap(err, "write session")
	}
	return errors.Wrap(os.Rename(tmp, s.path), "replace session")
}
