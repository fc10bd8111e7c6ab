// Package store owns the client's persisted state: the auth token and the
// cached teacher profile.
//
// There is exactly one Writer per Store. Everything else reads through
// selectors or subscribes to changes.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/learnhub/studyroom/internal/models"
)

// State is the persisted snapshot.
type State struct {
	Token    string                 `json:"token,omitempty"`
	Profile  *models.TeacherProfile `json:"profile,omitempty"`
	Revision uint64                 `json:"revision"`
}

// Store is the read side of the client state.
type Store struct {
	mu     sync.RWMutex
	state  State
	path   string
	subs   map[int]func(State)
	nextID int
	logger *zap.Logger
}

// Writer is the single handle allowed to mutate a Store.
type Writer struct {
	s *Store
}

// Open loads state from path (a missing file yields empty state) and returns the store with its writer.
// An empty path keeps state in memory only.
func Open(path string, logger *zap.Logger) (*Store, *Writer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{path: path, subs: make(map[int]func(State)), logger: logger}
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, nil, fmt.Errorf("read state: %w", err)
		default:
			if err := json.Unmarshal(raw, &s.state); err != nil {
				return nil, nil, fmt.Errorf("decode state %s: %w", path, err)
			}
		}
	}
	return s, &Writer{s: s}, nil
}

// Token returns the bearer token; it satisfies apiclient.TokenSource.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

// Profile returns a copy of the cached profile, or nil.
func (s *Store) Profile() *models.TeacherProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Profile == nil {
		return nil
	}
	p := *s.state.Profile
	return &p
}

// Revision increases on every write.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Revision
}

// Snapshot returns a copy of the whole state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to run after each write, and returns the unsubscribe func.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) snapshotLocked() State {
	st := s.state
	if st.Profile != nil {
		p := *st.Profile
		st.Profile = &p
	}
	return st
}

// apply runs mutate under the write lock, persists, then notifies subscribers outside the lock.
func (s *Store) apply(mutate func(*State) bool) (bool, error) {
	s.mu.Lock()
	if !mutate(&s.state) {
		s.mu.Unlock()
		return false, nil
	}
	s.state.Revision++
	snap := s.snapshotLocked()
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	err := s.persistLocked()
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("persist state failed", zap.String("path", s.path), zap.Error(err))
	}
	for _, fn := range subs {
		fn(snap)
	}
	return true, err
}

func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	raw, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// SetToken stores the bearer token.
func (w *Writer) SetToken(token string) error {
	_, err := w.s.apply(func(st *State) bool {
		if st.Token == token {
			return false
		}
		st.Token = token
		return true
	})
	return err
}

// ClearSession drops the token and the cached profile.
func (w *Writer) ClearSession() error {
	_, err := w.s.apply(func(st *State) bool {
		if st.Token == "" && st.Profile == nil {
			return false
		}
		st.Token = ""
		st.Profile = nil
		return true
	})
	return err
}

// SetProfile replaces the cached profile unconditionally.
func (w *Writer) SetProfile(p models.TeacherProfile) error {
	_, err := w.s.apply(func(st *State) bool {
		st.Profile = &p
		return true
	})
	return err
}

// SetProfileIfUnchanged replaces the profile only if no write happened since revision seen.
// It reports whether the profile was written.
func (w *Writer) SetProfileIfUnchanged(seen uint64, p models.TeacherProfile) (bool, error) {
	return w.s.apply(func(st *State) bool {
		if st.Revision != seen {
			return false
		}
		st.Profile = &p
		return true
	})
}
