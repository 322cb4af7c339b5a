// Package localstore is a small persistent key/value store holding JSON
// documents in one file, the server and client analogue of browser
// localStorage.
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	KeyToken    = "token"
	KeyUser     = "user"
	KeyUsers    = "users"
	KeyCart     = "organicHubCart"
	KeyWishlist = "wishlist"
	KeyOrders   = "orders"
)

// Store is safe for concurrent use within one process. A Store with an
// empty path lives only in memory.
type Store struct {
	path string

	mu   sync.Mutex
	data map[string]json.RawMessage
}

// Open loads path if it exists. The parent directory is created on first write.
func Open(path string) (*Store, error) {
	s := &Store{path: path, data: map[string]json.RawMessage{}}
	if path == "" {
		return s, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read local store: %w", err)
	}
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("decode local store %s: %w", path, err)
	}
	return s, nil
}

// Memory returns an in-memory store.
func Memory() *Store {
	s, _ := Open("")
	return s
}

// Get decodes key into out. It reports false when the key is absent.
func (s *Store) Get(key string, out any) (bool, error) {
	s.mu.Lock()
	raw, ok := s.data[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

// GetString returns a string value or "".
func (s *Store) GetString(key string) string {
	var v string
	if ok, err := s.Get(key, &v); !ok || err != nil {
		return ""
	}
	return v
}

// Set stores value under key and persists the store.
func (s *Store) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(func(next map[string]json.RawMessage) {
		next[key] = raw
	})
}

// Remove deletes keys and persists the store.
func (s *Store) Remove(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(func(next map[string]json.RawMessage) {
		for _, k := range keys {
			delete(next, k)
		}
	})
}

// Update runs fn on the current value of key (decoded into a fresh T) and
// stores the result, all under the store lock. On error the stored value is
// left as it was.
func Update[T any](s *Store, key string, fn func(cur T) (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cur T
	if raw, ok := s.data[key]; ok {
		if err := json.Unmarshal(raw, &cur); err != nil {
			return cur, fmt.Errorf("decode %q: %w", key, err)
		}
	}
	next, err := fn(cur)
	if err != nil {
		return cur, err
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return cur, fmt.Errorf("encode %q: %w", key, err)
	}
	if err := s.commitLocked(func(m map[string]json.RawMessage) { m[key] = raw }); err != nil {
		return cur, err
	}
	return next, nil
}

// commitLocked applies change to a copy of the data, persists the copy and
// only then makes it current.
func (s *Store) commitLocked(change func(map[string]json.RawMessage)) error {
	next := make(map[string]json.RawMessage, len(s.data)+1)
	for k, v := range s.data {
		next[k] = v
	}
	change(next)
	if err := s.flush(next); err != nil {
		return err
	}
	s.data = next
	return nil
}

func (s *Store) flush(data map[string]json.RawMessage) error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create local store dir: %w", err)
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write local store: %w", err)
	}
	return os.Rename(tmp, s.path)
}
