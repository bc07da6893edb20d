// Package identity keeps the values a player enters on the join screen and
// hands the room session its room code and identity.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrCorruptStore means the state file exists but is not readable JSON.
var ErrCorruptStore = errors.New("corrupt state file")

// Keys match the names the web client used for its cookies.
const (
	KeyRoom  = "dungeon-room"
	KeyName  = "dungeon-name"
	KeyColor = "dungeon-color"

	DefaultTTL = 24 * time.Hour
)

type entry struct {
	Value   string    `json:"value"`
	Expires time.Time `json:"expires"`
}

// Store is a small file of string values with a per-value expiry.
type Store struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// DefaultPath is ~/.dungeongreed.json, or the working directory when there is
// no home directory.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dungeongreed.json"
	}
	return filepath.Join(home, ".dungeongreed.json")
}

// Get returns "" for missing or expired values.
func (s *Store) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load()
	if err != nil {
		return "", err
	}
	e, ok := entries[key]
	if !ok || !s.now().Before(e.Expires) {
		return "", nil
	}
	return e.Value, nil
}

// Set writes value with an expiry ttl from now. A corrupt file is replaced.
func (s *Store) Set(key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load()
	if errors.Is(err, ErrCorruptStore) {
		entries, err = map[string]entry{}, nil
	}
	if err != nil {
		return err
	}
	now := s.now()
	for k, e := range entries {
		if !now.Before(e.Expires) {
			delete(entries, k)
		}
	}
	entries[key] = entry{Value: value, Expires: now.Add(ttl)}
	return s.save(entries)
}

func (s *Store) load() (map[string]entry, error) {
	entries := map[string]entry{}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptStore, s.path, err)
	}
	return entries, nil
}

func (s *Store) save(entries map[string]entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	return os.Rename(tmp, s.path)
}
