package setstore

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
)

// Named sets of strings, like "flagged-domains". Membership checks are case-insensitive.
type SetStore interface {
	InSet(ctx context.Context, name, val string) (bool, error)
}

type MemSetStore struct {
	lk   sync.RWMutex
	Sets map[string]map[string]bool
}

var _ SetStore = (*MemSetStore)(nil)

func NewMemSetStore() *MemSetStore {
	return &MemSetStore{
		Sets: make(map[string]map[string]bool),
	}
}

// returns false when the entire set isn't found
func (s *MemSetStore) InSet(ctx context.Context, name, val string) (bool, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	return s.Sets[name][strings.ToLower(val)], nil
}

func (s *MemSetStore) Add(name string, vals ...string) {
	s.lk.Lock()
	defer s.lk.Unlock()
	m, ok := s.Sets[name]
	if !ok {
		m = make(map[string]bool, len(vals))
		s.Sets[name] = m
	}
	for _, v := range vals {
		m[strings.ToLower(v)] = true
	}
}

// Loads sets from a JSON file, formatted as an object mapping set names to lists of values.
// Replaces any existing sets with the same names.
func (s *MemSetStore) LoadFromFileJSON(p string) error {
	raw, err := os.ReadFile(p)
	if err != nil {
		return err
	}

	var sets map[string][]string
	if err := json.Unmarshal(raw, &sets); err != nil {
		return err
	}

	s.lk.Lock()
	defer s.lk.Unlock()
	for name, l := range sets {
		m := make(map[string]bool, len(l))
		for _, val := range l {
			m[strings.ToLower(val)] = true
		}
		s.Sets[name] = m
	}
	return nil
}
