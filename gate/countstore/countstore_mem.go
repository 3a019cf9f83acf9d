package countstore

import (
	"context"
	"sync"
	"time"
)

type MemCountStore struct {
	lk     sync.Mutex
	Counts map[string]int
	// defaults to time.Now; tests swap it to move between buckets
	Clock func() time.Time
}

var _ CountStore = (*MemCountStore)(nil)

func NewMemCountStore() *MemCountStore {
	return &MemCountStore{
		Counts: make(map[string]int),
		Clock:  time.Now,
	}
}

func (s *MemCountStore) GetCount(ctx context.Context, name, val, period string) (int, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.Counts[periodBucket(name, val, period, s.Clock())], nil
}

func (s *MemCountStore) Increment(ctx context.Context, name, val string) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	now := s.Clock()
	for _, p := range []string{PeriodTotal, PeriodDay, PeriodHour} {
		s.Counts[periodBucket(name, val, p, now)]++
	}
	return nil
}
