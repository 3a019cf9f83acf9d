package recordstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/humancheck/gatekeeper/gate/record"

	"github.com/puzpuzpuz/xsync/v3"
)

type MemRecordStore struct {
	Records *xsync.MapOf[string, *record.Record]
}

var _ RecordStore = (*MemRecordStore)(nil)

func NewMemRecordStore() *MemRecordStore {
	return &MemRecordStore{
		Records: xsync.NewMapOf[string, *record.Record](),
	}
}

func (s *MemRecordStore) Get(ctx context.Context, username string) (*record.Record, error) {
	rec, ok := s.Records.Load(username)
	if !ok {
		return nil, fmt.Errorf("%w: no verification record for %s", record.ErrNotFound, username)
	}
	return rec.Clone(), nil
}

func (s *MemRecordStore) Put(ctx context.Context, rec *record.Record) error {
	return s.write(rec, nil)
}

func (s *MemRecordStore) PutIfVersion(ctx context.Context, rec *record.Record, expected int64) error {
	return s.write(rec, &expected)
}

func (s *MemRecordStore) write(rec *record.Record, expected *int64) error {
	if rec == nil || rec.Username == "" {
		return fmt.Errorf("%w: can not store record without username", record.ErrValidation)
	}
	var err error
	var version int64
	s.Records.Compute(rec.Username, func(old *record.Record, loaded bool) (*record.Record, bool) {
		var current int64
		if loaded {
			current = old.Version
		}
		if expected != nil && *expected != current {
			err = fmt.Errorf("%w: record for %s is at version %d, expected %d", record.ErrVersionConflict, rec.Username, current, *expected)
			// leave the map untouched
			return old, !loaded
		}
		stored := rec.Clone()
		stored.Version = current + 1
		version = stored.Version
		return stored, false
	})
	if err != nil {
		return err
	}
	rec.Version = version
	return nil
}

func (s *MemRecordStore) Delete(ctx context.Context, username string) error {
	s.Records.Delete(username)
	return nil
}

func (s *MemRecordStore) ListUsernames(ctx context.Context) ([]string, error) {
	out := []string{}
	s.Records.Range(func(username string, _ *record.Record) bool {
		out = append(out, username)
		return true
	})
	sort.Strings(out)
	return out, nil
}
