package recordstore

import (
	"context"

	"github.com/humancheck/gatekeeper/gate/record"
)

// Persistence of one verification record per username, plus an index of all known usernames.
//
// Every successful write bumps the stored Version and copies it back into the record that was
// passed in. Reads return copies; callers own what they get.
type RecordStore interface {
	// returns record.ErrNotFound (wrapped) when there is no record for the user
	Get(ctx context.Context, username string) (*record.Record, error)
	// unconditional write; concurrent writers race, and the last one wins
	Put(ctx context.Context, rec *record.Record) error
	// conditional write: fails with record.ErrVersionConflict unless the stored version equals
	// expected. An expected version of zero means the record must not exist yet.
	PutIfVersion(ctx context.Context, rec *record.Record, expected int64) error
	// does not error if the record doesn't exist
	Delete(ctx context.Context, username string) error
	// sorted
	ListUsernames(ctx context.Context) ([]string, error)
}
