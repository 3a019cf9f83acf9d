package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/humancheck/gatekeeper/gate/record"

	"gorm.io/gorm"
)

// Database row for a single verification record. The full record is kept as a JSON blob, with
// status and version broken out for queries and conditional updates.
type GormRecord struct {
	Username  string `gorm:"primaryKey"`
	Status    string `gorm:"index"`
	Version   int64
	Data      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (GormRecord) TableName() string {
	return "verification_records"
}

var gormMaxRetries = 10

// GormRecordStore is a gorm-backed implementation of the RecordStore interface
type GormRecordStore struct {
	db *gorm.DB
}

var _ RecordStore = (*GormRecordStore)(nil)

func NewGormRecordStore(db *gorm.DB) (*GormRecordStore, error) {
	if err := db.AutoMigrate(&GormRecord{}); err != nil {
		return nil, fmt.Errorf("migrating verification records table: %w", err)
	}
	return &GormRecordStore{db: db}, nil
}

func (s *GormRecordStore) Get(ctx context.Context, username string) (*record.Record, error) {
	var row GormRecord
	err := s.db.WithContext(ctx).Where("username = ?", username).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no verification record for %s", record.ErrNotFound, username)
	} else if err != nil {
		return nil, err
	}
	var rec record.Record
	if err := json.Unmarshal(row.Data, &rec); err != nil {
		return nil, fmt.Errorf("decoding verification record for %s: %w", username, err)
	}
	rec.Version = row.Version
	return &rec, nil
}

func (s *GormRecordStore) Put(ctx context.Context, rec *record.Record) error {
	return s.write(ctx, rec, nil)
}

func (s *GormRecordStore) PutIfVersion(ctx context.Context, rec *record.Record, expected int64) error {
	return s.write(ctx, rec, &expected)
}

func (s *GormRecordStore) write(ctx context.Context, rec *record.Record, expected *int64) error {
	if rec == nil || rec.Username == "" {
		return fmt.Errorf("%w: can not store record without username", record.ErrValidation)
	}
	db := s.db.WithContext(ctx)

	for i := 0; i < gormMaxRetries; i++ {
		var current int64
		var row GormRecord
		err := db.Select("version").Where("username = ?", rec.Username).Take(&row).Error
		if err == nil {
			current = row.Version
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if expected != nil && *expected != current {
			return fmt.Errorf("%w: record for %s is at version %d, expected %d", record.ErrVersionConflict, rec.Username, current, *expected)
		}

		next := rec.Clone()
		next.Version = current + 1
		b, err := json.Marshal(next)
		if err != nil {
			return err
		}

		raced := false
		if current == 0 {
			err = db.Create(&GormRecord{
				Username: rec.Username,
				Status:   string(next.Status),
				Version:  next.Version,
				Data:     b,
			}).Error
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				raced = true
			} else if err != nil {
				return err
			}
		} else {
			res := db.Model(&GormRecord{}).
				Where("username = ? AND version = ?", rec.Username, current).
				Updates(map[string]any{
					"status":  string(next.Status),
					"version": next.Version,
					"data":    b,
				})
			if res.Error != nil {
				return res.Error
			}
			raced = res.RowsAffected == 0
		}

		if !raced {
			rec.Version = next.Version
			return nil
		}
		if expected != nil {
			return fmt.Errorf("%w: concurrent write to record for %s", record.ErrVersionConflict, rec.Username)
		}
	}
	return fmt.Errorf("writing record for %s: too much write contention", rec.Username)
}

func (s *GormRecordStore) Delete(ctx context.Context, username string) error {
	return s.db.WithContext(ctx).Where("username = ?", username).Delete(&GormRecord{}).Error
}

func (s *GormRecordStore) ListUsernames(ctx context.Context) ([]string, error) {
	out := []string{}
	if err := s.db.WithContext(ctx).Model(&GormRecord{}).Order("username").Pluck("username", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
