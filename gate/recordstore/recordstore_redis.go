package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/humancheck/gatekeeper/gate/record"

	"github.com/redis/go-redis/v9"
)

var redisRecordPrefix string = "record/"
var redisIndexKey string = "record-index"

// how many times an unconditional write retries when it races another writer
var redisMaxTxRetries = 10

type RedisRecordStore struct {
	Client *redis.Client
}

var _ RecordStore = (*RedisRecordStore)(nil)

func NewRedisRecordStore(redisURL string) (*RedisRecordStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisRecordStore{
		Client: rdb,
	}, nil
}

func (s *RedisRecordStore) Get(ctx context.Context, username string) (*record.Record, error) {
	raw, err := s.Client.Get(ctx, redisRecordPrefix+username).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: no verification record for %s", record.ErrNotFound, username)
	} else if err != nil {
		return nil, err
	}
	var rec record.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decoding verification record for %s: %w", username, err)
	}
	return &rec, nil
}

func (s *RedisRecordStore) Put(ctx context.Context, rec *record.Record) error {
	var err error
	for i := 0; i < redisMaxTxRetries; i++ {
		err = s.write(ctx, rec, nil)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func (s *RedisRecordStore) PutIfVersion(ctx context.Context, rec *record.Record, expected int64) error {
	err := s.write(ctx, rec, &expected)
	if errors.Is(err, redis.TxFailedErr) {
		// somebody else wrote between our read and our write
		return fmt.Errorf("%w: concurrent write to record for %s", record.ErrVersionConflict, rec.Username)
	}
	return err
}

func (s *RedisRecordStore) write(ctx context.Context, rec *record.Record, expected *int64) error {
	if rec == nil || rec.Username == "" {
		return fmt.Errorf("%w: can not store record without username", record.ErrValidation)
	}
	key := redisRecordPrefix + rec.Username

	var version int64
	err := s.Client.Watch(ctx, func(tx *redis.Tx) error {
		var current int64
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil {
			var stored record.Record
			if err := json.Unmarshal(raw, &stored); err != nil {
				return fmt.Errorf("decoding verification record for %s: %w", rec.Username, err)
			}
			current = stored.Version
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
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, 0)
			pipe.SAdd(ctx, redisIndexKey, rec.Username)
			return nil
		})
		if err != nil {
			return err
		}
		version = next.Version
		return nil
	}, key)
	if err != nil {
		return err
	}
	rec.Version = version
	return nil
}

func (s *RedisRecordStore) Delete(ctx context.Context, username string) error {
	multi := s.Client.TxPipeline()
	multi.Del(ctx, redisRecordPrefix+username)
	multi.SRem(ctx, redisIndexKey, username)
	_, err := multi.Exec(ctx)
	return err
}

func (s *RedisRecordStore) ListUsernames(ctx context.Context) ([]string, error) {
	out, err := s.Client.SMembers(ctx, redisIndexKey).Result()
	if err == redis.Nil {
		return []string{}, nil
	} else if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
