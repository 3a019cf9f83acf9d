package flagstore

import (
	"context"
	"sort"

	"github.com/redis/go-redis/v9"
)

var redisFlagPrefix string = "flag/"

// Flags are stored as one redis set per key.
type RedisFlagStore struct {
	Client *redis.Client
}

var _ FlagStore = (*RedisFlagStore)(nil)

func NewRedisFlagStore(redisURL string) (*RedisFlagStore, error) {
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
	return &RedisFlagStore{
		Client: rdb,
	}, nil
}

func (s *RedisFlagStore) Get(ctx context.Context, key string) ([]string, error) {
	out, err := s.Client.SMembers(ctx, redisFlagPrefix+key).Result()
	if err == redis.Nil {
		return []string{}, nil
	} else if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func (s *RedisFlagStore) Add(ctx context.Context, key string, flags []string) error {
	if len(flags) == 0 {
		return nil
	}
	members := make([]any, len(flags))
	for i, f := range flags {
		members[i] = f
	}
	return s.Client.SAdd(ctx, redisFlagPrefix+key, members...).Err()
}

func (s *RedisFlagStore) Remove(ctx context.Context, key string, flags []string) error {
	if len(flags) == 0 {
		return nil
	}
	members := make([]any, len(flags))
	for i, f := range flags {
		members[i] = f
	}
	return s.Client.SRem(ctx, redisFlagPrefix+key, members...).Err()
}
