package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/humancheck/gatekeeper/gate/cachestore"
	"github.com/humancheck/gatekeeper/gate/challenge"
	"github.com/humancheck/gatekeeper/gate/countstore"
	"github.com/humancheck/gatekeeper/gate/engine"
	"github.com/humancheck/gatekeeper/gate/flagstore"
	"github.com/humancheck/gatekeeper/gate/machine"
	"github.com/humancheck/gatekeeper/gate/platform"
	"github.com/humancheck/gatekeeper/gate/policy"
	"github.com/humancheck/gatekeeper/gate/recordstore"
	"github.com/humancheck/gatekeeper/gate/setstore"
	"github.com/humancheck/gatekeeper/util"
	"github.com/humancheck/gatekeeper/util/cliutil"

	cli "github.com/urfave/cli/v2"
)

// moderator lists and profiles change rarely
var cacheTTL = 10 * time.Minute

func configEngine(cctx *cli.Context, logger *slog.Logger) (*engine.Engine, error) {
	redisURL := cctx.String("redis-url")

	var records recordstore.RecordStore
	switch cctx.String("store") {
	case "memory":
		records = recordstore.NewMemRecordStore()
	case "redis":
		if redisURL == "" {
			return nil, fmt.Errorf("redis record store needs --redis-url")
		}
		rs, err := recordstore.NewRedisRecordStore(redisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		records = rs
	case "sql":
		db, err := cliutil.SetupDatabase(cctx.String("database-url"), cctx.Int("max-db-connections"), cctx.Bool("db-tracing"))
		if err != nil {
			return nil, err
		}
		gs, err := recordstore.NewGormRecordStore(db)
		if err != nil {
			return nil, err
		}
		records = gs
	default:
		return nil, fmt.Errorf("unknown record store: %s", cctx.String("store"))
	}

	var counters countstore.CountStore
	var flags flagstore.FlagStore
	var cache cachestore.CacheStore
	if redisURL != "" {
		rc, err := countstore.NewRedisCountStore(redisURL)
		if err != nil {
			return nil, err
		}
		counters = rc
		rf, err := flagstore.NewRedisFlagStore(redisURL)
		if err != nil {
			return nil, err
		}
		flags = rf
		csh, err := cachestore.NewRedisCacheStore(redisURL, cacheTTL)
		if err != nil {
			return nil, err
		}
		cache = csh
	} else {
		counters = countstore.NewMemCountStore()
		flags = flagstore.NewMemFlagStore()
		cache = cachestore.NewMemCacheStore(5_000, cacheTTL)
	}

	sets := setstore.NewMemSetStore()
	if p := cctx.String("sets-file"); p != "" {
		if err := sets.LoadFromFileJSON(p); err != nil {
			return nil, fmt.Errorf("loading sets file: %w", err)
		}
	}

	var policies policy.Provider
	if p := cctx.String("policy-file"); p != "" {
		policies = &policy.FileProvider{Path: p}
	} else {
		pol := policy.Default()
		if c := cctx.String("community"); c != "" {
			pol.CommunityName = c
		}
		policies = policy.NewStaticProvider(pol)
	}

	var plat platform.Client
	if host := cctx.String("platform-host"); host != "" {
		if cctx.String("community") == "" {
			return nil, fmt.Errorf("platform API needs --community")
		}
		plat = platform.NewAPIClient(host, cctx.String("community"), cctx.String("platform-token"), cctx.Float64("platform-rate-limit"), logger)
	} else {
		logger.Warn("no platform host configured, using in-memory mock platform")
		plat = platform.NewMockClient()
	}

	var notifier engine.Notifier
	if u := cctx.String("slack-webhook-url"); u != "" {
		notifier = &engine.SlackNotifier{
			SlackWebhookURL: u,
			Client:          util.RobustHTTPClient(logger),
		}
	}

	eng := engine.Engine{
		Logger:           logger,
		Records:          records,
		Policies:         policies,
		Platform:         plat,
		Machine:          machine.New(challenge.NewRandomGenerator()),
		Perms:            &engine.ModeratorPermissions{Platform: plat, Cache: cache},
		Counters:         counters,
		Flags:            flags,
		Sets:             sets,
		Cache:            cache,
		Notifier:         notifier,
		OptimisticWrites: cctx.Bool("optimistic-writes"),
	}
	return &eng, nil
}
