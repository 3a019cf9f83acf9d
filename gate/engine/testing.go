package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/humancheck/gatekeeper/gate/cachestore"
	"github.com/humancheck/gatekeeper/gate/challenge"
	"github.com/humancheck/gatekeeper/gate/countstore"
	"github.com/humancheck/gatekeeper/gate/flagstore"
	"github.com/humancheck/gatekeeper/gate/machine"
	"github.com/humancheck/gatekeeper/gate/platform"
	"github.com/humancheck/gatekeeper/gate/policy"
	"github.com/humancheck/gatekeeper/gate/recordstore"
	"github.com/humancheck/gatekeeper/gate/setstore"
)

// Manually advanced clock, for tests.
type TestClock struct {
	lk  sync.Mutex
	now time.Time
}

func NewTestClock(start time.Time) *TestClock {
	return &TestClock{now: start}
}

func (c *TestClock) Now() time.Time {
	c.lk.Lock()
	defer c.lk.Unlock()
	return c.now
}

func (c *TestClock) Advance(d time.Duration) {
	c.lk.Lock()
	defer c.lk.Unlock()
	c.now = c.now.Add(d)
}

// Engine wired entirely to in-memory stores and a mock platform. Moderators: "mod1" (all), "mod2"
// (posts only), "mod3" (posts and access). Challenge tokens are always "K7m".
func EngineTestFixture() Engine {
	mock := platform.NewMockClient()
	mock.Moderators = []platform.Moderator{
		{Username: "mod1", Permissions: []string{platform.PermAll}},
		{Username: "mod2", Permissions: []string{platform.PermPosts}},
		{Username: "mod3", Permissions: []string{platform.PermPosts, platform.PermAccess}},
	}
	mock.Profiles["u1"] = &platform.UserProfile{
		Username:     "u1",
		CreatedAt:    time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		CommentKarma: 120,
		LinkKarma:    4,
	}
	cache := cachestore.NewMemCacheStore(10, time.Hour)
	sets := setstore.NewMemSetStore()
	sets.Add(SetFlaggedDomains, "onlyfans", "fansly")
	engine := Engine{
		Logger:   slog.Default(),
		Records:  recordstore.NewMemRecordStore(),
		Policies: policy.NewStaticProvider(policy.Default()),
		Platform: mock,
		Machine:  machine.New(challenge.NewFixedGenerator("K7m")),
		Perms:    &ModeratorPermissions{Platform: mock, Cache: cache},
		Counters: countstore.NewMemCountStore(),
		Flags:    flagstore.NewMemFlagStore(),
		Sets:     sets,
		Cache:    cache,
	}
	return engine
}
