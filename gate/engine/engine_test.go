package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/humancheck/gatekeeper/gate/enforce"
	"github.com/humancheck/gatekeeper/gate/machine"
	"github.com/humancheck/gatekeeper/gate/platform"
	"github.com/humancheck/gatekeeper/gate/policy"
	"github.com/humancheck/gatekeeper/gate/record"
	"github.com/humancheck/gatekeeper/gate/recordstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testEngine() (*Engine, *platform.MockClient, *TestClock, *policy.StaticProvider) {
	eng := EngineTestFixture()
	clk := NewTestClock(testStart)
	eng.Clock = clk.Now
	return &eng, eng.Platform.(*platform.MockClient), clk, eng.Policies.(*policy.StaticProvider)
}

func goodAnswers(username string) record.Answers {
	return record.Answers{
		Human:           true,
		AIUsage:         record.AIUsageNo,
		UsernameConfirm: "u/" + username,
		// order and case don't matter
		TokenEntered: "m7k",
		Acknowledged: true,
	}
}

func post(id, author string) enforce.Content {
	return enforce.Content{ID: id, Kind: enforce.KindPost, Author: author, Permalink: "/r/example/comments/" + id}
}

func TestEndToEnd(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng, mock, clk, _ := testEngine()

	// no record yet: allowed
	dec, err := eng.ProcessContent(ctx, post("t3_first", "u1"))
	require.NoError(err)
	assert.Equal(enforce.ActionAllow, dec.Action)
	assert.False(mock.Removed["t3_first"])

	rec, err := eng.RequestChallenge(ctx, "u1", "mod1")
	require.NoError(err)
	assert.Equal(record.StatusPending, rec.Status)
	assert.Equal("K7m", rec.ChallengeToken)
	assert.Equal("conv-1", rec.NotificationConversationID)
	assert.Equal(1, len(mock.Threads["conv-1"]))
	assert.True(mock.Archived["conv-1"])

	// posting before completing the challenge
	clk.Advance(2 * time.Second)
	dec, err = eng.ProcessContent(ctx, post("t3_pending", "u1"))
	require.NoError(err)
	assert.Equal(enforce.ActionRemove, dec.Action)
	assert.Equal(record.StatusPending, dec.Status)
	assert.True(mock.Removed["t3_pending"])
	assert.False(mock.Spammed["t3_pending"])
	// removal notice lands in the existing thread
	assert.Equal(2, len(mock.Threads["conv-1"]))

	clk.Advance(3 * time.Second)
	view, err := eng.OpenChallenge(ctx, "u1")
	require.NoError(err)
	assert.False(view.Done)
	assert.Equal("K7m", view.Token)
	assert.Equal("T-K7m", view.TokenPrompt)
	assert.Contains(view.UsernameOptions, "u1")
	assert.Equal(6, len(view.UsernameOptions))

	clk.Advance(20 * time.Second)
	res, err := eng.SubmitChallenge(ctx, "u1", goodAnswers("u1"))
	require.NoError(err)
	assert.True(res.Passed)
	assert.Empty(res.Reasons)
	assert.Empty(res.Flags)
	assert.Equal(record.StatusVerified, res.Record.Status)
	assert.Equal(20.0, res.Record.CompletionLatencySeconds)
	assert.Equal(5.0, res.Record.OpenLatencySeconds)

	dec, err = eng.ProcessContent(ctx, enforce.Content{ID: "t1_after", Kind: enforce.KindComment, Author: "u1"})
	require.NoError(err)
	assert.Equal(enforce.ActionAllow, dec.Action)
	assert.False(mock.Removed["t1_after"])

	// request note, removal note, verified note
	require.Equal(3, len(mock.Notes))
	assert.Equal(machine.LabelWatch, mock.Notes[0].Label)
	assert.Equal(machine.LabelVerified, mock.Notes[2].Label)

	stored, err := eng.Records.Get(ctx, "u1")
	require.NoError(err)
	assert.Equal(record.StatusVerified, stored.Status)
	assert.Equal(1, stored.Requests)
	assert.Equal(1, stored.Attempts)
}

func TestRequestChallengeReusesConversation(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng, mock, clk, _ := testEngine()

	first, err := eng.RequestChallenge(ctx, "u1", "")
	require.NoError(err)
	clk.Advance(time.Hour)
	second, err := eng.RequestChallenge(ctx, "u1", "")
	require.NoError(err)

	assert.Equal(first.NotificationConversationID, second.NotificationConversationID)
	assert.Equal(2, second.Requests)
	require.Equal(2, len(mock.Threads["conv-1"]))
	assert.Equal("Reminder: Complete verification", mock.Threads["conv-1"][1].Subject)
	assert.Equal(1, len(mock.Threads))
}

func TestRequestChallengePermissions(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, mock, _, _ := testEngine()

	_, err := eng.RequestChallenge(ctx, "u1", "rando")
	assert.ErrorIs(err, record.ErrPermission)
	_, err = eng.Records.Get(ctx, "u1")
	assert.ErrorIs(err, record.ErrNotFound)

	_, err = eng.RequestChallenge(ctx, "u1", "mod2")
	assert.NoError(err)

	_, err = eng.RequestChallenge(ctx, "", "mod1")
	assert.ErrorIs(err, record.ErrValidation)

	// moderator list is only fetched once, then cached
	assert.Equal(1, mock.CallCount("ListModerators"))
}

func TestSubmitChallengeFailure(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng, mock, clk, pp := testEngine()
	pp.P.BanOnFailed = true

	_, err := eng.RequestChallenge(ctx, "u1", "")
	require.NoError(err)
	clk.Advance(5 * time.Second)
	_, err = eng.OpenChallenge(ctx, "u1")
	require.NoError(err)
	clk.Advance(20 * time.Second)

	ans := goodAnswers("u1")
	ans.HoneypotEntered = "http://spam.example.com"
	res, err := eng.SubmitChallenge(ctx, "u1", ans)
	require.NoError(err)
	assert.False(res.Passed)
	assert.Equal(record.StatusFailed, res.Record.Status)
	require.Equal(1, len(res.Reasons))
	assert.Contains(res.Reasons[0], "leave blank")
	assert.Equal([]string{FlagHoneypot}, res.Flags)

	flags, err := eng.Flags.Get(ctx, "u1")
	require.NoError(err)
	assert.Equal([]string{FlagHoneypot}, flags)
	require.Equal(1, len(mock.Bans))
	assert.Equal("u1", mock.Bans[0].Username)

	// already scored
	_, err = eng.SubmitChallenge(ctx, "u1", goodAnswers("u1"))
	assert.ErrorIs(err, record.ErrValidation)

	// failed users get content removed as spam
	pp.P.BanOnFailed = false
	dec, err := eng.ProcessContent(ctx, post("t3_abc", "u1"))
	require.NoError(err)
	assert.Equal(enforce.ActionSpam, dec.Action)
	assert.True(mock.Spammed["t3_abc"])
}

func TestSubmitChallengeTooFast(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng, _, clk, _ := testEngine()

	_, err := eng.RequestChallenge(ctx, "u1", "")
	require.NoError(err)
	clk.Advance(time.Second)
	_, err = eng.OpenChallenge(ctx, "u1")
	require.NoError(err)
	clk.Advance(2 * time.Second)
	ans := goodAnswers("u1")
	ans.AIUsage = record.AIUsageYes
	res, err := eng.SubmitChallenge(ctx, "u1", ans)
	require.NoError(err)
	assert.False(res.Passed)
	assert.Equal(2, len(res.Reasons))
	assert.Equal([]string{FlagTooFast}, res.Flags)
}

func TestSubmitChallengeAfterTimeout(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng, _, clk, _ := testEngine()

	_, err := eng.SubmitChallenge(ctx, "u1", goodAnswers("u1"))
	assert.ErrorIs(err, record.ErrValidation)

	_, err = eng.RequestChallenge(ctx, "u1", "")
	require.NoError(err)
	clk.Advance(25 * time.Hour)
	_, err = eng.SubmitChallenge(ctx, "u1", goodAnswers("u1"))
	assert.ErrorIs(err, record.ErrValidation)

	// the timeout discovered while scoring was persisted
	stored, err := eng.Records.Get(ctx, "u1")
	require.NoError(err)
	assert.Equal(record.StatusTimeout, stored.Status)
}

func TestOpenChallengeDone(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng, _, _, pp := testEngine()

	_, err := eng.Override(ctx, OverrideRequest{Actor: "mod1", Username: "u1", Target: record.StatusVerified})
	require.NoError(err)
	before, err := eng.Records.Get(ctx, "u1")
	require.NoError(err)

	view, err := eng.OpenChallenge(ctx, "u1")
	require.NoError(err)
	assert.True(view.Done)
	assert.Equal(record.StatusVerified, view.Status)
	assert.Empty(view.Token)
	assert.NotEmpty(view.Message)

	// no write for a settled record
	after, err := eng.Records.Get(ctx, "u1")
	require.NoError(err)
	assert.Equal(before.Version, after.Version)

	pp.P.AllowConfirmWithoutRequest = false
	_, err = eng.OpenChallenge(ctx, "u2")
	assert.ErrorIs(err, record.ErrValidation)
}

func TestSelfStartedChallenge(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng, mock, clk, pp := testEngine()
	pp.P.ActionOnPending = policy.ActionRemove
	pp.P.ActionOnTimeout = policy.ActionRemove
	pp.P.BanOnTimeout = true

	view, err := eng.OpenChallenge(ctx, "u7")
	require.NoError(err)
	assert.False(view.Done)
	assert.Equal(record.StatusUnverified, view.Status)
	assert.Equal("K7m", view.Token)

	clk.Advance(time.Minute)
	dec, err := eng.ProcessContent(ctx, post("t3_a", "u7"))
	require.NoError(err)
	assert.Equal(enforce.ActionAllow, dec.Action)
	assert.False(mock.Removed["t3_a"])

	// well past the pending timeout: an abandoned form is not enforced
	clk.Advance(25 * time.Hour)
	dec, err = eng.ProcessContent(ctx, post("t3_b", "u7"))
	require.NoError(err)
	assert.Equal(record.StatusUnverified, dec.Status)
	assert.Equal(enforce.ActionAllow, dec.Action)
	assert.False(dec.BanUser)
	assert.Empty(mock.Bans)
	assert.Equal(0, mock.CallCount("SendOrAppendMessage"))

	view, err = eng.OpenChallenge(ctx, "u7")
	require.NoError(err)
	clk.Advance(15 * time.Second)
	res, err := eng.SubmitChallenge(ctx, "u7", goodAnswers("u7"))
	require.NoError(err)
	assert.True(res.Passed)
	assert.Equal(record.StatusVerified, res.Record.Status)
}

func TestTimeoutStaleWindow(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng, mock, clk, pp := testEngine()
	pp.P.PendingTimeout = time.Hour
	pp.P.ActionOnPending = policy.ActionRemove
	pp.P.ActionOnTimeout = policy.ActionReport

	_, err := eng.RequestChallenge(ctx, "u1", "")
	require.NoError(err)

	clk.Advance(59 * time.Minute)
	dec, err := eng.ProcessContent(ctx, post("t3_a", "u1"))
	require.NoError(err)
	assert.Equal(enforce.ActionRemove, dec.Action)

	// past the deadline, but nothing has touched the record yet
	clk.Advance(2 * time.Minute)
	stored, err := eng.Records.Get(ctx, "u1")
	require.NoError(err)
	assert.Equal(record.StatusPending, stored.Status)

	dec, err = eng.ProcessContent(ctx, post("t3_b", "u1"))
	require.NoError(err)
	assert.Equal(record.StatusTimeout, dec.Status)
	assert.Equal(enforce.ActionReport, dec.Action)
	assert.Equal("Human verification timed out, please review", mock.Reported["t3_b"])

	stored, err = eng.Records.Get(ctx, "u1")
	require.NoError(err)
	assert.Equal(record.StatusTimeout, stored.Status)

	rec, err := eng.RefreshIfTimedOut(ctx, "u1")
	require.NoError(err)
	assert.Equal(record.StatusTimeout, rec.Status)
	rec, err = eng.RefreshIfTimedOut(ctx, "nobody")
	require.NoError(err)
	assert.Nil(rec)
}

func TestTimeoutBanTakesPrecedence(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng, mock, clk, pp := testEngine()
	pp.P.BanOnTimeout = true

	_, err := eng.RequestChallenge(ctx, "u1", "")
	require.NoError(err)
	clk.Advance(25 * time.Hour)

	dec, err := eng.ProcessContent(ctx, post("t3_a", "u1"))
	require.NoError(err)
	assert.True(dec.BanUser)
	require.Equal(1, len(mock.Bans))
	assert.Equal("t3_a", mock.Bans[0].ContextID)
	assert.False(mock.Removed["t3_a"])
	assert.Empty(mock.Reported)

	c, err := eng.Counters.GetCount(ctx, CounterBans, "u1", "total")
	require.NoError(err)
	assert.Equal(1, c)
}

func TestBanCircuitBreaker(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng, mock, clk, pp := testEngine()
	pp.P.BanOnFailed = true
	pp.P.BanQuotaPerDay = 1

	for _, u := range []string{"u1", "u2"} {
		_, err := eng.RequestChallenge(ctx, u, "")
		require.NoError(err)
	}
	clk.Advance(5 * time.Second)
	for _, u := range []string{"u1", "u2"} {
		_, err := eng.OpenChallenge(ctx, u)
		require.NoError(err)
	}
	clk.Advance(20 * time.Second)
	for _, u := range []string{"u1", "u2"} {
		ans := goodAnswers(u)
		ans.Bot = true
		res, err := eng.SubmitChallenge(ctx, u, ans)
		require.NoError(err)
		assert.False(res.Passed)
	}
	require.Equal(1, len(mock.Bans))
	assert.Equal("u1", mock.Bans[0].Username)

	// quota exhausted: content is still removed
	dec, err := eng.ProcessContent(ctx, post("t3_a", "u2"))
	require.NoError(err)
	assert.False(dec.BanUser)
	assert.Equal(enforce.ActionSpam, dec.Action)
	assert.True(mock.Spammed["t3_a"])
	assert.Equal(1, len(mock.Bans))
}

func TestPartialDirectiveFailure(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng, mock, _, _ := testEngine()

	_, err := eng.RequestChallenge(ctx, "u1", "")
	require.NoError(err)

	boom := errors.New("boom")
	mock.SetFailure("AddModNote", boom)
	dec, err := eng.ProcessContent(ctx, post("t3_a", "u1"))
	assert.ErrorIs(err, record.ErrExternal)
	assert.ErrorIs(err, boom)
	require.NotNil(dec)
	assert.Equal(enforce.ActionRemove, dec.Action)

	// the failed note doesn't stop the rest
	assert.True(mock.Removed["t3_a"])
	assert.Equal(2, len(mock.Threads["conv-1"]))

	// notification failure on a request still persists the record
	mock.SetFailure("AddModNote", nil)
	mock.SetFailure("SendOrAppendMessage", boom)
	rec, err := eng.RequestChallenge(ctx, "u2", "")
	assert.ErrorIs(err, record.ErrExternal)
	require.NotNil(rec)
	assert.Empty(rec.NotificationConversationID)
	stored, err := eng.Records.Get(ctx, "u2")
	require.NoError(err)
	assert.Equal(record.StatusPending, stored.Status)
}

func TestOverridePermissions(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng, _, _, _ := testEngine()

	_, err := eng.RequestChallenge(ctx, "u1", "")
	require.NoError(err)
	before, err := eng.Records.Get(ctx, "u1")
	require.NoError(err)

	for _, actor := range []string{"mod2", "rando"} {
		_, err = eng.Override(ctx, OverrideRequest{Actor: actor, Username: "u1", Target: record.StatusVerified})
		assert.ErrorIs(err, record.ErrPermission)
	}
	after, err := eng.Records.Get(ctx, "u1")
	require.NoError(err)
	assert.Equal(before, after)

	res, err := eng.Override(ctx, OverrideRequest{Actor: "mod3", Username: "u1", Target: record.StatusVerified})
	require.NoError(err)
	assert.Equal(record.StatusPending, res.Previous)
	assert.Equal(record.StatusVerified, res.Record.Status)
	assert.True(res.Record.ModOverridden)
	assert.Equal("mod3", res.Record.OverriddenBy)

	flags, err := eng.Flags.Get(ctx, "u1")
	require.NoError(err)
	assert.Equal([]string{FlagModOverride}, flags)

	_, err = eng.Override(ctx, OverrideRequest{Actor: "mod1", Username: "u1", Target: record.StatusPending})
	assert.ErrorIs(err, record.ErrValidation)
}

func TestOverrideBan(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng, mock, _, _ := testEngine()

	res, err := eng.Override(ctx, OverrideRequest{Actor: "mod1", Username: "mod2", Target: record.StatusFailed, Ban: true})
	require.NoError(err)
	assert.NotEmpty(res.BanRefused)
	assert.False(res.Banned)
	assert.Equal(record.StatusFailed, res.Record.Status)
	assert.Empty(mock.Bans)

	res, err = eng.Override(ctx, OverrideRequest{Actor: "mod1", Username: "u1", Target: record.StatusFailed, Ban: true})
	require.NoError(err)
	assert.Empty(res.BanRefused)
	assert.True(res.Banned)
	require.Equal(1, len(mock.Bans))
	assert.Equal("u1", mock.Bans[0].Username)

	_, err = eng.Override(ctx, OverrideRequest{Actor: "mod1", Username: "u1", Target: record.StatusVerified, Ban: true})
	assert.ErrorIs(err, record.ErrValidation)
}

func TestOverrideReset(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng, _, _, _ := testEngine()

	_, err := eng.RequestChallenge(ctx, "u1", "")
	require.NoError(err)
	_, err = eng.Override(ctx, OverrideRequest{Actor: "mod1", Username: "u1", Target: record.StatusFailed})
	require.NoError(err)

	res, err := eng.Override(ctx, OverrideRequest{Actor: "mod1", Username: "u1", Target: record.StatusUnverified})
	require.NoError(err)
	assert.Nil(res.Record)
	assert.Equal(record.StatusFailed, res.Previous)

	_, err = eng.Records.Get(ctx, "u1")
	assert.ErrorIs(err, record.ErrNotFound)
	flags, err := eng.Flags.Get(ctx, "u1")
	require.NoError(err)
	assert.Empty(flags)
}

// Wraps a record store, and sneaks in a write from "another process" just before the first write
// made through it.
type racingStore struct {
	*recordstore.MemRecordStore
	once      sync.Once
	interfere func()
}

func (s *racingStore) Put(ctx context.Context, rec *record.Record) error {
	s.once.Do(s.interfere)
	return s.MemRecordStore.Put(ctx, rec)
}

func (s *racingStore) PutIfVersion(ctx context.Context, rec *record.Record, expected int64) error {
	s.once.Do(s.interfere)
	return s.MemRecordStore.PutIfVersion(ctx, rec, expected)
}

func racingFixture(t *testing.T, optimistic bool) *Engine {
	ctx := context.Background()
	eng, _, _, _ := testEngine()
	mem := recordstore.NewMemRecordStore()
	require.NoError(t, mem.Put(ctx, &record.Record{Username: "u1", Status: record.StatusPending, ChallengeToken: "K7m"}))
	eng.Records = &racingStore{
		MemRecordStore: mem,
		interfere: func() {
			other, err := mem.Get(ctx, "u1")
			require.NoError(t, err)
			other.NotificationConversationID = "conv-other"
			require.NoError(t, mem.Put(ctx, other))
		},
	}
	eng.OptimisticWrites = optimistic
	return eng
}

func TestLastWriteWins(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := racingFixture(t, false)

	_, err := eng.Override(ctx, OverrideRequest{Username: "u1", Target: record.StatusVerified})
	require.NoError(err)
	stored, err := eng.Records.Get(ctx, "u1")
	require.NoError(err)
	assert.Equal(record.StatusVerified, stored.Status)
	// the interleaved write was silently lost
	assert.Empty(stored.NotificationConversationID)
}

func TestOptimisticWrites(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := racingFixture(t, true)

	_, err := eng.Override(ctx, OverrideRequest{Username: "u1", Target: record.StatusVerified})
	require.NoError(err)
	stored, err := eng.Records.Get(ctx, "u1")
	require.NoError(err)
	assert.Equal(record.StatusVerified, stored.Status)
	assert.Equal("conv-other", stored.NotificationConversationID)
	assert.Equal(int64(3), stored.Version)
}

func TestStatus(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng, mock, clk, _ := testEngine()

	view, err := eng.Status(ctx, "u9")
	require.NoError(err)
	assert.Equal(record.StatusUnverified, view.Record.Status)
	assert.Equal("u/u9 Not Verified", view.Description.Title)
	assert.False(view.Banned)
	assert.NotEmpty(view.OverrideOptions)

	// inspection creates the record
	names, err := eng.ListUsernames(ctx)
	require.NoError(err)
	assert.Equal([]string{"u9"}, names)

	_, err = eng.RequestChallenge(ctx, "u1", "")
	require.NoError(err)
	clk.Advance(25 * time.Hour)
	mock.Banned["u1"] = true
	view, err = eng.Status(ctx, "u1")
	require.NoError(err)
	assert.Equal(record.StatusTimeout, view.Record.Status)
	assert.True(view.Banned)
	assert.Equal("u/u1 Verification Timed Out", view.Description.Title)
}

func TestClearAll(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng, _, _, _ := testEngine()

	for _, u := range []string{"u1", "u2", "u3"} {
		_, err := eng.RequestChallenge(ctx, u, "")
		require.NoError(err)
	}
	_, err := eng.ClearAll(ctx, "mod3")
	assert.ErrorIs(err, record.ErrPermission)

	count, err := eng.ClearAll(ctx, "mod1")
	require.NoError(err)
	assert.Equal(3, count)
	names, err := eng.ListUsernames(ctx)
	require.NoError(err)
	assert.Empty(names)
}

func TestAuthorBreakdown(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng, mock, _, _ := testEngine()
	mock.Profiles["u1"].Links = []string{"https://www.OnlyFans.com/u1", "example.com/about", "fans.onlyfans.com/x", "not a url"}

	_, err := eng.RequestChallenge(ctx, "u1", "")
	require.NoError(err)
	for _, id := range []string{"t3_a", "t3_b", "t3_c"} {
		_, err := eng.ProcessContent(ctx, post(id, "u1"))
		require.NoError(err)
	}

	_, err = eng.AuthorBreakdown(ctx, "u1", "rando")
	assert.ErrorIs(err, record.ErrPermission)

	bd, err := eng.AuthorBreakdown(ctx, "u1", "mod2")
	require.NoError(err)
	assert.Equal(record.StatusPending, bd.Status)
	assert.Equal(3, bd.Removals)
	assert.Equal(0, bd.Bans)
	assert.True(bd.ProfileFound)
	assert.False(bd.NewAccount)
	assert.False(bd.NegativeKarma)
	assert.Equal(120, bd.CommentKarma)
	assert.Equal([]string{"onlyfans.com", "fans.onlyfans.com"}, bd.FlaggedDomains)
	assert.True(bd.RepeatOffender)
	assert.Contains(bd.Summary, "⚠️ Repeat offender")

	// profile comes from the cache the second time around
	_, err = eng.AuthorBreakdown(ctx, "u1", "")
	require.NoError(err)
	assert.Equal(1, mock.CallCount("GetUserProfile"))

	bd, err = eng.AuthorBreakdown(ctx, "ghost", "")
	require.NoError(err)
	assert.False(bd.ProfileFound)
	assert.False(bd.RepeatOffender)
	assert.Contains(bd.Summary, "Profile: not found")
}

func TestMainDomain(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("onlyfans", mainDomain("onlyfans.com"))
	assert.Equal("onlyfans", mainDomain("fans.onlyfans.com"))
	assert.Equal("localhost", mainDomain("localhost"))
	assert.Equal("example.com", linkHost("https://www.Example.com/path"))
	assert.Equal("example.com", linkHost("example.com/about"))
	assert.Equal("", linkHost(""))
}

type recordingNotifier struct {
	lk     sync.Mutex
	events []AuditEvent
}

func (n *recordingNotifier) SendEvent(ctx context.Context, evt AuditEvent) error {
	n.lk.Lock()
	defer n.lk.Unlock()
	n.events = append(n.events, evt)
	return nil
}

func TestAuditNotifications(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng, _, _, _ := testEngine()
	n := &recordingNotifier{}
	eng.Notifier = n

	_, err := eng.Override(ctx, OverrideRequest{Actor: "mod1", Username: "u1", Target: record.StatusFailed, Ban: true})
	require.NoError(err)

	require.Equal(2, len(n.events))
	assert.Equal(EventBan, n.events[0].Kind)
	assert.Equal(EventOverride, n.events[1].Kind)
	assert.Equal("mod1", n.events[1].Actor)
}

func TestDecideEnforcement(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng, mock, _, _ := testEngine()

	_, err := eng.RequestChallenge(ctx, "u1", "")
	require.NoError(err)
	dec, err := eng.DecideEnforcement(ctx, "u1", enforce.KindComment)
	require.NoError(err)
	assert.Equal(enforce.ActionRemove, dec.Action)
	assert.Empty(mock.Removed)

	_, err = eng.DecideEnforcement(ctx, "u1", enforce.ContentKind("video"))
	assert.ErrorIs(err, record.ErrValidation)
}
