package enforce

import (
	"strings"
	"testing"

	"github.com/humancheck/gatekeeper/gate/directive"
	"github.com/humancheck/gatekeeper/gate/policy"
	"github.com/humancheck/gatekeeper/gate/record"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	assert := assert.New(t)

	base := policy.Default()

	reportAll := policy.Default()
	reportAll.ActionOnPending = policy.ActionReport
	reportAll.ActionOnTimeout = policy.ActionReport

	lenient := policy.Default()
	lenient.ActionOnPending = policy.ActionNothing
	lenient.ActionOnTimeout = policy.ActionNothing
	lenient.SpamFailed = false

	banning := policy.Default()
	banning.BanOnFailed = true
	banning.BanOnTimeout = true

	fixtures := []struct {
		status record.Status
		pol    policy.Policy
		action Action
		ban    bool
	}{
		{status: record.StatusVerified, pol: base, action: ActionAllow},
		{status: record.StatusUnverified, pol: base, action: ActionAllow},
		{status: record.StatusPending, pol: base, action: ActionRemove},
		{status: record.StatusTimeout, pol: base, action: ActionRemove},
		{status: record.StatusFailed, pol: base, action: ActionSpam},
		{status: record.StatusPending, pol: reportAll, action: ActionReport},
		{status: record.StatusTimeout, pol: reportAll, action: ActionReport},
		{status: record.StatusPending, pol: lenient, action: ActionAllow},
		{status: record.StatusTimeout, pol: lenient, action: ActionAllow},
		{status: record.StatusFailed, pol: lenient, action: ActionRemove},
		{status: record.StatusVerified, pol: banning, action: ActionAllow},
		{status: record.StatusPending, pol: banning, action: ActionRemove},
		{status: record.StatusTimeout, pol: banning, action: ActionRemove, ban: true},
		{status: record.StatusFailed, pol: banning, action: ActionSpam, ban: true},
	}

	for _, fix := range fixtures {
		pol := fix.pol
		for _, kind := range []ContentKind{KindPost, KindComment} {
			dec := Decide(fix.status, &pol, kind)
			assert.Equal(fix.action, dec.Action, "status=%s", fix.status)
			assert.Equal(fix.ban, dec.BanUser, "status=%s", fix.status)
			assert.Equal(fix.status, dec.Status)
			if fix.ban {
				assert.NotEmpty(dec.BanReason)
				assert.NotEmpty(dec.BanMessage)
			}
		}
	}

	// missing policy never enforces
	assert.False(Decide(record.StatusFailed, nil, KindPost).Enforced())
}

func TestDecideReasons(t *testing.T) {
	assert := assert.New(t)

	pol := policy.Default()
	pol.ActionOnPending = policy.ActionReport
	assert.Equal("Human verification pending, please review", Decide(record.StatusPending, &pol, KindPost).Reason)
	assert.Equal("Human verification timed out", Decide(record.StatusTimeout, &pol, KindPost).Reason)
	assert.Equal("Human verification failed", Decide(record.StatusFailed, &pol, KindPost).Reason)

	pol.BanOnTimeout = true
	assert.Contains(Decide(record.StatusTimeout, &pol, KindPost).BanReason, "in time")
}

func TestDirectivesBanOnly(t *testing.T) {
	assert := assert.New(t)

	pol := policy.Default()
	pol.BanOnTimeout = true
	rec := &record.Record{Username: "u1", Status: record.StatusTimeout, NotificationConversationID: "conv-1"}
	content := Content{ID: "t3_abc", Kind: KindPost, Author: "u1"}

	dec := Decide(rec.Status, &pol, content.Kind)
	dirs := Directives(dec, rec, content, &pol)
	require.Equal(t, 1, len(dirs))
	assert.Equal(directive.KindBanUser, dirs[0].Kind)
	assert.Equal("u1", dirs[0].Username)
	assert.Equal("t3_abc", dirs[0].ContentID)
	assert.False(directive.Has(dirs, directive.KindRemoveContent))
	assert.False(directive.Has(dirs, directive.KindReportContent))
}

func TestDirectivesRemove(t *testing.T) {
	assert := assert.New(t)

	pol := policy.Default()
	pol.CommunityName = "r/example"
	content := Content{ID: "t1_xyz", Kind: KindComment, Author: "u1", Permalink: "https://example.com/c/xyz"}

	// first removal notice opens a new thread
	rec := &record.Record{Username: "u1", Status: record.StatusFailed}
	dirs := Directives(Decide(rec.Status, &pol, content.Kind), rec, content, &pol)
	require.Equal(t, 3, len(dirs))
	assert.Equal(directive.KindRemoveContent, dirs[0].Kind)
	assert.True(dirs[0].AsSpam)
	assert.Equal(directive.KindAuditNote, dirs[1].Kind)
	assert.Equal(directive.KindNotifyUser, dirs[2].Kind)
	assert.Equal("", dirs[2].ConversationID)
	assert.True(dirs[2].Archive)
	assert.Equal("Notification: Comment Removed Due to Failed Human Verification", dirs[2].Subject)
	assert.Contains(dirs[2].Body, "[comment](https://example.com/c/xyz)")
	assert.Contains(dirs[2].Body, "r/example")

	// later ones reuse it
	rec.NotificationConversationID = "conv-7"
	dirs = Directives(Decide(rec.Status, &pol, content.Kind), rec, content, &pol)
	notes := directive.Filter(dirs, directive.KindNotifyUser)
	require.Equal(t, 1, len(notes))
	assert.Equal("conv-7", notes[0].ConversationID)

	// no notice when disabled
	pol.NotifyOnRemoval = false
	dirs = Directives(Decide(rec.Status, &pol, content.Kind), rec, content, &pol)
	assert.False(directive.Has(dirs, directive.KindNotifyUser))
	assert.True(directive.Has(dirs, directive.KindRemoveContent))

	// removals are always noted, even without mod-note tracking
	pol.TrackInModNotes = false
	dirs = Directives(Decide(rec.Status, &pol, content.Kind), rec, content, &pol)
	assert.True(directive.Has(dirs, directive.KindAuditNote))
}

func TestDirectivesReportAndAllow(t *testing.T) {
	assert := assert.New(t)

	pol := policy.Default()
	pol.ActionOnPending = policy.ActionReport
	content := Content{ID: "t3_abc", Kind: KindPost, Author: "u1"}

	dirs := Directives(Decide(record.StatusPending, &pol, content.Kind), nil, content, &pol)
	require.Equal(t, 1, len(dirs))
	assert.Equal(directive.KindReportContent, dirs[0].Kind)
	assert.Equal("Human verification pending, please review", dirs[0].Reason)

	dirs = Directives(Decide(record.StatusVerified, &pol, content.Kind), nil, content, &pol)
	assert.Empty(dirs)
}

func TestContentValidate(t *testing.T) {
	assert := assert.New(t)

	good := Content{ID: "t3_abc", Kind: KindPost, Author: "u1"}
	assert.NoError(good.Validate())

	for _, c := range []Content{
		{Kind: KindPost, Author: "u1"},
		{ID: "t3_abc", Kind: KindPost},
		{ID: "t3_abc", Kind: "story", Author: "u1"},
	} {
		assert.ErrorIs(c.Validate(), record.ErrValidation)
	}
}

func TestDescribe(t *testing.T) {
	assert := assert.New(t)

	pol := policy.Default()
	pol.BanOnFailed = true

	d := Describe("u1", record.StatusPending, &pol, false)
	assert.Equal("u/u1 Verification Pending", d.Title)
	assert.Equal("Send Reminder", d.ActionLabel)
	assert.Contains(d.Body, "Content is currently being removed")
	assert.Contains(d.Body, "send a reminder")
	assert.NotContains(d.Body, "If you proceed")

	d = Describe("u1", record.StatusUnverified, &pol, false)
	assert.Equal("Request Verification", d.ActionLabel)
	assert.NotContains(d.Body, "Current Enforcement")
	assert.Contains(d.Body, "If you proceed:")
	assert.Contains(d.Body, "- Until verification is complete")
	assert.Contains(d.Body, "User Will Be Banned:")

	d = Describe("u1", record.StatusFailed, &pol, true)
	assert.Contains(d.Body, "User is banned from posting")
	assert.Contains(d.Body, "User will stay banned")
	assert.False(strings.Contains(d.Body, "Content Will Be Auto-Removed"))
}

func TestOverrideOptions(t *testing.T) {
	assert := assert.New(t)

	pol := policy.Default()
	opts := OverrideOptions(record.StatusPending, &pol)
	require.Equal(t, 3, len(opts))
	assert.Equal(record.StatusVerified, opts[0].Target)
	assert.Equal("Mark as Verified (Stops Removing Content)", opts[0].Label)
	assert.Equal("Mark as Failed (Starts Removing New Content)", opts[2].Label)

	opts = OverrideOptions(record.StatusVerified, &pol)
	require.Equal(t, 2, len(opts))
	assert.Equal(record.StatusUnverified, opts[0].Target)

	pol.BanOnFailed = true
	opts = OverrideOptions(record.StatusTimeout, &pol)
	assert.Equal("Mark as Failed Again (Bans User)", opts[2].Label)
}
