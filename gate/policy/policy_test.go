package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/humancheck/gatekeeper/gate/record"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAITolerance(t *testing.T) {
	assert := assert.New(t)

	assert.True(AIAll.Allows(record.AIUsageYes))
	assert.True(AISome.Allows(record.AIUsageSometimes))
	assert.False(AISome.Allows(record.AIUsageYes))
	assert.True(AITranslations.Allows(record.AIUsageTranslations))
	assert.False(AITranslations.Allows(record.AIUsageSometimes))
	assert.True(AINothing.Allows(record.AIUsageNo))
	assert.False(AINothing.Allows(record.AIUsageTranslations))
	// unrecognized declarations are treated as full usage
	assert.False(AISome.Allows(record.AIUsage("banana")))
}

func TestParseJSON(t *testing.T) {
	assert := assert.New(t)

	p, err := ParseJSON([]byte(`{
		"communityName": "gardening",
		"actionOnPendingVerification": "report",
		"banOnConfirmationTimeout": true,
		"pendingConfirmationTimeoutMinutes": 60,
		"minHumanTimeToConfirmHuman": 20,
		"aiUsageAllowed": "some"
	}`))
	require.NoError(t, err)
	assert.Equal("gardening", p.CommunityName)
	assert.Equal(ActionReport, p.ActionOnPending)
	assert.Equal(ActionRemove, p.ActionOnTimeout)
	assert.True(p.BanOnTimeout)
	assert.Equal(60*time.Minute, p.PendingTimeout)
	assert.Equal(3*time.Second, p.MinOpenLatency)
	assert.Equal(20*time.Second, p.MinCompletionLatency)
	assert.Equal(AISome, p.AIUsageAllowed)
	assert.True(p.SpamFailed)

	_, err = ParseJSON([]byte(`{"actionOnTimeoutVerification": "explode"}`))
	assert.ErrorIs(err, record.ErrValidation)

	_, err = ParseJSON([]byte(`{"pendingConfirmationTimeoutMinutes": -5}`))
	assert.ErrorIs(err, record.ErrValidation)
}

func TestFileProvider(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	p := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"spamFailedVerification": false}`), 0644))

	fp := FileProvider{Path: p}
	pol, err := fp.Policy(ctx)
	require.NoError(t, err)
	assert.False(pol.SpamFailed)

	// re-read on every call
	require.NoError(t, os.WriteFile(p, []byte(`{"spamFailedVerification": true}`), 0644))
	pol, err = fp.Policy(ctx)
	require.NoError(t, err)
	assert.True(pol.SpamFailed)

	missing := FileProvider{Path: filepath.Join(t.TempDir(), "nope.json")}
	_, err = missing.Policy(ctx)
	assert.Error(err)
}

func TestStaticProviderCopies(t *testing.T) {
	assert := assert.New(t)
	sp := NewStaticProvider(Default())
	p1, err := sp.Policy(context.Background())
	assert.NoError(err)
	p1.BanOnFailed = true
	p2, err := sp.Policy(context.Background())
	assert.NoError(err)
	assert.False(p2.BanOnFailed)
}
