package flagstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testFlagStore(t *testing.T, fs FlagStore) {
	assert := assert.New(t)
	ctx := context.Background()

	l, err := fs.Get(ctx, "test1")
	assert.NoError(err)
	assert.NotNil(l)
	assert.Empty(l)

	assert.NoError(fs.Add(ctx, "test1", []string{"too-fast", "honeypot"}))
	assert.NoError(fs.Add(ctx, "test1", []string{"too-fast", "ai-usage"}))
	l, err = fs.Get(ctx, "test1")
	assert.NoError(err)
	assert.Equal([]string{"ai-usage", "honeypot", "too-fast"}, l)

	assert.NoError(fs.Remove(ctx, "test1", []string{"too-fast", "ai-usage", "mod-override"}))
	l, err = fs.Get(ctx, "test1")
	assert.NoError(err)
	assert.Equal([]string{"honeypot"}, l)
	assert.NoError(fs.Remove(ctx, "test1", []string{"honeypot"}))
	assert.NoError(fs.Remove(ctx, "missing", []string{"honeypot"}))
}

func TestMemFlagStore(t *testing.T) {
	testFlagStore(t, NewMemFlagStore())
}

func TestRedisFlagStore(t *testing.T) {
	t.Skip("live test, need redis running locally")

	fs, err := NewRedisFlagStore("redis://localhost:6379/0")
	if err != nil {
		t.Fail()
	}
	testFlagStore(t, fs)
}
