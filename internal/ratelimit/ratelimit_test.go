package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lalith-99/teamchat/internal/apperr"
)

func newTestLimiter(t *testing.T, rules map[Action]Rule) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLimiter(client, rules, zap.NewNop()), mr
}

func TestLimitWithinWindow(t *testing.T) {
	l, _ := newTestLimiter(t, map[Action]Rule{ActionCreateInvite: {Limit: 2, Window: time.Hour}})
	clock := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }
	ctx := context.Background()

	require.NoError(t, l.Limit(ctx, ActionCreateInvite, "u1"))
	require.NoError(t, l.Limit(ctx, ActionCreateInvite, "u1"))

	err := l.Limit(ctx, ActionCreateInvite, "u1")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeRateLimited, apperr.CodeOf(err))
	assert.Contains(t, apperr.MessageOf(err), "45m0s")

	// separate key, separate quota
	assert.NoError(t, l.Limit(ctx, ActionCreateInvite, "u2"))

	// next window starts fresh
	clock = clock.Add(45 * time.Minute)
	assert.NoError(t, l.Limit(ctx, ActionCreateInvite, "u1"))
}

func TestCountersExpireWithWindow(t *testing.T) {
	l, mr := newTestLimiter(t, map[Action]Rule{ActionSendMessage: {Limit: 30, Window: time.Minute}})
	clock := time.Date(2026, 3, 1, 10, 0, 20, 0, time.UTC)
	l.now = func() time.Time { return clock }

	require.NoError(t, l.Limit(context.Background(), ActionSendMessage, "u1"))
	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, "ratelimit:sendMessage:u1:"+"1772359200", keys[0])
	assert.Positive(t, mr.TTL(keys[0]))
}

func TestUnknownActionIsUnlimited(t *testing.T) {
	l, _ := newTestLimiter(t, map[Action]Rule{})
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Limit(context.Background(), ActionSendMessage, "u1"))
	}
}

func TestFailsOpenWhenRedisIsDown(t *testing.T) {
	l, mr := newTestLimiter(t, DefaultRules())
	mr.Close()
	assert.NoError(t, l.Limit(context.Background(), ActionSendMessage, "u1"))
}

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()
	assert.Equal(t, Rule{Limit: 30, Window: time.Minute}, rules[ActionSendMessage])
	assert.Equal(t, Rule{Limit: 5, Window: time.Hour}, rules[ActionCreateWorkspace])
	assert.Len(t, rules, 7)
}
