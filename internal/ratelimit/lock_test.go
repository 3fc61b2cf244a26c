package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSubmitLockRequiresClient(t *testing.T) {
	assert.Nil(t, NewSubmitLock(nil, time.Second))
}

func TestSubmitLockUnconfigured(t *testing.T) {
	var sl *SubmitLock

	_, _, err := sl.Acquire(context.Background(), "ticket:intake:lock:1")
	assert.Error(t, err)

	assert.NoError(t, sl.Release(context.Background(), "ticket:intake:lock:1", "holder"))
}

func TestNilLimiterAllowsSubmissions(t *testing.T) {
	var l *IntakeLimiter
	require.False(t, l.Enabled())

	userID := snowflake.ID(1)

	holder, ok, err := l.TryLockTicket(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, holder)

	assert.NoError(t, l.ReleaseTicket(context.Background(), userID, holder))

	allowed, err := l.AllowTicket(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, allowed)
}
