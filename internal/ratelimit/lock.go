package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// defaultSubmitTTL caps how long an abandoned submission can hold its
// slot when the handler never releases (process crash, lost client).
const defaultSubmitTTL = 30 * time.Second

// Release only deletes the key when the stored holder matches, so a
// slot that expired and was re-acquired by another request is never
// released by the first one.
const submitReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// SubmitLock grants at most one in-flight ticket submission per key.
// The duplicate-fingerprint check runs before the invoice row exists,
// so two concurrent uploads of the same ticket would both pass it; the
// lock serializes them instead.
type SubmitLock struct {
	client  *redis.Client
	release *redis.Script
	ttl     time.Duration
}

func NewSubmitLock(client *redis.Client, ttl time.Duration) *SubmitLock {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultSubmitTTL
	}
	return &SubmitLock{
		client:  client,
		release: redis.NewScript(submitReleaseScript),
		ttl:     ttl,
	}
}

// Acquire claims the submission slot for key. The returned holder is
// the value Release must present; ok is false when another submission
// already holds the slot.
func (sl *SubmitLock) Acquire(ctx context.Context, key string) (holder string, ok bool, err error) {
	if sl == nil || sl.client == nil {
		return "", false, errors.New("submit lock not configured")
	}
	if key == "" {
		return "", false, errors.New("submit lock key is empty")
	}

	holder = uuid.NewString()
	ok, err = sl.client.SetNX(ctx, key, holder, sl.ttl).Result()
	if err != nil {
		return "", false, err
	}
	return holder, ok, nil
}

// Release frees the slot if it is still held by holder. Releasing an
// expired or foreign slot is a no-op.
func (sl *SubmitLock) Release(ctx context.Context, key, holder string) error {
	if sl == nil || sl.client == nil || key == "" || holder == "" {
		return nil
	}
	return sl.release.Run(ctx, sl.client, []string{key}, holder).Err()
}
