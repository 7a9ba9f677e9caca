package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// unlockScript deletes the key only while we still own it, so an expired
// lock taken over by another replica is never released from here.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a best-effort distributed lock. It keeps the reconcile sweep
// single-instance when several replicas run the scheduler. A nil Locker
// always grants the lock so single-instance deployments work without redis.
type Locker struct {
	client *redis.Client
}

// Lock is one held lock. Release is safe to call on a nil Lock.
type Lock struct {
	locker *Locker
	key    string
	token  string
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{client: client}
}

// TryLock attempts to take the named lock for ttl. It returns (lock, true)
// on success and (nil, false) when another holder has it.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (*Lock, bool, error) {
	if l == nil || l.client == nil {
		return nil, true, nil
	}
	if key == "" || ttl <= 0 {
		return nil, false, errors.New("lock requires a key and a positive ttl")
	}

	token := uuid.NewString()
	won, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !won {
		return nil, false, err
	}
	return &Lock{locker: l, key: key, token: token}, true, nil
}

func (lk *Lock) Release(ctx context.Context) error {
	if lk == nil || lk.locker == nil {
		return nil
	}
	return unlockScript.Run(ctx, lk.locker.client, []string{lk.key}, lk.token).Err()
}
