package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrLockLost is returned by release when the lock expired or changed owner.
var ErrLockLost = errors.New("lock expired or taken over")

// luaReleaseIfOwner deletes the key only while it still holds our token.
const luaReleaseIfOwner = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`

// Locker hands out short-lived mutually exclusive leases.
type Locker struct {
	client   Commander
	newToken func() string
}

// NewLocker creates a Locker over client.
func NewLocker(client Commander) *Locker {
	return &Locker{client: client, newToken: uuid.NewString}
}

// TryLock attempts to take the named lock for ttl without waiting.
// acquired is false when another holder owns it.
func (l *Locker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error) {
	key := LockKey(name)
	token := l.newToken()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		n, err := l.client.Eval(ctx, luaReleaseIfOwner, []string{key}, token).Int()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrLockLost
		}
		return nil
	}
	return release, true, nil
}
