package redis

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	lockPrefix = "lock:account:"
	retryEvery = 25 * time.Millisecond
)

// unlockScript deletes the key only while it still carries our token, so an
// expired holder cannot release a lock someone else has since taken.
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker is a per-key mutex shared by every instance pointed at the same
// Redis. Locks expire after ttl if the holder dies.
type Locker struct {
	rdb *goredis.Client
	ttl time.Duration
}

func NewLocker(c *Client, ttl time.Duration) *Locker {
	var rdb *goredis.Client
	if c != nil {
		rdb = c.rdb
	}
	return &Locker{rdb: rdb, ttl: ttl}
}

// Lock blocks until key is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	if l.rdb == nil {
		return nil, errors.New("redis locker not configured")
	}
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	k := lockPrefix + key

	ticker := time.NewTicker(retryEvery)
	defer ticker.Stop()
	for {
		ok, err := l.rdb.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %q: %w", key, err)
		}
		if ok {
			return func() { l.unlock(k, token) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *Locker) unlock(key, token string) {
	// The request context may already be cancelled by the time we release.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = l.rdb.Eval(ctx, unlockScript, []string{key}, token).Err()
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
