package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when a lock could not be obtained within the
// caller's wait budget.
var ErrNotAcquired = errors.New("lock not acquired")

// releaseScript deletes the lock key only when it still holds the caller's
// owner token, so an expired lease can never release a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript refreshes the lease TTL only while the caller still owns the
// key. A lease that already expired and was taken over is never extended.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisMutex provides named, lease-based mutual exclusion across processes.
// A heartbeat extends the lease while the lock is held, so long holders keep
// their exclusion; a crashed holder is recovered automatically once the
// lease expires.
type RedisMutex struct {
	client       *redis.Client
	ttl          time.Duration
	pollInterval time.Duration
}

// NewRedisMutex creates a mutex factory with the given lease TTL.
func NewRedisMutex(client *redis.Client, ttl time.Duration) *RedisMutex {
	return &RedisMutex{
		client:       client,
		ttl:          ttl,
		pollInterval: 50 * time.Millisecond,
	}
}

// TryAcquire attempts a single non-blocking acquisition of the named lock.
// On success it returns a release function that must be called exactly once.
// SetNX is atomic, so concurrent callers cannot both acquire.
func (m *RedisMutex) TryAcquire(ctx context.Context, name string) (func(), bool, error) {
	token, err := newToken()
	if err != nil {
		return nil, false, err
	}

	acquired, err := m.client.SetNX(ctx, name, token, m.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	if !acquired {
		return nil, false, nil
	}

	stopHeartbeat := m.startHeartbeat(name, token)
	return m.releaseFunc(name, token, stopHeartbeat), true, nil
}

// startHeartbeat extends the lease at a third of the TTL while the lock is
// held, so a holder that outlives the initial lease keeps its mutual
// exclusion. The returned stop function must run before the release.
func (m *RedisMutex) startHeartbeat(name, token string) func() {
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				_ = extendScript.Run(ctx, m.client,
					[]string{name}, token, m.ttl.Milliseconds()).Err()
				cancel()
			}
		}
	}()

	return func() {
		close(stop)
		<-done
	}
}

// Acquire blocks until the named lock is obtained or ctx is done. It polls
// rather than subscribing: the lock windows in this system are short and the
// contention is between a handful of processes.
func (m *RedisMutex) Acquire(ctx context.Context, name string) (func(), error) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		release, ok, err := m.TryAcquire(ctx, name)
		if err != nil {
			return nil, err
		}
		if ok {
			return release, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, name, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (m *RedisMutex) releaseFunc(name, token string, stopHeartbeat func()) func() {
	return func() {
		stopHeartbeat()
		// Release runs on a fresh context so an already-cancelled caller
		// context does not leave the lease to expire on its own.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, m.client, []string{name}, token).Err()
	}
}

func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate lock token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
