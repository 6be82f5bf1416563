package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/cuberace/cuberace/pkg/log"
)

const (
	maxConnectAttempts = 10
	connectBackoffStep = 100 * time.Millisecond
	maxConnectBackoff  = 3 * time.Second

	lockTTL         = 5 * time.Second
	lockAttempts    = 3
	lockBackoffStep = 100 * time.Millisecond
)

// releaseScript deletes a lock key only when it still holds the caller's
// token, so a lock that expired and was re-taken by another holder is
// never released out from under them.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisStoreOptions are the options for creating a RedisStore.
type RedisStoreOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore implements Store on a Redis server.
type RedisStore struct {
	opts RedisStoreOptions

	mu     sync.Mutex
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore. No connection is made until Connect.
func NewRedisStore(opts RedisStoreOptions) *RedisStore {
	return &RedisStore{opts: opts}
}

// Connect dials the server, retrying up to 10 times with a linear backoff
// of 100ms per attempt capped at 3s. It is idempotent; a second call on a
// connected store is a no-op. When the retry budget is exhausted it
// returns ErrConnectionExhausted.
func (s *RedisStore) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return nil
	}

	// Retrying is handled here with a linear backoff; the client's own
	// per-command retries are disabled so the policy is not compounded.
	client := redis.NewClient(&redis.Options{
		Addr:       s.opts.Addr,
		Password:   s.opts.Password,
		DB:         s.opts.DB,
		MaxRetries: -1,
	})

	var lastErr error
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		if err := client.Ping(ctx).Err(); err == nil {
			s.client = client
			return nil
		} else {
			lastErr = err
		}
		backoff := connectBackoffStep * time.Duration(attempt)
		if backoff > maxConnectBackoff {
			backoff = maxConnectBackoff
		}
		log.Warn("redis connect attempt %d failed: %v, retrying in %s", attempt, lastErr, backoff)
		select {
		case <-ctx.Done():
			_ = client.Close()
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	_ = client.Close()
	return fmt.Errorf("%w: %v", ErrConnectionExhausted, lastErr)
}

// Close releases the connection. Subsequent data operations return
// ErrNotConnected.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

func (s *RedisStore) conn() (*redis.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil, ErrNotConnected
	}
	return s.client, nil
}

// translate maps driver sentinels onto the store's error taxonomy.
func translate(err error) error {
	if err == redis.Nil {
		return ErrNil
	}
	return err
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	c, err := s.conn()
	if err != nil {
		return "", err
	}
	v, err := c.Get(ctx, key).Result()
	return v, translate(err)
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c, err := s.conn()
	if err != nil {
		return err
	}
	return c.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	c, err := s.conn()
	if err != nil {
		return false, err
	}
	return c.SetNX(ctx, key, value, ttl).Result()
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	c, err := s.conn()
	if err != nil {
		return err
	}
	return c.Del(ctx, keys...).Err()
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	c, err := s.conn()
	if err != nil {
		return false, err
	}
	n, err := c.Exists(ctx, key).Result()
	return n > 0, err
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	c, err := s.conn()
	if err != nil {
		return err
	}
	return c.Expire(ctx, key, ttl).Err()
}

func (s *RedisStore) HGet(ctx context.Context, key, field string) (string, error) {
	c, err := s.conn()
	if err != nil {
		return "", err
	}
	v, err := c.HGet(ctx, key, field).Result()
	return v, translate(err)
}

func (s *RedisStore) HSet(ctx context.Context, key, field, value string) error {
	c, err := s.conn()
	if err != nil {
		return err
	}
	return c.HSet(ctx, key, field, value).Err()
}

func (s *RedisStore) HSetNX(ctx context.Context, key, field, value string) (bool, error) {
	c, err := s.conn()
	if err != nil {
		return false, err
	}
	return c.HSetNX(ctx, key, field, value).Result()
}

func (s *RedisStore) HDel(ctx context.Context, key string, fields ...string) error {
	c, err := s.conn()
	if err != nil {
		return err
	}
	return c.HDel(ctx, key, fields...).Err()
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	c, err := s.conn()
	if err != nil {
		return nil, err
	}
	return c.HGetAll(ctx, key).Result()
}

func (s *RedisStore) HLen(ctx context.Context, key string) (int64, error) {
	c, err := s.conn()
	if err != nil {
		return 0, err
	}
	return c.HLen(ctx, key).Result()
}

func (s *RedisStore) LPush(ctx context.Context, key string, values ...string) error {
	c, err := s.conn()
	if err != nil {
		return err
	}
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return c.LPush(ctx, key, args...).Err()
}

func (s *RedisStore) RPop(ctx context.Context, key string) (string, error) {
	c, err := s.conn()
	if err != nil {
		return "", err
	}
	v, err := c.RPop(ctx, key).Result()
	return v, translate(err)
}

func (s *RedisStore) LRem(ctx context.Context, key, value string) (int64, error) {
	c, err := s.conn()
	if err != nil {
		return 0, err
	}
	return c.LRem(ctx, key, 0, value).Result()
}

func (s *RedisStore) LLen(ctx context.Context, key string) (int64, error) {
	c, err := s.conn()
	if err != nil {
		return 0, err
	}
	return c.LLen(ctx, key).Result()
}

func (s *RedisStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	c, err := s.conn()
	if err != nil {
		return nil, err
	}
	return c.LRange(ctx, key, start, stop).Result()
}

// WithLock acquires the named lock with a unique token (SET NX, 5s TTL),
// retrying up to 3 times with a linear backoff of 100ms per attempt, runs
// fn, and releases the lock only if it still holds the token. When the
// lock cannot be taken it returns ErrLockNotAcquired without running fn.
func (s *RedisStore) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	c, err := s.conn()
	if err != nil {
		return err
	}

	token := uuid.NewString()
	acquired := false
	for attempt := 1; attempt <= lockAttempts; attempt++ {
		ok, err := c.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return fmt.Errorf("failed to acquire lock %s: %v", key, err)
		}
		if ok {
			acquired = true
			break
		}
		if attempt == lockAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockBackoffStep * time.Duration(attempt)):
		}
	}
	if !acquired {
		return &ErrLockNotAcquired{Key: key}
	}

	defer func() {
		if err := releaseScript.Run(context.Background(), c, []string{key}, token).Err(); err != nil {
			log.Warn("failed to release lock %s: %v", key, err)
		}
	}()

	return fn(ctx)
}
