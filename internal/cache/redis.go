package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"dredd-service/internal/config"
)

var ErrLockNotAcquired = errors.New("lock not acquired")

func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Transient is a small TTL key-value wrapper over Redis, used for price
// quotes and session tokens.
type Transient struct {
	client *redis.Client
}

func NewTransient(client *redis.Client) *Transient {
	return &Transient{client: client}
}

func (t *Transient) Get(ctx context.Context, key string) (string, bool) {
	val, err := t.client.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (t *Transient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return t.client.Set(ctx, key, value, ttl).Err()
}

func (t *Transient) Delete(ctx context.Context, key string) error {
	return t.client.Del(ctx, key).Err()
}

// Lock is a SET NX EX mutex. The value identifies the holder so Unlock
// cannot release a lock that has expired and been re-acquired elsewhere.
type Lock struct {
	client     *redis.Client
	key        string
	value      string
	expiration time.Duration
}

// NewUserPaymentLock scopes the lock per user: two concurrent settlement
// attempts for the same user serialize, different users do not contend.
func NewUserPaymentLock(client *redis.Client, userID uint, holder string) *Lock {
	return &Lock{
		client:     client,
		key:        fmt.Sprintf("payment:lock:user:%d", userID),
		value:      holder,
		expiration: 30 * time.Second,
	}
}

func (l *Lock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

func (l *Lock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		ok, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockNotAcquired
}

func (l *Lock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	return l.client.Eval(ctx, script, []string{l.key}, l.value).Err()
}
