package cron

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 55 * time.Minute

// Lock keeps two maintenance workers from running the same cycle.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	CacheKey(parts ...string) string
}

// Holder is the record stored under the lock key.
type Holder struct {
	Token      string    `json:"token"`
	Host       string    `json:"host"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// RedisLock is a SET NX lock. Release deletes the key only while it still carries this
// process's token; a lock that expired and was taken over stays with the new holder.
type RedisLock struct {
	store lockStore
	key   string
	ttl   time.Duration
	host  string
	now   func() time.Time
	token string
}

func NewRedisLock(store lockStore, name string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case store == nil:
		return nil, errors.New("redis client required for lock")
	case name == "":
		return nil, errors.New("lock name is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return &RedisLock{
		store: store,
		key:   store.CacheKey("lock", name),
		ttl:   ttl,
		host:  fmt.Sprintf("%s/%d", host, os.Getpid()),
		now:   time.Now,
	}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	claim := Holder{Token: uuid.NewString(), Host: l.host, AcquiredAt: l.now().UTC()}
	raw, err := json.Marshal(claim)
	if err != nil {
		return false, err
	}
	ok, err := l.store.SetNX(ctx, l.key, string(raw), l.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", l.key, err)
	}
	if ok {
		l.token = claim.Token
	}
	return ok, nil
}

// Current returns the worker holding the lock, or nil when it is free.
func (l *RedisLock) Current(ctx context.Context) (*Holder, error) {
	raw, err := l.store.Get(ctx, l.key)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", l.key, err)
	}
	var h Holder
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		// unreadable value: still held, holder unknown
		return &Holder{Token: raw}, nil
	}
	return &h, nil
}

func (l *RedisLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""

	current, err := l.Current(ctx)
	if err != nil {
		return err
	}
	if current == nil || current.Token != token {
		return nil
	}
	if err := l.store.Del(ctx, l.key); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
