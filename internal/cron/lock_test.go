package cron

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryLockStore struct {
	values map[string]string
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{values: map[string]string{}}
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryLockStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryLockStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memoryLockStore) CacheKey(parts ...string) string {
	return "pos:cache:" + strings.Join(parts, ":")
}

func TestRedisLockExclusive(t *testing.T) {
	store := newMemoryLockStore()
	first, err := NewRedisLock(store, "maintenance", 0)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	second, _ := NewRedisLock(store, "maintenance", 0)

	ok, err := first.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, ok=%v err=%v", ok, err)
	}
	ok, err = second.Acquire(context.Background())
	if err != nil || ok {
		t.Fatalf("expected second acquire to fail, ok=%v err=%v", ok, err)
	}

	if err := second.Release(context.Background()); err != nil {
		t.Fatalf("release by non-holder: %v", err)
	}
	if _, held := store.values["pos:cache:lock:maintenance"]; !held {
		t.Fatal("non-holder release must keep the lock")
	}

	if err := first.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if len(store.values) != 0 {
		t.Fatalf("expected lock removed, got %v", store.values)
	}
}

func TestRedisLockKeepsForeignHolder(t *testing.T) {
	store := newMemoryLockStore()
	lock, _ := NewRedisLock(store, "maintenance", time.Minute)
	if ok, _ := lock.Acquire(context.Background()); !ok {
		t.Fatal("expected acquire")
	}
	// expired and taken over by another worker
	store.values["pos:cache:lock:maintenance"] = "other-worker"

	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values["pos:cache:lock:maintenance"] != "other-worker" {
		t.Fatal("expected foreign holder to keep the lock")
	}
}

func TestRedisLockRecordsHolder(t *testing.T) {
	store := newMemoryLockStore()
	lock, _ := NewRedisLock(store, "maintenance", time.Minute)
	lock.host = "till-1/7"
	lock.now = func() time.Time { return time.Date(2025, 4, 16, 23, 0, 0, 0, time.UTC) }

	if h, err := lock.Current(context.Background()); err != nil || h != nil {
		t.Fatalf("expected free lock, got %+v / %v", h, err)
	}
	if ok, _ := lock.Acquire(context.Background()); !ok {
		t.Fatal("expected acquire")
	}
	h, err := lock.Current(context.Background())
	if err != nil || h == nil {
		t.Fatalf("current: %+v / %v", h, err)
	}
	if h.Host != "till-1/7" || h.Token == "" || !h.AcquiredAt.Equal(time.Date(2025, 4, 16, 23, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected holder %+v", h)
	}
}
