package memorystore

import (
	"context"
	"sync"
	"time"
)

type kvItem struct {
	value   []byte
	expires time.Time
}

// KV is an in-memory session store with TTL support.
// It is only safe for single-process deployments.
type KV struct {
	mu    sync.Mutex
	items map[string]kvItem
	now   func() time.Time
}

func NewKV() *KV {
	return &KV{items: make(map[string]kvItem), now: time.Now}
}

func (k *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	_ = ctx
	k.mu.Lock()
	defer k.mu.Unlock()
	it, ok := k.items[key]
	if !ok {
		return nil, false, nil
	}
	if k.expired(it) {
		delete(k.items, key)
		return nil, false, nil
	}
	return append([]byte(nil), it.value...), true, nil
}

func (k *KV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_ = ctx
	k.mu.Lock()
	defer k.mu.Unlock()
	var exp time.Time
	if ttl > 0 {
		exp = k.now().Add(ttl)
	}
	k.items[key] = kvItem{value: append([]byte(nil), value...), expires: exp}
	return nil
}

func (k *KV) Del(ctx context.Context, key string) error {
	_ = ctx
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.items, key)
	return nil
}

// PurgeExpired drops every expired entry and reports how many were removed.
func (k *KV) PurgeExpired(ctx context.Context) (int, error) {
	_ = ctx
	k.mu.Lock()
	defer k.mu.Unlock()
	n := 0
	for key, it := range k.items {
		if k.expired(it) {
			delete(k.items, key)
			n++
		}
	}
	return n, nil
}

func (k *KV) expired(it kvItem) bool {
	return !it.expires.IsZero() && k.now().After(it.expires)
}
