package mocks

import (
	"context"
	"encoding/json"
	"sync"

	sharedCache "github.com/davicafu/querylab/internal/shared/infra/platform/cache"
)

// DummyCache guarda los valores como JSON, igual que RedisCache, sin caducidad real.
// Respeta la cancelación del contexto para que los tests detecten escrituras con un ctx muerto.
type DummyCache struct {
	mu    sync.RWMutex
	store map[string][]byte
	ttls  map[string]int
}

var _ sharedCache.Cache = (*DummyCache)(nil)

func NewDummyCache() *DummyCache {
	return &DummyCache{
		store: make(map[string][]byte),
		ttls:  make(map[string]int),
	}
}

func (c *DummyCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, ok := c.store[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *DummyCache) Set(ctx context.Context, key string, val interface{}, ttlSecs int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = data
	c.ttls[key] = ttlSecs
	return nil
}

func (c *DummyCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	delete(c.ttls, key)
	return nil
}

// TTL devuelve el TTL con el que se guardó key (0 si no está).
func (c *DummyCache) TTL(key string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ttls[key]
}
