package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenDenylist guarda jti revocados hasta que el token expira por sí solo.
type TokenDenylist interface {
	Add(ctx context.Context, jti string, ttl time.Duration) error
	Contains(ctx context.Context, jti string) (bool, error)
}

type memoryTokenDenylist struct {
	mu        sync.Mutex
	items     map[string]time.Time
	now       func() time.Time
	lastSweep time.Time
}

const denylistSweepInterval = time.Minute

func NewMemoryTokenDenylist() TokenDenylist {
	return &memoryTokenDenylist{
		items: make(map[string]time.Time),
		now:   time.Now,
	}
}

// setClock alinea la expiración de las entradas con el reloj del JWTService.
func (d *memoryTokenDenylist) setClock(now func() time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = now
}

func (d *memoryTokenDenylist) Add(_ context.Context, jti string, ttl time.Duration) error {
	jti = strings.TrimSpace(jti)
	if jti == "" || ttl <= 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now().UTC()
	d.sweepLocked(now)
	d.items[jti] = now.Add(ttl)
	return nil
}

func (d *memoryTokenDenylist) Contains(_ context.Context, jti string) (bool, error) {
	jti = strings.TrimSpace(jti)
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now().UTC()
	d.sweepLocked(now)
	exp, ok := d.items[jti]
	if !ok {
		return false, nil
	}
	if now.After(exp) {
		delete(d.items, jti)
		return false, nil
	}
	return true, nil
}

// sweepLocked descarta los jti vencidos; un access token revocado no vuelve a consultarse.
func (d *memoryTokenDenylist) sweepLocked(now time.Time) {
	if now.Sub(d.lastSweep) <= denylistSweepInterval {
		return
	}
	for jti, exp := range d.items {
		if now.After(exp) {
			delete(d.items, jti)
		}
	}
	d.lastSweep = now
}

func (d *memoryTokenDenylist) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

type redisKV interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisTokenDenylist struct {
	client redisKV
	prefix string
}

func NewRedisTokenDenylist(client *redis.Client) TokenDenylist {
	if client == nil {
		return nil
	}
	return &redisTokenDenylist{
		client: client,
		prefix: "auth:deny:",
	}
}

func (d *redisTokenDenylist) Add(ctx context.Context, jti string, ttl time.Duration) error {
	jti = strings.TrimSpace(jti)
	if jti == "" || ttl <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return d.client.Set(ctx, d.prefix+jti, "1", ttl).Err()
}

func (d *redisTokenDenylist) Contains(ctx context.Context, jti string) (bool, error) {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	n, err := d.client.Exists(ctx, d.prefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
