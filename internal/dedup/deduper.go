package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReceiptDeduper tracks receipt fingerprints that have already been
// submitted. Advisory bookkeeping alongside the store-backed duplicate
// check; a Redis outage never blocks settlement.
type ReceiptDeduper interface {
	Seen(ctx context.Context, fingerprint string) (bool, error)
}

type redisReceiptDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (d *redisReceiptDeduper) Seen(ctx context.Context, fingerprint string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+":"+fingerprint, "1", d.ttl).Result()
	if err != nil {
		return false, err
	}
	// false => key already exists => duplicate submission
	return !ok, nil
}

type memoryReceiptDeduper struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	ttl    time.Duration
	nextGC time.Time
}

func newMemoryReceiptDeduper(ttl time.Duration) *memoryReceiptDeduper {
	now := time.Now()
	return &memoryReceiptDeduper{
		seen:   make(map[string]time.Time),
		ttl:    ttl,
		nextGC: now.Add(ttl),
	}
}

func (d *memoryReceiptDeduper) Seen(_ context.Context, fingerprint string) (bool, error) {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if exp, ok := d.seen[fingerprint]; ok && exp.After(now) {
		return true, nil
	}

	d.seen[fingerprint] = now.Add(d.ttl)
	if now.After(d.nextGC) {
		for fp, exp := range d.seen {
			if exp.Before(now) {
				delete(d.seen, fp)
			}
		}
		d.nextGC = now.Add(d.ttl)
	}

	return false, nil
}

// NewReceiptDeduper builds a Redis-backed deduper and falls back to
// in-memory when Redis is unreachable or unconfigured.
func NewReceiptDeduper(addr, pass string, db int, ttl time.Duration) (ReceiptDeduper, error) {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	if addr == "" {
		return newMemoryReceiptDeduper(ttl), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return newMemoryReceiptDeduper(ttl), err
	}

	return &redisReceiptDeduper{
		client: client,
		prefix: "receipt:fp",
		ttl:    ttl,
	}, nil
}
