package cache

import (
	"context"
	"time"
)

// Tier identifies which cache level satisfied a read.
type Tier string

const (
	TierFast     Tier = "fast"
	TierStandard Tier = "standard"
	TierNone     Tier = "none"
)

// Tiered is a two-level cache: a short-TTL fast tier (in-memory) in
// front of a longer-TTL standard tier (Redis, or a second memory cache
// when Redis is disabled). A standard-tier hit refills the fast tier so
// the next read skips it, avoiding duplicate recomputation on cold
// fast-tier reads.
type Tiered struct {
	fast        Service
	standard    Service
	fastTTL     time.Duration
	standardTTL time.Duration
}

// NewTiered builds the two-tier cache. standard may equal fast-tier
// technology in degraded single-process deployments.
func NewTiered(fast, standard Service, fastTTL, standardTTL time.Duration) *Tiered {
	return &Tiered{
		fast:        fast,
		standard:    standard,
		fastTTL:     fastTTL,
		standardTTL: standardTTL,
	}
}

// Set writes through both tiers with their respective TTLs. The
// standard tier is authoritative; a fast-tier write failure is ignored.
func (t *Tiered) Set(ctx context.Context, key string, value interface{}) error {
	if err := t.standard.Set(ctx, key, value, t.standardTTL); err != nil {
		return err
	}
	_ = t.fast.Set(ctx, key, value, t.fastTTL)
	return nil
}

// Get reads the fast tier first, then the standard tier, refilling the
// fast tier on a standard hit. Returns which tier answered.
func (t *Tiered) Get(ctx context.Context, key string, dest interface{}) (Tier, error) {
	if err := t.fast.Get(ctx, key, dest); err == nil {
		return TierFast, nil
	}
	if err := t.standard.Get(ctx, key, dest); err != nil {
		return TierNone, err
	}
	_ = t.fast.Set(ctx, key, dest, t.fastTTL)
	return TierStandard, nil
}

// Invalidate drops the key from both tiers.
func (t *Tiered) Invalidate(ctx context.Context, keys ...string) error {
	_ = t.fast.Delete(ctx, keys...)
	return t.standard.Delete(ctx, keys...)
}

// TryLock takes a short-lived lock on the standard tier, which is the
// shared one across processes.
func (t *Tiered) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return t.standard.TryLock(ctx, key, ttl)
}

// Unlock releases a lock taken with TryLock.
func (t *Tiered) Unlock(ctx context.Context, key string) error {
	return t.standard.Unlock(ctx, key)
}

// Close closes both tiers.
func (t *Tiered) Close() error {
	_ = t.fast.Close()
	return t.standard.Close()
}
