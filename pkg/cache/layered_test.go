package cache

import (
	"context"
	"testing"
	"time"
)

type payload struct {
	Symbol string   `json:"symbol"`
	Score  *float64 `json:"score"`
}

func newTestTiered() *Tiered {
	fast := NewMemoryCache(WithMemoryMaxSize(16))
	standard := NewMemoryCache(WithMemoryMaxSize(16))
	return NewTiered(fast, standard, time.Minute, 15*time.Minute)
}

func TestTieredRoundTrip(t *testing.T) {
	ctx := context.Background()
	tc := newTestTiered()
	defer tc.Close()

	if err := tc.Set(ctx, "records:SPY", payload{Symbol: "SPY"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got payload
	tier, err := tc.Get(ctx, "records:SPY", &got)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if tier != TierFast {
		t.Fatalf("tier = %s, want fast", tier)
	}
	if got.Symbol != "SPY" {
		t.Fatalf("got %+v", got)
	}
}

func TestTieredRefillsFastTier(t *testing.T) {
	ctx := context.Background()
	fast := NewMemoryCache(WithMemoryMaxSize(16))
	standard := NewMemoryCache(WithMemoryMaxSize(16))
	tc := NewTiered(fast, standard, time.Minute, 15*time.Minute)
	defer tc.Close()

	if err := tc.Set(ctx, "k", payload{Symbol: "QQQ"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	// simulate fast-tier expiry
	if err := fast.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var got payload
	tier, err := tc.Get(ctx, "k", &got)
	if err != nil || tier != TierStandard {
		t.Fatalf("tier = %s, err = %v, want standard hit", tier, err)
	}

	// second read must be served from the refilled fast tier
	tier, err = tc.Get(ctx, "k", &got)
	if err != nil || tier != TierFast {
		t.Fatalf("tier = %s, err = %v, want fast hit after refill", tier, err)
	}
}

func TestTieredInvalidate(t *testing.T) {
	ctx := context.Background()
	tc := newTestTiered()
	defer tc.Close()

	_ = tc.Set(ctx, "k", payload{Symbol: "IWM"})
	if err := tc.Invalidate(ctx, "k"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	var got payload
	if tier, err := tc.Get(ctx, "k", &got); err != ErrCacheMiss || tier != TierNone {
		t.Fatalf("tier = %s, err = %v, want miss", tier, err)
	}
}

func TestTieredPreservesNull(t *testing.T) {
	ctx := context.Background()
	tc := newTestTiered()
	defer tc.Close()

	// a nil score must round-trip as nil, never as zero
	_ = tc.Set(ctx, "k", payload{Symbol: "DIA", Score: nil})
	var got payload
	got.Score = new(float64)
	if _, err := tc.Get(ctx, "k", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Score != nil {
		t.Fatalf("score = %v, want nil", *got.Score)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(4), WithMemoryCleanup(time.Hour))
	defer mc.Close()

	_ = mc.Set(ctx, "k", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	var got string
	if err := mc.Get(ctx, "k", &got); err != ErrCacheMiss {
		t.Fatalf("expected miss, got %v", err)
	}
}

func TestMemoryCacheLock(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	ok, err := mc.TryLock(ctx, "lock", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first lock: ok=%v err=%v", ok, err)
	}
	ok, _ = mc.TryLock(ctx, "lock", time.Minute)
	if ok {
		t.Fatalf("second lock must fail")
	}
	if err := mc.Unlock(ctx, "lock"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	ok, _ = mc.TryLock(ctx, "lock", time.Minute)
	if !ok {
		t.Fatalf("lock after unlock must succeed")
	}
}
