package datasetstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkpmalut/lautdata/internal/app/system/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func newTestCache(src *fakeSource, ttl time.Duration) (*Cache, *metrics.Registry) {
	reg := metrics.New()
	f := NewFetcher(src, 10, zap.NewNop(), reg)
	return NewCache(f, ttl, time.Second, zap.NewNop(), reg), reg
}

func TestCache_HitAfterMiss(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	src := newFakeSource()
	src.data["d"] = makeRecords(3)
	c, reg := newTestCache(src, time.Minute)

	for i := 0; i < 3; i++ {
		rows, err := c.Get(context.Background(), "d", nil)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if len(rows) != 3 {
			t.Fatalf("rows: got %d, want 3", len(rows))
		}
	}
	if n := src.fetches.Load(); n != 1 {
		t.Errorf("source reads: got %d, want 1", n)
	}
	if n := testutil.ToFloat64(reg.CacheEvents.WithLabelValues("d", metrics.CacheHit)); n != 2 {
		t.Errorf("hits: got %v, want 2", n)
	}
	if !c.Cached("d") {
		t.Error("Cached: got false, want true")
	}
}

func TestCache_ConcurrentMissesShareOneRead(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	src := newFakeSource()
	src.data["d"] = makeRecords(3)
	src.block = make(chan struct{})
	c, _ := newTestCache(src, time.Minute)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background(), "d", nil)
			errs <- err
		}()
	}

	// Let every caller join the in-flight read before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(src.block)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Get: %v", err)
		}
	}
	if n := src.fetches.Load(); n != 1 {
		t.Errorf("source reads: got %d, want 1", n)
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	src := newFakeSource()
	src.data["d"] = makeRecords(1)
	c, _ := newTestCache(src, time.Minute)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if _, err := c.Get(context.Background(), "d", nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if c.Cached("d") {
		t.Error("Cached after TTL: got true, want false")
	}
	if _, err := c.Get(context.Background(), "d", nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if n := src.fetches.Load(); n != 2 {
		t.Errorf("source reads: got %d, want 2", n)
	}
}

func TestCache_Invalidate(t *testing.T) {
	src := newFakeSource()
	src.data["d"] = makeRecords(2)
	c, _ := newTestCache(src, time.Minute)

	if _, err := c.Get(context.Background(), "d", nil); err != nil {
		t.Fatalf("Get: %v", err)
	}

	src.mu.Lock()
	src.data["d"] = makeRecords(5)
	src.mu.Unlock()
	c.Invalidate("d")

	rows, err := c.Get(context.Background(), "d", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(rows) != 5 {
		t.Errorf("rows after invalidate: got %d, want 5", len(rows))
	}

	c.InvalidateAll()
	if c.Cached("d") {
		t.Error("Cached after InvalidateAll: got true, want false")
	}
}

func TestCache_InvalidateDuringReadDiscardsResult(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	src := newFakeSource()
	src.data["d"] = makeRecords(2)
	src.block = make(chan struct{})
	c, _ := newTestCache(src, time.Minute)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Get(context.Background(), "d", nil)
	}()

	time.Sleep(20 * time.Millisecond)
	c.Invalidate("d")
	close(src.block)
	<-done

	if c.Cached("d") {
		t.Error("stale read was cached after Invalidate")
	}
}

func TestCache_CallerCancelDoesNotPoisonRead(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	src := newFakeSource()
	src.data["d"] = makeRecords(2)
	src.block = make(chan struct{})
	c, _ := newTestCache(src, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx, "d", nil)
		first <- err
	}()

	second := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), "d", nil)
		second <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-first; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller: got %v, want context.Canceled", err)
	}

	close(src.block)
	if err := <-second; err != nil {
		t.Errorf("second caller: got %v, want nil", err)
	}
	if !c.Cached("d") {
		t.Error("read shared with a cancelled caller was not cached")
	}
}

func TestCache_ErrorNotCached(t *testing.T) {
	src := newFakeSource()
	src.failAt["d"] = 0
	c, _ := newTestCache(src, time.Minute)

	if _, err := c.Get(context.Background(), "d", nil); err == nil {
		t.Fatal("Get: expected error")
	}
	if c.Cached("d") {
		t.Error("failed read was cached")
	}
}

func TestCache_LoadMany(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	src := newFakeSource()
	src.data["a"] = makeRecords(3)
	src.data["b"] = makeRecords(12)
	c, _ := newTestCache(src, time.Minute)

	got, err := c.LoadMany(context.Background(), []Request{{Dataset: "a"}, {Dataset: "b"}})
	if err != nil {
		t.Fatalf("LoadMany: %v", err)
	}
	if len(got["a"]) != 3 || len(got["b"]) != 12 {
		t.Errorf("rows: got a=%d b=%d, want 3/12", len(got["a"]), len(got["b"]))
	}
}
