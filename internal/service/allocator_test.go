package service

import (
	"context"
	"testing"
	"time"

	"canteen/internal/repository"
)

func TestBatchPolicyKey(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	// 20:00 UTC 9 марта это уже 10 марта по IST
	at := time.Date(2025, 3, 9, 20, 0, 0, 0, time.UTC)
	if got := NewBatchPolicy(BatchDaily, loc).Key(at); got != "20250310" {
		t.Fatalf("daily key %s", got)
	}
	if got := NewBatchPolicy(BatchManual, loc).Key(at); got != "manual" {
		t.Fatalf("manual key %s", got)
	}
}

func TestSequenceAllocator(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryBackend(repository.DefaultRetryPolicy)
	a := NewSequenceAllocator(store.Counters)

	var got []int64
	for i := 0; i < 3; i++ {
		err := store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
			n, err := a.AllocateNext(ctx, "20250310")
			got = append(got, n)
			return err
		})
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
	}
	if got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("unexpected sequence %v", got)
	}
	// другая партия начинается с 1
	_ = store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		n, err := a.AllocateNext(ctx, "20250311")
		if n != 1 {
			t.Errorf("new batch starts at %d", n)
		}
		return err
	})
}

func TestSequenceAllocatorRollback(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryBackend(repository.DefaultRetryPolicy)
	a := NewSequenceAllocator(store.Counters)

	_ = store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := a.AllocateNext(ctx, "b"); err != nil {
			return err
		}
		return context.Canceled
	})
	if v, _ := store.Counters.Get(ctx, "b"); v != 0 {
		t.Fatalf("aborted allocation must not persist, counter %d", v)
	}
}

func TestDegradedAllocatorEstimate(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	batch := e.orders.CurrentBatch()

	n, err := e.orders.degraded.Estimate(ctx, batch)
	if err != nil || n != 1 {
		t.Fatalf("empty batch estimate %d %v", n, err)
	}
	e.mustQueue(t, "a")
	done := e.mustQueue(t, "b")
	e.mustAdvance(t, done.ID, "PREPARING", "READY", "COMPLETED")
	e.mustCreate(t, "c")

	n, _ = e.orders.degraded.Estimate(ctx, batch)
	if n != 2 {
		t.Fatalf("estimate %d, want 2", n)
	}
}
