// internal/state/lock_test.go
package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/user/commentflow/internal/types"
)

func TestLockManager_AcquireAndRelease(t *testing.T) {
	locks := NewLockManager(t.TempDir())
	ctx := context.Background()

	handle, err := locks.Acquire(ctx, "media:1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if err := handle.Release(); err != nil {
		t.Fatal(err)
	}

	// Released lock is immediately reacquirable.
	handle, err = locks.Acquire(ctx, "media:1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	handle.Release()
}

func TestLockManager_Contention(t *testing.T) {
	locks := NewLockManager(t.TempDir())
	ctx := context.Background()

	handle, err := locks.Acquire(ctx, "media:1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer handle.Release()

	_, err = locks.Acquire(ctx, "media:1", time.Minute)
	if !errors.Is(err, types.ErrLockBusy) {
		t.Errorf("expected ErrLockBusy, got %v", err)
	}
}

func TestLockManager_DifferentKeysIndependent(t *testing.T) {
	locks := NewLockManager(t.TempDir())
	ctx := context.Background()

	h1, err := locks.Acquire(ctx, "media:1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer h1.Release()

	h2, err := locks.Acquire(ctx, "media:2", time.Minute)
	if err != nil {
		t.Fatalf("expected independent key to be acquirable, got %v", err)
	}
	h2.Release()
}

func TestLockManager_ExpiredLeaseClaimable(t *testing.T) {
	locks := NewLockManager(t.TempDir())
	ctx := context.Background()

	if _, err := locks.Acquire(ctx, "media:1", 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)

	handle, err := locks.Acquire(ctx, "media:1", time.Minute)
	if err != nil {
		t.Fatalf("expected expired lease to be claimable, got %v", err)
	}
	handle.Release()
}

func TestLockManager_RenewExtendsLease(t *testing.T) {
	locks := NewLockManager(t.TempDir())
	ctx := context.Background()

	handle, err := locks.Acquire(ctx, "media:1", 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if err := handle.Renew(time.Minute); err != nil {
		t.Fatal(err)
	}
	time.Sleep(60 * time.Millisecond)

	// Original lease window passed, but the renewal still holds it.
	if _, err := locks.Acquire(ctx, "media:1", time.Minute); !errors.Is(err, types.ErrLockBusy) {
		t.Errorf("expected ErrLockBusy after renew, got %v", err)
	}
	handle.Release()
}

func TestLockManager_RenewAfterTakeoverFails(t *testing.T) {
	locks := NewLockManager(t.TempDir())
	ctx := context.Background()

	stale, err := locks.Acquire(ctx, "media:1", 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)

	fresh, err := locks.Acquire(ctx, "media:1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer fresh.Release()

	if err := stale.Renew(time.Minute); err == nil {
		t.Error("expected renew to fail after takeover")
	}
	// Stale release must not free the new holder's lease.
	if err := stale.Release(); err != nil {
		t.Fatal(err)
	}
	if _, err := locks.Acquire(ctx, "media:1", time.Minute); !errors.Is(err, types.ErrLockBusy) {
		t.Errorf("expected new holder's lease to survive stale release, got %v", err)
	}
}
