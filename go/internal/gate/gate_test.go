package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/chylnx/hub/go/internal/models"
)

type fakeGrants struct {
	granted map[uuid.UUID]bool
	err     error
}

func (f *fakeGrants) HasActiveGrant(ctx context.Context, identityID uuid.UUID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.granted[identityID], nil
}

type fakeLock struct {
	locked bool
	err    error
}

func (f *fakeLock) ChatLocked(ctx context.Context) (bool, error) {
	return f.locked, f.err
}

func TestCheckPaymentFlow(t *testing.T) {
	alice := &models.Identity{ID: uuid.New(), Username: "alice"}
	grants := &fakeGrants{granted: map[uuid.UUID]bool{}}
	lock := &fakeLock{}
	g := New(grants, lock)

	// no payment yet
	state, err := g.Check(context.Background(), alice)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if state != StatePaymentPending {
		t.Fatalf("expected payment_pending, got %v", state)
	}

	// payment settles, next check passes
	grants.granted[alice.ID] = true
	state, err = g.Check(context.Background(), alice)
	if err != nil {
		t.Fatalf("check after payment: %v", err)
	}
	if state != StateGranted {
		t.Fatalf("expected granted, got %v", state)
	}

	// grant expires, next check denies again
	grants.granted[alice.ID] = false
	state, err = g.Check(context.Background(), alice)
	if err != nil {
		t.Fatalf("check after expiry: %v", err)
	}
	if state != StatePaymentPending {
		t.Fatalf("expected payment_pending after expiry, got %v", state)
	}
}

func TestCheckLockedChat(t *testing.T) {
	alice := &models.Identity{ID: uuid.New(), Username: "alice"}
	grants := &fakeGrants{granted: map[uuid.UUID]bool{alice.ID: true}}
	g := New(grants, &fakeLock{locked: true})

	state, err := g.Check(context.Background(), alice)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if state != StateLocked {
		t.Fatalf("expected locked, got %v", state)
	}
}

func TestCheckAdminBypassesPaymentAndLock(t *testing.T) {
	admin := &models.Identity{ID: uuid.New(), Username: "root", IsAdmin: true}
	grants := &fakeGrants{granted: map[uuid.UUID]bool{}}
	g := New(grants, &fakeLock{locked: true})

	state, err := g.Check(context.Background(), admin)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if state != StateGranted {
		t.Fatalf("expected granted for admin, got %v", state)
	}
}

func TestCheckDeniesOnDegradedStore(t *testing.T) {
	alice := &models.Identity{ID: uuid.New(), Username: "alice"}
	g := New(&fakeGrants{err: errors.New("store down")}, &fakeLock{})

	state, err := g.Check(context.Background(), alice)
	if err == nil {
		t.Fatal("expected error from degraded store")
	}
	if state != StateUnverified {
		t.Fatalf("expected unverified on degraded store, got %v", state)
	}
}

func TestRequireAdmin(t *testing.T) {
	g := New(&fakeGrants{}, &fakeLock{})

	if err := g.RequireAdmin(&models.Identity{Username: "alice"}); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
	if err := g.RequireAdmin(nil); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin for nil identity, got %v", err)
	}
	if err := g.RequireAdmin(&models.Identity{Username: "root", IsAdmin: true}); err != nil {
		t.Fatalf("expected admin to pass, got %v", err)
	}
}
