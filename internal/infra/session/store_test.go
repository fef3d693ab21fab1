package session_test

import (
	"testing"
	"time"

	"github.com/bankimport/fints-firefly-go/internal/infra/session"
	"github.com/bankimport/fints-firefly-go/internal/workflow"
)

func TestStore_SetAndGet(t *testing.T) {
	s := session.New(5 * time.Minute)

	s.Set("sid-1", &workflow.Snapshot{LedgerAccountID: "42"})
	snap, ok := s.Get("sid-1")
	if !ok {
		t.Fatal("expected session to exist")
	}
	if snap.LedgerAccountID != "42" {
		t.Errorf("expected ledger account 42, got %q", snap.LedgerAccountID)
	}
}

func TestStore_GetMiss(t *testing.T) {
	s := session.New(5 * time.Minute)

	_, ok := s.Get("nonexistent")
	if ok {
		t.Fatal("expected miss for unknown session")
	}
}

func TestStore_Expiration(t *testing.T) {
	s := session.New(50 * time.Millisecond)

	s.Set("sid-1", &workflow.Snapshot{})
	time.Sleep(100 * time.Millisecond)

	_, ok := s.Get("sid-1")
	if ok {
		t.Fatal("expected session to be expired")
	}
}

func TestStore_SetRefreshesTTL(t *testing.T) {
	s := session.New(80 * time.Millisecond)

	s.Set("sid-1", &workflow.Snapshot{NumProcessed: 1})
	time.Sleep(50 * time.Millisecond)
	s.Set("sid-1", &workflow.Snapshot{NumProcessed: 2})
	time.Sleep(50 * time.Millisecond)

	snap, ok := s.Get("sid-1")
	if !ok {
		t.Fatal("expected refreshed session to still exist")
	}
	if snap.NumProcessed != 2 {
		t.Errorf("expected latest snapshot, got %d", snap.NumProcessed)
	}
}

func TestStore_Delete(t *testing.T) {
	s := session.New(5 * time.Minute)

	s.Set("sid-1", &workflow.Snapshot{})
	s.Delete("sid-1")

	_, ok := s.Get("sid-1")
	if ok {
		t.Fatal("expected session to be deleted")
	}
}
