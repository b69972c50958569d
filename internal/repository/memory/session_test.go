package memory

import (
	"context"
	"testing"
)

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	_ = store.SetAccount(ctx, " 0xabc ")
	_ = store.SetSelfDID(ctx, "did:key:zMe")

	if account, _ := store.GetAccount(ctx); account != "0xabc" {
		t.Fatalf("unexpected account: %q", account)
	}
	if did, _ := store.GetSelfDID(ctx); did != "did:key:zMe" {
		t.Fatalf("unexpected did: %q", did)
	}

	_ = store.Clear(ctx)
	if account, _ := store.GetAccount(ctx); account != "" {
		t.Fatalf("expected cleared account, got %q", account)
	}
	if did, _ := store.GetSelfDID(ctx); did != "" {
		t.Fatalf("expected cleared did, got %q", did)
	}
}
