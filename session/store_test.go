package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := store.Load(ctx); err != nil || ok {
		t.Fatalf("Load() on empty store got %v, %v, want false, nil", ok, err)
	}

	s := New(nil)
	s.Acquire(token(t, "alice"))
	tok, _ := s.Token()
	s.markVerified(tok)
	if err := Save(ctx, s, store); err != nil {
		t.Fatalf("Save() unexpected error = %v", err)
	}

	restored := New(nil)
	if err := Restore(ctx, restored, store); err != nil {
		t.Fatalf("Restore() unexpected error = %v", err)
	}
	if got := restored.State(); got != Locked {
		t.Errorf("Restore() state got %v, want LOCKED", got)
	}
	if id, _ := restored.Identity(); id.Handle != "alice" {
		t.Errorf("Restore() identity got %q, want alice", id.Handle)
	}

	// a malformed saved token is forgotten.
	if err := store.Save(ctx, Record{Token: "garbage", Username: "alice"}); err != nil {
		t.Fatalf("Save() unexpected error = %v", err)
	}
	if err := Restore(ctx, New(nil), store); err == nil {
		t.Errorf("Restore(garbage) want an error")
	}
	if _, ok, _ := store.Load(ctx); ok {
		t.Errorf("Restore(garbage) did not clear the store")
	}

	if err := Logout(ctx, restored, store); err != nil {
		t.Fatalf("Logout() unexpected error = %v", err)
	}
	if _, ok, _ := store.Load(ctx); ok {
		t.Errorf("Logout() did not clear the store")
	}
}

func TestFileStore(t *testing.T) {
	testStore(t, NewFileStore(filepath.Join(t.TempDir(), "session.json")))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	testStore(t, NewRedisStore(client, "", time.Hour))
}

func TestRedisStore_Expiration(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := NewRedisStore(client, "test:session", time.Minute)
	ctx := context.Background()

	if err := store.Save(ctx, Record{Token: token(t, "alice"), Username: "alice"}); err != nil {
		t.Fatalf("Save() unexpected error = %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, ok, err := store.Load(ctx); err != nil || ok {
		t.Errorf("Load() after expiration got %v, %v, want false, nil", ok, err)
	}
}
