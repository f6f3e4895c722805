package session

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/etnz/delta/api"
	"github.com/etnz/delta/api/apitest"
	"github.com/shopspring/decimal"
)

// newGate returns a LOCKED session of username on srv and its gate.
func newGate(t *testing.T, srv *apitest.Server, username string) (*Session, *Gate) {
	t.Helper()
	s := New(nil)
	if err := s.Acquire(srv.Token(username)); err != nil {
		t.Fatalf("Acquire() unexpected error = %v", err)
	}
	c, err := api.New(srv.BaseURL(), api.WithTokens(s))
	if err != nil {
		t.Fatalf("api.New() unexpected error = %v", err)
	}
	return s, NewGate(s, c, WithResetDelay(10*time.Millisecond))
}

func TestGate_SetPin(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.AddUser("alice", "pw", "", decimal.Zero)
	s, g := newGate(t, srv, "alice")
	ctx := context.Background()

	mode, err := g.Challenge(ctx)
	if err != nil {
		t.Fatalf("Challenge() unexpected error = %v", err)
	}
	if mode != ModeSet {
		t.Errorf("Challenge() got %v, want set", mode)
	}
	if err := g.Submit(ctx, "4321"); err != nil {
		t.Fatalf("Submit() unexpected error = %v", err)
	}
	if got := s.State(); got != Unlocked {
		t.Errorf("Submit() state got %v, want UNLOCKED", got)
	}

	// the next session must verify the new pin.
	s2, g2 := newGate(t, srv, "alice")
	if mode, _ := g2.Challenge(ctx); mode != ModeVerify {
		t.Errorf("Challenge() after set got %v, want verify", mode)
	}
	if err := g2.Submit(ctx, "4321"); err != nil || s2.State() != Unlocked {
		t.Errorf("Submit() got %v, state %v, want UNLOCKED", err, s2.State())
	}
}

func TestGate_WrongPin(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.AddUser("alice", "pw", "1234", decimal.Zero)
	s, g := newGate(t, srv, "alice")
	ctx := context.Background()

	if err := g.Submit(ctx, "0000"); !errors.Is(err, ErrPinRejected) {
		t.Errorf("Submit(wrong) got %v, want ErrPinRejected", err)
	}
	if got := s.State(); got != Locked {
		t.Errorf("Submit(wrong) state got %v, want LOCKED", got)
	}

	// a failed call is not distinguished from a wrong pin.
	srv.SetHook(http.MethodPost, "/pin/verify", apitest.Hook{Status: http.StatusBadGateway})
	if err := g.Submit(ctx, "1234"); !errors.Is(err, ErrPinRejected) {
		t.Errorf("Submit() on failure got %v, want ErrPinRejected", err)
	}
	srv.ClearHook(http.MethodPost, "/pin/verify")

	if err := g.Submit(ctx, "1234"); err != nil {
		t.Errorf("Submit(right) unexpected error = %v", err)
	}
	if got := s.State(); got != Unlocked {
		t.Errorf("Submit(right) state got %v, want UNLOCKED", got)
	}
	if err := g.Submit(ctx, "1234"); !errors.Is(err, ErrNotLocked) {
		t.Errorf("Submit() when unlocked got %v, want ErrNotLocked", err)
	}
}

func TestGate_MalformedPin(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.AddUser("alice", "pw", "1234", decimal.Zero)
	_, g := newGate(t, srv, "alice")

	for _, pin := range []string{"", "123", "12345", "12a4", " 123"} {
		if err := g.Submit(context.Background(), pin); !errors.Is(err, ErrMalformedPin) {
			t.Errorf("Submit(%q) got %v, want ErrMalformedPin", pin, err)
		}
	}
	if got := srv.Calls(http.MethodPost, "/pin/verify") + srv.Calls(http.MethodGet, "/pin/status/alice"); got != 0 {
		t.Errorf("malformed pins sent %d requests, want 0", got)
	}
}

func TestGate_StatusFailureResetsSession(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.AddUser("alice", "pw", "1234", decimal.Zero)
	srv.SetHook(http.MethodGet, "/pin/status/alice", apitest.Hook{Status: http.StatusInternalServerError})
	s, g := newGate(t, srv, "alice")

	if _, err := g.Challenge(context.Background()); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("Challenge() got %v, want ErrSessionInvalid", err)
	}
	if got := s.State(); got != Locked {
		t.Errorf("Challenge() state got %v before the delay, want LOCKED", got)
	}
	g.Wait()
	if got := s.State(); got != Anonymous {
		t.Errorf("Challenge() state got %v after the delay, want ANONYMOUS", got)
	}
}

func TestGate_Anonymous(t *testing.T) {
	srv := apitest.NewServer(t)
	c, _ := api.New(srv.BaseURL())
	g := NewGate(New(nil), c)
	if _, err := g.Challenge(context.Background()); !errors.Is(err, ErrLoginRequired) {
		t.Errorf("Challenge() got %v, want ErrLoginRequired", err)
	}
}

func TestLogin(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.AddUser("alice", "pw", "1234", decimal.Zero)
	c, _ := api.New(srv.BaseURL())
	s := New(nil)
	ctx := context.Background()

	if err := Login(ctx, c, s, "alice", "bad"); err == nil {
		t.Errorf("Login(bad) want an error")
	}
	if got := s.State(); got != Anonymous {
		t.Errorf("Login(bad) state got %v, want ANONYMOUS", got)
	}
	if err := Login(ctx, c, s, "alice", "pw"); err != nil {
		t.Fatalf("Login() unexpected error = %v", err)
	}
	if got := s.State(); got != Locked {
		t.Errorf("Login() state got %v, want LOCKED", got)
	}
	if err := Logout(ctx, s, nil); err != nil || s.State() != Anonymous {
		t.Errorf("Logout() got %v, state %v, want ANONYMOUS", err, s.State())
	}
}
