package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/etnz/delta/api"
)

// Authenticator exchanges credentials for a token.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (api.LoginResponse, error)
}

// Login authenticates against the platform and acquires the returned token.
// The session is LOCKED on success.
func Login(ctx context.Context, auth Authenticator, s *Session, username, password string) error {
	resp, err := auth.Login(ctx, username, password)
	if err != nil {
		s.Release()
		return fmt.Errorf("login failed: %w", err)
	}
	return s.Acquire(resp.Token)
}

// Logout releases the session and forgets it in store, if not nil.
func Logout(ctx context.Context, s *Session, store Store) error {
	s.Release()
	if store == nil {
		return nil
	}
	return store.Clear(ctx)
}

// Restore acquires the token saved in store, if any. A saved token that
// cannot be decoded is removed from the store.
func Restore(ctx context.Context, s *Session, store Store) error {
	rec, ok, err := store.Load(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := s.Acquire(rec.Token); err != nil {
		return errors.Join(err, store.Clear(ctx))
	}
	return nil
}

// Save writes the current token in store.
func Save(ctx context.Context, s *Session, store Store) error {
	token, ok := s.Token()
	if !ok {
		return store.Clear(ctx)
	}
	id, _ := s.Identity()
	return store.Save(ctx, Record{Token: token, Username: id.Handle})
}
