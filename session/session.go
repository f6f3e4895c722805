// Package session holds the authentication state of the client.
//
// A session goes through three states: ANONYMOUS (no token), LOCKED (a token
// was acquired but the PIN was not verified yet) and UNLOCKED. Acquiring a
// token always lands in LOCKED, only the Gate can unlock a session.
package session

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// State of a session.
type State int

const (
	Anonymous State = iota
	Locked
	Unlocked
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "ANONYMOUS"
	case Locked:
		return "LOCKED"
	case Unlocked:
		return "UNLOCKED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Route is where a protected view must send the user.
type Route int

const (
	// Stay means the session is unlocked.
	Stay Route = iota
	// LoginRoute means there is no session.
	LoginRoute
	// PinRoute means the PIN must be entered.
	PinRoute
)

func (r Route) String() string {
	switch r {
	case Stay:
		return "stay"
	case LoginRoute:
		return "login"
	case PinRoute:
		return "pin"
	}
	return fmt.Sprintf("Route(%d)", int(r))
}

var (
	ErrLoginRequired = errors.New("you must login first")
	ErrPinRequired   = errors.New("you must enter your PIN first")
)

// Session is the current authentication state.
//
// It is safe for concurrent use, and it is the api.TokenSource of the client.
type Session struct {
	mu       sync.RWMutex
	token    string
	identity Identity
	verified bool

	logger *zap.Logger
}

// New returns an anonymous session.
func New(logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{logger: logger}
}

// Acquire replaces the session token.
//
// A token that cannot be decoded leaves the session anonymous, as if there
// were no token at all, and a *MalformedTokenError is returned.
// The PIN verification is always reset.
func (s *Session) Acquire(token string) error {
	id, err := DecodeIdentity(token)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verified = false
	if err != nil {
		s.token, s.identity = "", Identity{}
		s.logger.Warn("session token rejected", zap.Error(err))
		return err
	}
	s.token, s.identity = token, id
	s.logger.Info("session acquired", zap.String("user", id.Handle))
	return nil
}

// Release logs out.
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.release()
}

func (s *Session) release() {
	if s.token != "" {
		s.logger.Info("session released", zap.String("user", s.identity.Handle))
	}
	s.token, s.identity, s.verified = "", Identity{}, false
}

// releaseToken logs out only if the session still holds token.
func (s *Session) releaseToken(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" || s.token != token {
		return false
	}
	s.release()
	return true
}

// markVerified unlocks the session if it still holds token.
func (s *Session) markVerified(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" || s.token != token {
		return false
	}
	s.verified = true
	return true
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.token == "":
		return Anonymous
	case !s.verified:
		return Locked
	}
	return Unlocked
}

// Identity returns the logged in user, if any.
func (s *Session) Identity() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity, s.token != ""
}

// Token implements api.TokenSource.
func (s *Session) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// Redirect returns where a protected view must send the user.
func (s *Session) Redirect() Route {
	switch s.State() {
	case Anonymous:
		return LoginRoute
	case Locked:
		return PinRoute
	}
	return Stay
}

// Require returns nil if protected views can be shown, ErrLoginRequired or
// ErrPinRequired otherwise.
func (s *Session) Require() error {
	switch s.Redirect() {
	case LoginRoute:
		return ErrLoginRequired
	case PinRoute:
		return ErrPinRequired
	}
	return nil
}
