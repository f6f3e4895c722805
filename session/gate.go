package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Mode is the sub-flow of the PIN challenge.
type Mode int

const (
	// ModeSet is the creation of a PIN, for users that have none.
	ModeSet Mode = iota
	// ModeVerify checks the PIN of the user.
	ModeVerify
)

func (m Mode) String() string {
	switch m {
	case ModeSet:
		return "set"
	case ModeVerify:
		return "verify"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// DefaultResetDelay is the time given to read the error before a session is
// released after a failed challenge.
const DefaultResetDelay = time.Second

var (
	ErrMalformedPin   = errors.New("PIN must be exactly 4 digits")
	ErrPinRejected    = errors.New("Invalid PIN. Please try again.")
	ErrSessionInvalid = errors.New("Session expired or invalid. Please login again.")
	ErrNotLocked      = errors.New("session is not waiting for a PIN")
)

var pinPattern = regexp.MustCompile(`^[0-9]{4}$`)

// PinAPI is the part of the platform the Gate talks to.
type PinAPI interface {
	PinStatus(ctx context.Context, username string) (bool, error)
	SetPin(ctx context.Context, username, pin string) error
	VerifyPin(ctx context.Context, username, pin string) error
}

// Gate unlocks a LOCKED session.
type Gate struct {
	session    *Session
	api        PinAPI
	resetDelay time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	mode    Mode
	known   bool   // mode has been challenged.
	token   string // token the mode was challenged for.
	pending sync.WaitGroup
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithResetDelay sets the delay before a session is released after a failed challenge.
func WithResetDelay(d time.Duration) GateOption { return func(g *Gate) { g.resetDelay = d } }

// WithGateLogger sets the logger.
func WithGateLogger(l *zap.Logger) GateOption { return func(g *Gate) { g.logger = l } }

// NewGate returns a Gate for session.
func NewGate(s *Session, api PinAPI, opts ...GateOption) *Gate {
	g := &Gate{session: s, api: api, resetDelay: DefaultResetDelay, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Challenge asks the platform whether the user has a PIN.
//
// If the status cannot be obtained the session is considered invalid: it is
// released after the reset delay and ErrSessionInvalid is returned.
func (g *Gate) Challenge(ctx context.Context) (Mode, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.challenge(ctx)
}

func (g *Gate) challenge(ctx context.Context) (Mode, error) {
	token, id, err := g.locked()
	if err != nil {
		return 0, err
	}
	if g.known && g.token == token {
		return g.mode, nil
	}

	has, err := g.api.PinStatus(ctx, id.Handle)
	if err != nil {
		g.logger.Warn("pin status check failed", zap.String("user", id.Handle), zap.Error(err))
		g.known = false
		g.scheduleReset(token)
		return 0, ErrSessionInvalid
	}
	g.mode, g.known, g.token = ModeVerify, true, token
	if !has {
		g.mode = ModeSet
	}
	return g.mode, nil
}

// Submit sends the PIN. On success the session is UNLOCKED.
//
// A PIN that is not 4 digits is rejected without calling the platform. A wrong
// PIN and a failed call are both reported as ErrPinRejected and the session
// stays LOCKED. The PIN is never retained.
func (g *Gate) Submit(ctx context.Context, pin string) error {
	if !pinPattern.MatchString(pin) {
		return ErrMalformedPin
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	mode, err := g.challenge(ctx)
	if err != nil {
		return err
	}
	token, id, err := g.locked()
	if err != nil {
		return err
	}

	switch mode {
	case ModeSet:
		err = g.api.SetPin(ctx, id.Handle, pin)
	case ModeVerify:
		err = g.api.VerifyPin(ctx, id.Handle, pin)
	}
	if err != nil {
		g.logger.Info("pin rejected", zap.String("user", id.Handle), zap.Stringer("mode", mode), zap.Error(err))
		return ErrPinRejected
	}
	if !g.session.markVerified(token) {
		// the session changed while the pin was being checked.
		return ErrLoginRequired
	}
	g.known = false
	g.logger.Info("session unlocked", zap.String("user", id.Handle))
	return nil
}

// Wait blocks until pending session resets have been applied.
func (g *Gate) Wait() { g.pending.Wait() }

// locked returns the session token and identity if it is LOCKED.
func (g *Gate) locked() (string, Identity, error) {
	switch g.session.State() {
	case Anonymous:
		return "", Identity{}, ErrLoginRequired
	case Unlocked:
		return "", Identity{}, ErrNotLocked
	}
	token, _ := g.session.Token()
	id, _ := g.session.Identity()
	return token, id, nil
}

func (g *Gate) scheduleReset(token string) {
	g.pending.Add(1)
	time.AfterFunc(g.resetDelay, func() {
		defer g.pending.Done()
		if g.session.releaseToken(token) {
			g.logger.Info("invalid session reset")
		}
	})
}
