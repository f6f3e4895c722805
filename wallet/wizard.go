// Package wallet drives the deposit and withdraw flow.
//
// The Wizard is a small state machine:
//
//	AMOUNT --submit(deposit)--> PAYMENT --confirm--> PROCESSING --> SUCCESS --(delay)--> AMOUNT
//	AMOUNT --submit(withdraw)-------------------->  PROCESSING
//	PROCESSING --failure--> PAYMENT (deposit) or AMOUNT (withdraw)
//
// Requests are validated locally before anything is sent. Once PROCESSING,
// an operation cannot be cancelled nor closed: it always reaches an outcome.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/etnz/delta"
	"github.com/etnz/delta/api"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Step of the Wizard.
type Step int

const (
	StepAmount Step = iota
	StepPayment
	StepProcessing
	StepSuccess
)

func (s Step) String() string {
	switch s {
	case StepAmount:
		return "AMOUNT"
	case StepPayment:
		return "PAYMENT"
	case StepProcessing:
		return "PROCESSING"
	case StepSuccess:
		return "SUCCESS"
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// Validation errors, their text is shown to the user.
var (
	ErrInvalidAmount     = errors.New("Please enter a valid amount")
	ErrDepositLimit      = errors.New("Deposit limit exceeded. Max: $1,000,000")
	ErrInsufficientFunds = errors.New("Insufficient funds")
	ErrBalanceUnknown    = errors.New("Balance is not known yet. Please try again.")
)

// GenericFailure is the message of a failed operation when the platform gives none.
const GenericFailure = "Transaction failed. Please try again."

// StepError is returned by an operation not allowed in the current step.
type StepError struct {
	Op   string
	Step Step
}

func (e *StepError) Error() string { return fmt.Sprintf("cannot %s in step %s", e.Op, e.Step) }

// FailedError is a wallet operation rejected by the platform, or that could
// not be sent.
type FailedError struct {
	Message string // shown to the user.
	Err     error
}

func (e *FailedError) Error() string { return e.Message }

func (e *FailedError) Unwrap() error { return e.Err }

// Transactor executes wallet operations.
type Transactor interface {
	Transact(ctx context.Context, kind delta.Kind, amount decimal.Decimal, key string) (string, error)
}

// BalanceSource provides the last known balance.
type BalanceSource interface {
	Balance() (decimal.Decimal, bool)
}

// Refresher forces a refresh of the account.
type Refresher interface {
	RefreshAccount()
}

// State is a snapshot of the Wizard.
type State struct {
	Step    Step
	Kind    delta.Kind
	Amount  decimal.Decimal
	Err     error  // last validation or processing error, nil if none.
	Message string // platform acknowledgement, in SUCCESS.

	// Projected is the balance expected after the operation, shown in
	// SUCCESS until the refreshed balance arrives. Display only.
	Projected    decimal.Decimal
	HasProjected bool
}

// Option configures a Wizard.
type Option func(*Wizard)

// WithSettleDelay sets the pause between PROCESSING and the actual request.
func WithSettleDelay(d time.Duration) Option { return func(w *Wizard) { w.settleDelay = d } }

// WithCloseDelay sets the time SUCCESS is shown before the wizard resets.
func WithCloseDelay(d time.Duration) Option { return func(w *Wizard) { w.closeDelay = d } }

// WithJournal journals every processed operation.
func WithJournal(j *Journal, user string) Option {
	return func(w *Wizard) { w.journal, w.user = j, user }
}

// WithCue sets a function called once on each success. It must not call the Wizard.
func WithCue(f func(State)) Option { return func(w *Wizard) { w.cue = f } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(w *Wizard) { w.logger = l } }

// Wizard is the deposit and withdraw flow. It is safe for concurrent use.
type Wizard struct {
	api       Transactor
	balance   BalanceSource
	refresher Refresher

	settleDelay time.Duration
	closeDelay  time.Duration
	journal     *Journal
	user        string
	cue         func(State)
	logger      *zap.Logger

	mu     sync.Mutex
	state  State
	done   chan struct{} // closed when the current run leaves SUCCESS.
	closer *time.Timer
}

// NewWizard returns a Wizard in step AMOUNT, for a deposit.
func NewWizard(t Transactor, b BalanceSource, r Refresher, opts ...Option) *Wizard {
	w := &Wizard{
		api:         t,
		balance:     b,
		refresher:   r,
		settleDelay: 2 * time.Second,
		closeDelay:  2 * time.Second,
		cue:         func(State) {},
		logger:      zap.NewNop(),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State returns a snapshot of the wizard.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Done returns a channel closed when the wizard next leaves SUCCESS, either
// automatically or by Close. Each run has its own channel: fetched before
// Submit, or while in SUCCESS, it belongs to that run and a later run never
// closes it twice.
func (w *Wizard) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

// SetKind selects a deposit or a withdraw.
func (w *Wizard) SetKind(k delta.Kind) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.Step != StepAmount {
		return &StepError{"change the operation", w.state.Step}
	}
	w.state.Kind, w.state.Err = k, nil
	return nil
}

// SetAmount sets the amount of the operation.
func (w *Wizard) SetAmount(a decimal.Decimal) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.Step != StepAmount {
		return &StepError{"change the amount", w.state.Step}
	}
	w.state.Amount, w.state.Err = a, nil
	return nil
}

// validate checks the request, balance is the last known one.
func validate(r delta.TransactionRequest, balance decimal.Decimal, known bool) error {
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	switch r.Kind {
	case delta.Deposit:
		if r.Amount.GreaterThan(delta.DepositLimit) {
			return ErrDepositLimit
		}
	case delta.Withdraw:
		if !known {
			return ErrBalanceUnknown
		}
		if r.Amount.GreaterThan(balance) {
			return ErrInsufficientFunds
		}
	default:
		return fmt.Errorf("unknown wallet operation %v", r.Kind)
	}
	return nil
}

// Submit validates the amount. A deposit moves to PAYMENT, a withdraw is
// processed immediately and Submit returns its outcome.
func (w *Wizard) Submit(ctx context.Context) error {
	w.mu.Lock()
	if w.state.Step != StepAmount {
		defer w.mu.Unlock()
		return &StepError{"submit", w.state.Step}
	}
	req := delta.TransactionRequest{Kind: w.state.Kind, Amount: w.state.Amount}
	balance, known := w.balance.Balance()
	if err := validate(req, balance, known); err != nil {
		w.state.Err = err
		w.mu.Unlock()
		return err
	}
	w.state.Err = nil
	if req.Kind == delta.Deposit {
		w.state.Step = StepPayment
		w.mu.Unlock()
		return nil
	}
	w.enterProcessing()
	w.mu.Unlock()
	return w.process(ctx, req, balance, known)
}

// Back returns from PAYMENT to AMOUNT, keeping the amount.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.Step != StepPayment {
		return &StepError{"go back", w.state.Step}
	}
	w.state.Step, w.state.Err = StepAmount, nil
	return nil
}

// Confirm processes the deposit accepted in PAYMENT and returns its outcome.
func (w *Wizard) Confirm(ctx context.Context) error {
	w.mu.Lock()
	if w.state.Step != StepPayment {
		defer w.mu.Unlock()
		return &StepError{"confirm", w.state.Step}
	}
	req := delta.TransactionRequest{Kind: w.state.Kind, Amount: w.state.Amount}
	balance, known := w.balance.Balance()
	w.enterProcessing()
	w.mu.Unlock()
	return w.process(ctx, req, balance, known)
}

// Close resets the wizard to AMOUNT. It has no effect while PROCESSING, and
// returns false in that case.
func (w *Wizard) Close() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.Step == StepProcessing {
		return false
	}
	w.reset()
	return true
}

// enterProcessing moves to PROCESSING. w.mu is held.
func (w *Wizard) enterProcessing() {
	w.state.Step, w.state.Err, w.state.Message = StepProcessing, nil, ""
	w.state.HasProjected = false
}

// reset returns to a fresh AMOUNT step. w.mu is held.
func (w *Wizard) reset() {
	if w.closer != nil {
		w.closer.Stop()
		w.closer = nil
	}
	if w.state.Step == StepSuccess {
		close(w.done)
		w.done = make(chan struct{})
	}
	w.state = State{}
}

// autoClose leaves SUCCESS after the close delay.
func (w *Wizard) autoClose() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.Step == StepSuccess {
		w.reset()
	}
}

// process executes req, balance is the balance known when it was accepted.
// The caller cancellation is ignored: once started an operation always completes.
func (w *Wizard) process(ctx context.Context, req delta.TransactionRequest, balance decimal.Decimal, known bool) error {
	ctx = context.WithoutCancel(ctx)
	ref := uuid.NewString()
	w.record(ref, req, Submitted, "")

	time.Sleep(w.settleDelay)
	msg, err := w.api.Transact(ctx, req.Kind, req.Amount, ref)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		failure := &FailedError{Message: GenericFailure, Err: err}
		if m, ok := api.Message(err); ok {
			failure.Message = m
		}
		w.logger.Warn("wallet operation failed",
			zap.String("ref", ref), zap.Stringer("kind", req.Kind), zap.Stringer("amount", req.Amount), zap.Error(err))
		w.record(ref, req, Failed, failure.Message)
		w.state.Err = failure
		w.state.Step = StepAmount
		if req.Kind == delta.Deposit {
			w.state.Step = StepPayment
		}
		return failure
	}

	w.logger.Info("wallet operation succeeded",
		zap.String("ref", ref), zap.Stringer("kind", req.Kind), zap.Stringer("amount", req.Amount))
	w.record(ref, req, Succeeded, msg)
	w.state.Step = StepSuccess
	w.state.Message = msg
	if known {
		w.state.Projected, w.state.HasProjected = req.Apply(balance), true
	}
	w.refresher.RefreshAccount()
	w.cue(w.state)
	w.closer = time.AfterFunc(w.closeDelay, w.autoClose)
	return nil
}

// record journals an outcome, journal failures are only logged.
func (w *Wizard) record(ref string, req delta.TransactionRequest, o Outcome, msg string) {
	if w.journal == nil {
		return
	}
	err := w.journal.Append(Entry{
		Ref:     ref,
		Time:    time.Now().UTC(),
		User:    w.user,
		Kind:    req.Kind,
		Amount:  req.Amount,
		Outcome: o,
		Message: msg,
	})
	if err != nil {
		w.logger.Error("cannot journal wallet operation", zap.String("ref", ref), zap.Error(err))
	}
}
