package wallet

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/etnz/delta"
	"github.com/etnz/delta/api"
	"github.com/etnz/delta/api/apitest"
	"github.com/shopspring/decimal"
)

// platform is a fake Transactor, BalanceSource and Refresher.
type platform struct {
	mu        sync.Mutex
	balance   decimal.Decimal
	known     bool
	err       error         // returned by Transact.
	block     chan struct{} // if not nil, Transact waits for it.
	started   chan struct{} // receives each Transact call.
	keys      []string
	refreshes int
}

func newPlatform(balance int64) *platform {
	return &platform{balance: decimal.NewFromInt(balance), known: true, started: make(chan struct{}, 8)}
}

func (p *platform) Transact(ctx context.Context, kind delta.Kind, amount decimal.Decimal, key string) (string, error) {
	p.started <- struct{}{}
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	if p.err != nil {
		return "", p.err
	}
	return "ok", nil
}

func (p *platform) Balance() (decimal.Decimal, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance, p.known
}

func (p *platform) RefreshAccount() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshes++
}

func (p *platform) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

func newWizard(p *platform, opts ...Option) *Wizard {
	opts = append([]Option{WithSettleDelay(0), WithCloseDelay(10 * time.Millisecond)}, opts...)
	return NewWizard(p, p, p, opts...)
}

func TestWizard_Validation(t *testing.T) {
	tests := []struct {
		name    string
		kind    delta.Kind
		amount  decimal.Decimal
		known   bool
		wantErr error
	}{
		{"zero", delta.Deposit, decimal.Zero, true, ErrInvalidAmount},
		{"negative", delta.Withdraw, delta.D(-5), true, ErrInvalidAmount},
		{"deposit above limit", delta.Deposit, delta.D(1_000_001), true, ErrDepositLimit},
		{"withdraw above balance", delta.Withdraw, delta.D(100.01), true, ErrInsufficientFunds},
		{"withdraw unknown balance", delta.Withdraw, delta.D(1), false, ErrBalanceUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPlatform(100)
			p.known = tt.known
			w := newWizard(p)
			w.SetKind(tt.kind)
			w.SetAmount(tt.amount)

			if err := w.Submit(context.Background()); !errors.Is(err, tt.wantErr) {
				t.Errorf("Submit() got %v, want %v", err, tt.wantErr)
			}
			s := w.State()
			if s.Step != StepAmount || !errors.Is(s.Err, tt.wantErr) {
				t.Errorf("State() got %v with %v, want AMOUNT with %v", s.Step, s.Err, tt.wantErr)
			}
			if got := p.calls(); got != 0 {
				t.Errorf("Submit() sent %d requests, want 0", got)
			}
		})
	}
}

func TestWizard_InsufficientFunds(t *testing.T) {
	p := newPlatform(500)
	w := newWizard(p)
	w.SetKind(delta.Withdraw)
	w.SetAmount(delta.D(600))

	err := w.Submit(context.Background())
	if err == nil || err.Error() != "Insufficient funds" {
		t.Errorf("Submit(600) with 500 got %v, want \"Insufficient funds\"", err)
	}
	if got := p.calls(); got != 0 {
		t.Errorf("Submit(600) sent %d requests, want 0", got)
	}
}

func TestWizard_DepositLimitIsInclusive(t *testing.T) {
	p := newPlatform(0)
	w := newWizard(p)
	w.SetAmount(delta.DepositLimit)
	if err := w.Submit(context.Background()); err != nil {
		t.Errorf("Submit(limit) unexpected error = %v", err)
	}
	if got := w.State().Step; got != StepPayment {
		t.Errorf("Submit(limit) step got %v, want PAYMENT", got)
	}
}

func TestWizard_Deposit(t *testing.T) {
	p := newPlatform(100)
	var cues int
	w := newWizard(p, WithCue(func(State) { cues++ }))
	ctx := context.Background()

	w.SetAmount(delta.D(50))
	if err := w.Submit(ctx); err != nil {
		t.Fatalf("Submit() unexpected error = %v", err)
	}
	if got := w.State().Step; got != StepPayment {
		t.Fatalf("Submit() step got %v, want PAYMENT", got)
	}
	if err := w.SetAmount(delta.D(60)); err == nil {
		t.Errorf("SetAmount() in PAYMENT want an error")
	}

	if err := w.Back(); err != nil {
		t.Fatalf("Back() unexpected error = %v", err)
	}
	if s := w.State(); s.Step != StepAmount || !s.Amount.Equal(delta.D(50)) {
		t.Errorf("Back() got %v %v, want AMOUNT 50", s.Step, s.Amount)
	}
	w.Submit(ctx)

	done := w.Done()
	if err := w.Confirm(ctx); err != nil {
		t.Fatalf("Confirm() unexpected error = %v", err)
	}
	s := w.State()
	if s.Step != StepSuccess || s.Message != "ok" {
		t.Errorf("Confirm() got %v %q, want SUCCESS ok", s.Step, s.Message)
	}
	if !s.HasProjected || !s.Projected.Equal(delta.D(150)) {
		t.Errorf("Projected got %v, want 150", s.Projected)
	}
	if p.refreshes != 1 || cues != 1 {
		t.Errorf("got %d refreshes and %d cues, want 1 and 1", p.refreshes, cues)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("the wizard never closed")
	}
	if s := w.State(); s.Step != StepAmount || !s.Amount.IsZero() || s.Kind != delta.Deposit {
		t.Errorf("auto close got %+v, want a fresh AMOUNT step", s)
	}
}

func TestWizard_Withdraw(t *testing.T) {
	p := newPlatform(100)
	w := newWizard(p)
	w.SetKind(delta.Withdraw)
	w.SetAmount(delta.D(100))

	if err := w.Submit(context.Background()); err != nil {
		t.Fatalf("Submit() unexpected error = %v", err)
	}
	s := w.State()
	if s.Step != StepSuccess || !s.Projected.Equal(decimal.Zero) {
		t.Errorf("Submit() got %v, projected %v, want SUCCESS and 0", s.Step, s.Projected)
	}
	if got := p.calls(); got != 1 {
		t.Errorf("Submit() sent %d requests, want 1", got)
	}
	done := w.Done()
	if !w.Close() {
		t.Errorf("Close() in SUCCESS got false")
	}
	select {
	case <-done:
	default:
		t.Errorf("Close() in SUCCESS did not close Done()")
	}
}

func TestWizard_DoneEachRun(t *testing.T) {
	p := newPlatform(100)
	w := newWizard(p, WithCloseDelay(time.Hour))
	w.SetKind(delta.Withdraw)
	ctx := context.Background()

	first := w.Done()
	w.SetAmount(delta.D(10))
	if err := w.Submit(ctx); err != nil {
		t.Fatalf("Submit() unexpected error = %v", err)
	}
	w.Close()
	select {
	case <-first:
	default:
		t.Fatal("Done() of the first run still open after Close()")
	}

	// the next run gets a channel of its own.
	second := w.Done()
	select {
	case <-second:
		t.Fatal("Done() fetched before the second run is already closed")
	default:
	}
	w.SetKind(delta.Withdraw)
	w.SetAmount(delta.D(10))
	if err := w.Submit(ctx); err != nil {
		t.Fatalf("Submit() unexpected error = %v", err)
	}
	select {
	case <-second:
		t.Error("Done() closed while in SUCCESS")
	default:
	}
	w.Close()
	select {
	case <-second:
	default:
		t.Error("Done() of the second run still open after Close()")
	}
}

func TestWizard_Failure(t *testing.T) {
	tests := []struct {
		name     string
		kind     delta.Kind
		err      error
		wantStep Step
		wantMsg  string
	}{
		{"deposit rejected", delta.Deposit, &api.Error{Status: 400, Message: "Deposit limit exceeded"}, StepPayment, "Deposit limit exceeded"},
		{"deposit unreachable", delta.Deposit, errors.New("connection refused"), StepPayment, GenericFailure},
		{"withdraw rejected", delta.Withdraw, &api.Error{Status: 400, Message: "Insufficient funds"}, StepAmount, "Insufficient funds"},
		{"withdraw unreachable", delta.Withdraw, errors.New("timeout"), StepAmount, GenericFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPlatform(100)
			p.err = tt.err
			w := newWizard(p)
			w.SetKind(tt.kind)
			w.SetAmount(delta.D(10))
			ctx := context.Background()

			err := w.Submit(ctx)
			if tt.kind == delta.Deposit {
				err = w.Confirm(ctx)
			}
			var failed *FailedError
			if !errors.As(err, &failed) || failed.Message != tt.wantMsg {
				t.Fatalf("got %v, want a FailedError %q", err, tt.wantMsg)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("FailedError does not wrap %v", tt.err)
			}
			s := w.State()
			if s.Step != tt.wantStep || !s.Amount.Equal(delta.D(10)) {
				t.Errorf("State() got %v %v, want %v with the amount kept", s.Step, s.Amount, tt.wantStep)
			}
			if p.refreshes != 0 {
				t.Errorf("failure triggered %d refreshes, want 0", p.refreshes)
			}
		})
	}
}

func TestWizard_ProcessingCannotBeInterrupted(t *testing.T) {
	p := newPlatform(100)
	p.block = make(chan struct{})
	w := newWizard(p)
	w.SetAmount(delta.D(10))
	w.Submit(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- w.Confirm(ctx) }()
	<-p.started

	if got := w.State().Step; got != StepProcessing {
		t.Errorf("step got %v, want PROCESSING", got)
	}
	if w.Close() {
		t.Errorf("Close() in PROCESSING got true")
	}
	if err := w.Confirm(ctx); err == nil {
		t.Errorf("Confirm() in PROCESSING want an error")
	}
	var stepErr *StepError
	if err := w.SetKind(delta.Withdraw); !errors.As(err, &stepErr) {
		t.Errorf("SetKind() in PROCESSING got %v, want a StepError", err)
	}
	cancel()
	close(p.block)

	if err := <-result; err != nil {
		t.Errorf("Confirm() unexpected error = %v", err)
	}
	if got := w.State().Step; got != StepSuccess {
		t.Errorf("step got %v, want SUCCESS", got)
	}
}

func TestWizard_Journal(t *testing.T) {
	p := newPlatform(100)
	j := NewJournal(filepath.Join(t.TempDir(), "wallet.jsonl"))
	w := newWizard(p, WithJournal(j, "alice"))
	w.SetKind(delta.Withdraw)
	w.SetAmount(delta.D(30))
	w.Submit(context.Background())

	entries, err := j.Entries()
	if err != nil {
		t.Fatalf("Entries() unexpected error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Entries() got %d entries, want 2", len(entries))
	}
	if entries[0].Outcome != Submitted || entries[1].Outcome != Succeeded {
		t.Errorf("outcomes got %s, %s, want submitted, succeeded", entries[0].Outcome, entries[1].Outcome)
	}
	if entries[0].Ref != entries[1].Ref || entries[0].Ref != p.keys[0] {
		t.Errorf("refs got %q, %q and key %q, want all equal", entries[0].Ref, entries[1].Ref, p.keys[0])
	}
	if entries[0].User != "alice" || entries[0].Kind != delta.Withdraw || !entries[0].Amount.Equal(delta.D(30)) {
		t.Errorf("entry got %+v, want alice withdrawing 30", entries[0])
	}
	if got := Pending(entries); len(got) != 0 {
		t.Errorf("Pending() got %v, want none", got)
	}
}

func TestWizard_Platform(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.AddUser("alice", "pw", "", decimal.NewFromInt(100))
	c, err := api.New(srv.BaseURL(), api.WithTokens(api.TokenFunc(func() (string, bool) { return srv.Token("alice"), true })))
	if err != nil {
		t.Fatalf("api.New() unexpected error = %v", err)
	}
	// the fused balance is outdated: the platform has less.
	p := newPlatform(1000)
	w := NewWizard(c, p, p, WithSettleDelay(0), WithCloseDelay(time.Hour))
	w.SetKind(delta.Withdraw)
	w.SetAmount(delta.D(500))

	err = w.Submit(context.Background())
	var failed *FailedError
	if !errors.As(err, &failed) || failed.Message != "Insufficient funds" {
		t.Errorf("Submit() got %v, want the platform message", err)
	}

	w.SetAmount(delta.D(40))
	if err := w.Submit(context.Background()); err != nil {
		t.Fatalf("Submit() unexpected error = %v", err)
	}
	if got := srv.Balance("alice"); !got.Equal(delta.D(60)) {
		t.Errorf("platform balance got %v, want 60", got)
	}
	if got := srv.Calls(http.MethodPost, "/wallet/withdraw"); got != 2 {
		t.Errorf("withdraw requests got %d, want 2", got)
	}
}
