// Package feed refreshes a remote resource periodically.
//
// A Poller issues one request per tick without waiting for the previous one:
// a slow response does not delay the next request. Each request carries a
// sequence number and a response is delivered only if it is more recent than
// the last delivered one, so that a late response never overwrites a fresher
// value.
package feed

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Fetch retrieves the current value of a resource.
type Fetch[T any] func(ctx context.Context) (T, error)

// Stats are the counters of a Poller.
type Stats struct {
	Requests    int       // requests issued.
	Delivered   int       // responses delivered.
	Errors      int       // failed requests.
	Discarded   int       // responses outdated, or received after Stop.
	LastSuccess time.Time // time of the last delivery.
	LastError   error
}

// Option configures a Poller.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	onError func(error)
}

// WithLogger sets the logger used to report failed requests.
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.logger = l } }

// OnError sets a function called with each failed request that is not outdated.
func OnError(f func(error)) Option { return func(o *options) { o.onError = f } }

// Poller periodically fetches a resource and delivers it.
type Poller[T any] struct {
	name     string
	fetch    Fetch[T]
	interval time.Duration
	deliver  func(T)
	options

	refresh chan struct{}
	wg      sync.WaitGroup // loop and in-flight requests.

	mu        sync.Mutex
	started   bool
	stopped   bool
	cancel    context.CancelFunc
	issued    uint64
	delivered uint64
	stats     Stats
	waiters   []waiter
}

// waiter is a Refresh caller waiting for a request numbered seq or later.
type waiter struct {
	seq uint64
	ch  chan struct{}
}

// New returns a Poller calling fetch every interval and passing each fresh
// value to deliver. deliver and the OnError function are never called
// concurrently, and must not call the Poller methods.
func New[T any](name string, fetch Fetch[T], interval time.Duration, deliver func(T), opts ...Option) *Poller[T] {
	p := &Poller[T]{
		name:     name,
		fetch:    fetch,
		interval: interval,
		deliver:  deliver,
		options:  options{logger: zap.NewNop()},
		refresh:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(&p.options)
	}
	return p
}

// Name returns the resource name.
func (p *Poller[T]) Name() string { return p.name }

// Start issues a first request immediately, then one per interval until ctx
// is done or Stop is called. Start can be called only once.
func (p *Poller[T]) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.loop(ctx)
}

func (p *Poller[T]) loop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.issue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.issue(ctx)
		case <-p.refresh:
			p.issue(ctx)
		}
	}
}

// Refresh requests an immediate extra fetch. It does not block.
// The returned channel is closed once a value fetched after the call has been
// delivered, or when the Poller stops.
func (p *Poller[T]) Refresh() <-chan struct{} {
	p.mu.Lock()
	w := waiter{seq: p.issued + 1, ch: make(chan struct{})}
	if p.stopped {
		close(w.ch)
	} else {
		p.waiters = append(p.waiters, w)
	}
	p.mu.Unlock()

	select {
	case p.refresh <- struct{}{}:
	default: // a refresh is already pending.
	}
	return w.ch
}

// Stop cancels the polling and waits for in-flight requests; their
// responses are discarded. Stop is idempotent.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	if p.cancel != nil {
		p.cancel()
	}
	for _, w := range p.waiters {
		close(w.ch)
	}
	p.waiters = nil
	p.mu.Unlock()
	p.wg.Wait()
}

// Stats returns a copy of the counters.
func (p *Poller[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// issue launches a new request.
func (p *Poller[T]) issue(ctx context.Context) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.issued++
	seq := p.issued
	p.stats.Requests++
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		v, err := p.fetch(ctx)
		p.complete(ctx, seq, v, err)
	}()
}

// complete handles the response of request seq.
// The lock is held while delivering so that deliveries happen in sequence order.
func (p *Poller[T]) complete(ctx context.Context, seq uint64, v T, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || ctx.Err() != nil || seq <= p.delivered {
		p.stats.Discarded++
		return
	}
	if err != nil {
		p.stats.Errors++
		p.stats.LastError = err
		p.logger.Warn("feed request failed", zap.String("feed", p.name), zap.Uint64("seq", seq), zap.Error(err))
		if p.onError != nil {
			p.onError(err)
		}
		return
	}
	p.delivered = seq
	p.stats.Delivered++
	p.stats.LastSuccess = time.Now()
	p.deliver(v)

	pending := p.waiters[:0]
	for _, w := range p.waiters {
		if w.seq <= seq {
			close(w.ch)
			continue
		}
		pending = append(pending, w)
	}
	p.waiters = pending
}
