package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// script is a fetch function whose calls are answered by the test.
type script struct {
	mu    sync.Mutex
	calls []chan result
	next  chan int // receives the index of each new call.
}

type result struct {
	v   int
	err error
}

func newScript() *script { return &script{next: make(chan int, 16)} }

func (s *script) fetch(ctx context.Context) (int, error) {
	ch := make(chan result, 1)
	s.mu.Lock()
	s.calls = append(s.calls, ch)
	i := len(s.calls) - 1
	s.mu.Unlock()
	s.next <- i
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// answer answers call i.
func (s *script) answer(i int, v int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[i] <- result{v, err}
}

// waitCall waits for call i to be issued.
func (s *script) waitCall(t *testing.T, i int) {
	t.Helper()
	for {
		select {
		case got := <-s.next:
			if got == i {
				return
			}
		case <-time.After(time.Second):
			t.Fatalf("call %d was never issued", i)
		}
	}
}

// collector records deliveries.
type collector struct {
	mu  sync.Mutex
	got []int
	c   chan int
}

func newCollector() *collector { return &collector{c: make(chan int, 16)} }

func (c *collector) deliver(v int) {
	c.mu.Lock()
	c.got = append(c.got, v)
	c.mu.Unlock()
	select {
	case c.c <- v:
	default:
	}
}

func (c *collector) wait(t *testing.T) int {
	t.Helper()
	select {
	case v := <-c.c:
		return v
	case <-time.After(time.Second):
		t.Fatalf("no value delivered")
	}
	return 0
}

func (c *collector) values() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.got...)
}

func TestPoller_Periodic(t *testing.T) {
	var mu sync.Mutex
	n := 0
	fetch := func(context.Context) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return n, nil
	}
	c := newCollector()
	p := New("counter", fetch, 5*time.Millisecond, c.deliver)
	p.Start(context.Background())
	defer p.Stop()

	first, second := c.wait(t), c.wait(t)
	if second <= first {
		t.Errorf("deliveries got %d then %d, want increasing values", first, second)
	}
}

func TestPoller_OutOfOrderResponse(t *testing.T) {
	s := newScript()
	c := newCollector()
	p := New("prices", s.fetch, time.Hour, c.deliver)
	p.Start(context.Background())
	defer p.Stop()

	s.waitCall(t, 0)
	p.Refresh()
	s.waitCall(t, 1)

	// the second request completes first.
	s.answer(1, 2, nil)
	if got := c.wait(t); got != 2 {
		t.Fatalf("delivered %d, want 2", got)
	}
	s.answer(0, 1, nil)

	// wait for the outdated response to be processed.
	deadline := time.Now().Add(time.Second)
	for p.Stats().Discarded == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := c.values(); len(got) != 1 || got[0] != 2 {
		t.Errorf("deliveries got %v, want [2]", got)
	}
	if got := p.Stats(); got.Discarded != 1 || got.Delivered != 1 || got.Requests != 2 {
		t.Errorf("Stats() got %+v, want 2 requests, 1 delivered, 1 discarded", got)
	}
}

func TestPoller_RefreshDelivered(t *testing.T) {
	s := newScript()
	c := newCollector()
	p := New("balance", s.fetch, time.Hour, c.deliver)
	p.Start(context.Background())

	s.waitCall(t, 0)
	refreshed := p.Refresh()
	s.waitCall(t, 1)

	// the response to the request issued before Refresh does not count.
	s.answer(0, 1, nil)
	if got := c.wait(t); got != 1 {
		t.Fatalf("delivered %d, want 1", got)
	}
	select {
	case <-refreshed:
		t.Fatal("Refresh() channel closed by a request issued before the call")
	default:
	}

	s.answer(1, 2, nil)
	select {
	case <-refreshed:
	case <-time.After(time.Second):
		t.Fatal("Refresh() channel not closed after the refreshed value was delivered")
	}
	if got := c.values(); got[len(got)-1] != 2 {
		t.Errorf("last delivery got %d, want 2", got[len(got)-1])
	}

	// Stop releases the pending callers.
	pending := p.Refresh()
	p.Stop()
	select {
	case <-pending:
	case <-time.After(time.Second):
		t.Fatal("Refresh() channel not closed by Stop")
	}
	select {
	case <-p.Refresh():
	default:
		t.Error("Refresh() after Stop returned an open channel")
	}
}

func TestPoller_FailureKeepsValue(t *testing.T) {
	s := newScript()
	c := newCollector()
	errs := make(chan error, 1)
	p := New("balance", s.fetch, time.Hour, c.deliver, OnError(func(err error) { errs <- err }))
	p.Start(context.Background())
	defer p.Stop()

	s.waitCall(t, 0)
	s.answer(0, 42, nil)
	c.wait(t)

	p.Refresh()
	s.waitCall(t, 1)
	boom := errors.New("boom")
	s.answer(1, 0, boom)
	select {
	case err := <-errs:
		if !errors.Is(err, boom) {
			t.Errorf("OnError() got %v, want %v", err, boom)
		}
	case <-time.After(time.Second):
		t.Fatal("OnError() never called")
	}
	if got := c.values(); len(got) != 1 || got[0] != 42 {
		t.Errorf("deliveries got %v, want [42]", got)
	}
	if got := p.Stats(); got.Errors != 1 || !errors.Is(got.LastError, boom) {
		t.Errorf("Stats() got %+v, want 1 error", got)
	}
}

func TestPoller_StopDiscardsInFlight(t *testing.T) {
	s := newScript()
	c := newCollector()
	p := New("chart", s.fetch, time.Hour, c.deliver)
	p.Start(context.Background())

	s.waitCall(t, 0)
	p.Stop()
	p.Stop() // idempotent

	if got := c.values(); len(got) != 0 {
		t.Errorf("deliveries after Stop got %v, want none", got)
	}
	if got := p.Stats(); got.Discarded != 1 || got.Errors != 0 {
		t.Errorf("Stats() got %+v, want 1 discarded, 0 errors", got)
	}

	// no request after Stop.
	p.Refresh()
	p.Start(context.Background())
	select {
	case i := <-s.next:
		t.Errorf("call %d issued after Stop", i)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPoller_StopBeforeStart(t *testing.T) {
	p := New("idle", func(context.Context) (int, error) { return 0, nil }, time.Millisecond, func(int) {})
	p.Stop()
	p.Start(context.Background())
	if got := p.Stats().Requests; got != 0 {
		t.Errorf("requests got %d, want 0", got)
	}
}
