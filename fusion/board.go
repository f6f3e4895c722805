// Package fusion merges the independently refreshed feeds of the platform
// into a single read model.
//
// Each resource lives in its own slot, with its own lock: a slow or failing
// feed never blocks the others. A slot value is always replaced as a whole,
// readers get a consistent value for each resource, but the consistency
// across resources is only eventual (a balance and positions refreshed at
// different times).
package fusion

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/etnz/delta"
	"github.com/shopspring/decimal"
)

// Topic names a resource of the Board.
type Topic string

const (
	TopicPrices        Topic = "prices"
	TopicStats         Topic = "stats"
	TopicProfile       Topic = "profile"
	TopicPositions     Topic = "positions"
	TopicNotifications Topic = "notifications"
	TopicChart         Topic = "chart"
)

// Entry is the state of one resource.
type Entry[T any] struct {
	Value     T
	Known     bool      // at least one value was received.
	UpdatedAt time.Time // time of the last received value.
	Stale     bool      // the last refresh failed after a value was received.
	Err       error     // last refresh error, nil after a success.
}

// slot holds one resource.
type slot[T any] struct {
	mu    sync.RWMutex
	entry Entry[T]
}

func (s *slot[T]) set(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry = Entry[T]{Value: v, Known: true, UpdatedAt: time.Now()}
}

func (s *slot[T]) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry.Stale = s.entry.Known
	s.entry.Err = err
}

// update replaces the value without changing the entry state.
func (s *slot[T]) update(f func(T) T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry.Value = f(s.entry.Value)
}

func (s *slot[T]) reset(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry = Entry[T]{Value: v}
}

func (s *slot[T]) get() Entry[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entry
}

// Chart is the price history of the selected symbol.
type Chart struct {
	Symbol    string
	Timeframe delta.Timeframe
	Points    []delta.PricePoint // time ordered.
}

// Board is the read model of the client.
//
// Values handed to the Board are owned by it and must not be modified
// afterward, values read from it must not be modified either.
type Board struct {
	prices        slot[delta.Prices]
	stats         slot[[]delta.MarketStat]
	profile       slot[delta.Profile]
	positions     slot[[]delta.Position]
	notifications slot[[]delta.Notification]
	chart         slot[Chart]

	readMu  sync.Mutex
	pending map[int64]bool // notifications marked read locally.

	subMu   sync.Mutex
	subs    map[int]func(Topic)
	nextSub int
}

// NewBoard returns an empty Board.
func NewBoard() *Board {
	return &Board{
		pending: make(map[int64]bool),
		subs:    make(map[int]func(Topic)),
	}
}

// Subscribe calls f after each change of a resource, until cancel is called.
// f is called from the goroutine that changed the resource.
func (b *Board) Subscribe(f func(Topic)) (cancel func()) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = f
	return func() {
		b.subMu.Lock()
		defer b.subMu.Unlock()
		delete(b.subs, id)
	}
}

func (b *Board) notify(t Topic) {
	b.subMu.Lock()
	subs := make([]func(Topic), 0, len(b.subs))
	for _, f := range b.subs {
		subs = append(subs, f)
	}
	b.subMu.Unlock()
	for _, f := range subs {
		f(t)
	}
}

// SetPrices replaces the price snapshot.
func (b *Board) SetPrices(p delta.Prices) {
	b.prices.set(p.Clone())
	b.notify(TopicPrices)
}

// SetStats replaces the market overview.
func (b *Board) SetStats(s []delta.MarketStat) {
	b.stats.set(slices.Clone(s))
	b.notify(TopicStats)
}

// SetProfile replaces the profile, and the balance it carries.
func (b *Board) SetProfile(p delta.Profile) {
	b.profile.set(p)
	b.notify(TopicProfile)
}

// SetPositions replaces the positions.
func (b *Board) SetPositions(p []delta.Position) {
	b.positions.set(slices.Clone(p))
	b.notify(TopicPositions)
}

// SetChart replaces the chart history.
func (b *Board) SetChart(c Chart) {
	c.Points = Series(c.Points)
	b.chart.set(c)
	b.notify(TopicChart)
}

// SelectChart empties the chart for a new selection.
func (b *Board) SelectChart(symbol string, tf delta.Timeframe) {
	b.chart.reset(Chart{Symbol: symbol, Timeframe: tf})
	b.notify(TopicChart)
}

// Fail records a failed refresh of topic. The previous value is kept and
// marked stale.
func (b *Board) Fail(t Topic, err error) {
	switch t {
	case TopicPrices:
		b.prices.fail(err)
	case TopicStats:
		b.stats.fail(err)
	case TopicProfile:
		b.profile.fail(err)
	case TopicPositions:
		b.positions.fail(err)
	case TopicNotifications:
		b.notifications.fail(err)
	case TopicChart:
		b.chart.fail(err)
	default:
		panic(fmt.Sprintf("unknown board topic %q", t))
	}
	b.notify(t)
}

// Balance returns the last known balance.
func (b *Board) Balance() (decimal.Decimal, bool) {
	e := b.profile.get()
	return e.Value.Balance, e.Known
}

// View is an immutable snapshot of the Board.
type View struct {
	Prices        Entry[delta.Prices]
	Stats         Entry[[]delta.MarketStat]
	Profile       Entry[delta.Profile]
	Positions     Entry[[]delta.Position]
	Notifications Entry[[]delta.Notification]
	Chart         Entry[Chart]
}

// View returns a snapshot of every resource.
func (b *Board) View() View {
	return View{
		Prices:        b.prices.get(),
		Stats:         b.stats.get(),
		Profile:       b.profile.get(),
		Positions:     b.positions.get(),
		Notifications: b.Notifications(),
		Chart:         b.chart.get(),
	}
}

// Balance returns the cash balance, and whether it is known.
func (v View) Balance() (decimal.Decimal, bool) { return v.Profile.Value.Balance, v.Profile.Known }

// Valuation returns the market value of the positions.
func (v View) Valuation() decimal.Decimal { return Valuation(v.Positions.Value, v.Prices.Value) }

// Equity returns the balance plus the market value of the positions.
func (v View) Equity() decimal.Decimal {
	return Equity(v.Profile.Value.Balance, v.Positions.Value, v.Prices.Value)
}

// TotalPL returns the unrealized profit or loss of the positions.
func (v View) TotalPL() decimal.Decimal { return TotalPL(v.Positions.Value, v.Prices.Value) }

// Unread returns the number of unread notifications.
func (v View) Unread() int { return UnreadCount(v.Notifications.Value) }
