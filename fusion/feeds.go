package fusion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/etnz/delta"
	"github.com/etnz/delta/feed"
	"github.com/etnz/delta/session"
	"go.uber.org/zap"
)

// Source is the part of the platform the feeds read from.
type Source interface {
	Prices(ctx context.Context) (delta.Prices, error)
	Stats(ctx context.Context) ([]delta.MarketStat, error)
	Profile(ctx context.Context, username string) (delta.Profile, error)
	Portfolio(ctx context.Context) ([]delta.Position, error)
	Notifications(ctx context.Context) ([]delta.Notification, error)
	History(ctx context.Context, symbol string, tf delta.Timeframe) ([]delta.PricePoint, error)
}

// Cadence is the refresh interval of each feed.
type Cadence struct {
	Prices        time.Duration
	Stats         time.Duration
	Balance       time.Duration
	Positions     time.Duration
	Notifications time.Duration
	Chart         time.Duration
}

// DefaultCadence is the refresh rate of the web dashboard.
var DefaultCadence = Cadence{
	Prices:        1500 * time.Millisecond,
	Stats:         1500 * time.Millisecond,
	Balance:       3 * time.Second,
	Positions:     3 * time.Second,
	Notifications: 5 * time.Second,
	Chart:         1500 * time.Millisecond,
}

// Feeds keeps a Board up to date.
type Feeds struct {
	board   *Board
	src     Source
	cadence Cadence
	logger  *zap.Logger
	ctx     context.Context

	prices        *feed.Poller[delta.Prices]
	stats         *feed.Poller[[]delta.MarketStat]
	balance       *feed.Poller[delta.Profile]
	positions     *feed.Poller[[]delta.Position]
	notifications *feed.Poller[[]delta.Notification]

	mu        sync.Mutex
	chart     *feed.Poller[Chart]
	stopped   bool
	refreshed <-chan struct{}
}

// StartFeeds starts polling every resource of an unlocked session into board.
// The chart is not polled until a symbol is selected with Chart.
func StartFeeds(ctx context.Context, board *Board, src Source, s *session.Session, cadence Cadence, logger *zap.Logger) (*Feeds, error) {
	if err := s.Require(); err != nil {
		return nil, err
	}
	id, _ := s.Identity()
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Feeds{board: board, src: src, cadence: cadence, logger: logger, ctx: ctx}

	f.prices = feed.New("prices", src.Prices, cadence.Prices, board.SetPrices, f.options(TopicPrices)...)
	f.stats = feed.New("stats", src.Stats, cadence.Stats, board.SetStats, f.options(TopicStats)...)
	f.balance = feed.New("balance", func(ctx context.Context) (delta.Profile, error) {
		return src.Profile(ctx, id.Handle)
	}, cadence.Balance, board.SetProfile, f.options(TopicProfile)...)
	f.positions = feed.New("positions", src.Portfolio, cadence.Positions, board.SetPositions, f.options(TopicPositions)...)
	f.notifications = feed.New("notifications", src.Notifications, cadence.Notifications, board.SetNotifications, f.options(TopicNotifications)...)

	f.prices.Start(ctx)
	f.stats.Start(ctx)
	f.balance.Start(ctx)
	f.positions.Start(ctx)
	f.notifications.Start(ctx)
	logger.Info("feeds started", zap.String("user", id.Handle))
	return f, nil
}

func (f *Feeds) options(t Topic) []feed.Option {
	return []feed.Option{
		feed.WithLogger(f.logger),
		feed.OnError(func(err error) { f.board.Fail(t, err) }),
	}
}

// RefreshAccount forces a refresh of the balance and the positions.
func (f *Feeds) RefreshAccount() {
	balance, positions := f.balance.Refresh(), f.positions.Refresh()
	done := make(chan struct{})
	go func() {
		<-balance
		<-positions
		close(done)
	}()
	f.mu.Lock()
	f.refreshed = done
	f.mu.Unlock()
}

// AccountRefreshed returns a channel closed once the balance and the
// positions requested by the last RefreshAccount are on the board, or the
// feeds are stopped. It is nil if RefreshAccount was never called.
func (f *Feeds) AccountRefreshed() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshed
}

// Chart selects the charted symbol and timeframe. The previous chart feed is
// stopped and its in-flight responses are discarded.
func (f *Feeds) Chart(symbol string, tf delta.Timeframe) error {
	if symbol == "" {
		symbol = DefaultSymbol
	}
	chart := feed.New("chart:"+symbol+":"+string(tf), func(ctx context.Context) (Chart, error) {
		points, err := f.src.History(ctx, symbol, tf)
		return Chart{Symbol: symbol, Timeframe: tf, Points: points}, err
	}, f.cadence.Chart, f.board.SetChart, f.options(TopicChart)...)

	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return fmt.Errorf("feeds are stopped")
	}
	previous := f.chart
	f.chart = chart
	f.mu.Unlock()

	// deliveries of the previous chart run subscribers, f.mu must not be held.
	if previous != nil {
		previous.Stop()
	}
	f.board.SelectChart(symbol, tf)
	chart.Start(f.ctx)
	return nil
}

// Stats returns the counters of each running feed.
func (f *Feeds) Stats() map[string]feed.Stats {
	stats := map[string]feed.Stats{
		f.prices.Name():        f.prices.Stats(),
		f.stats.Name():         f.stats.Stats(),
		f.balance.Name():       f.balance.Stats(),
		f.positions.Name():     f.positions.Stats(),
		f.notifications.Name(): f.notifications.Stats(),
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.chart != nil {
		stats[f.chart.Name()] = f.chart.Stats()
	}
	return stats
}

// Stop stops every feed. Responses still in flight are discarded.
func (f *Feeds) Stop() {
	f.mu.Lock()
	f.stopped = true
	chart := f.chart
	f.mu.Unlock()

	var wg sync.WaitGroup
	for _, stop := range []func(){f.prices.Stop, f.stats.Stop, f.balance.Stop, f.positions.Stop, f.notifications.Stop} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stop()
		}()
	}
	if chart != nil {
		chart.Stop()
	}
	wg.Wait()
	f.logger.Info("feeds stopped")
}
