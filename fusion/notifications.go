package fusion

import (
	"context"
	"slices"

	"github.com/etnz/delta"
)

// ReadMarker persists the read flag of a notification.
type ReadMarker interface {
	MarkRead(ctx context.Context, id int64) error
}

// SetNotifications replaces the notifications.
//
// Notifications marked read locally stay read until the platform reports them
// read, or the write fails.
func (b *Board) SetNotifications(n []delta.Notification) {
	n = slices.Clone(n)
	b.readMu.Lock()
	for _, x := range n {
		if x.Read {
			delete(b.pending, x.ID)
		}
	}
	b.readMu.Unlock()
	b.notifications.set(n)
	b.notify(TopicNotifications)
}

// Notifications returns the notifications with the local read flags applied.
func (b *Board) Notifications() Entry[[]delta.Notification] {
	e := b.notifications.get()
	b.readMu.Lock()
	defer b.readMu.Unlock()
	if len(b.pending) == 0 {
		return e
	}
	e.Value = markRead(e.Value, b.pending)
	return e
}

// MarkRead flips the read flag of notification id immediately and writes it
// to the platform in the background.
//
// If the write fails the flag is not rolled back: it stays read until the
// next refresh returns the platform state. The returned channel receives the
// write outcome.
func (b *Board) MarkRead(ctx context.Context, id int64, m ReadMarker) <-chan error {
	b.readMu.Lock()
	b.pending[id] = true
	b.readMu.Unlock()
	b.notify(TopicNotifications)

	done := make(chan error, 1)
	ctx = context.WithoutCancel(ctx)
	go func() {
		err := m.MarkRead(ctx, id)
		if err != nil {
			// keep the flip in the current value, the next refresh decides.
			b.notifications.update(func(n []delta.Notification) []delta.Notification {
				return markRead(n, map[int64]bool{id: true})
			})
			b.readMu.Lock()
			delete(b.pending, id)
			b.readMu.Unlock()
		}
		done <- err
	}()
	return done
}

// markRead returns a copy of n with the ids in read marked as read.
func markRead(n []delta.Notification, read map[int64]bool) []delta.Notification {
	out := slices.Clone(n)
	for i := range out {
		if read[out[i].ID] {
			out[i].Read = true
		}
	}
	return out
}
