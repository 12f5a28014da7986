// Package events implements the in-process publish/subscribe bus that fans
// task, notification and message change events out to live stream
// subscribers, keyed by user id.
package events

import (
	"context"
	"sync"

	"github.com/dkurganov/taskflow/internal/logging"
	"github.com/dkurganov/taskflow/internal/server/models"
)

// Subscription is one delivery channel registered for a user. It is owned by
// the stream connection that created it and must be released with
// Bus.Unsubscribe when the connection ends.
type Subscription struct {
	userID string
	ch     chan models.Event
	closed bool
}

// Events returns the delivery channel. It is closed when the subscription is
// removed, either by the consumer or by a forced revocation.
func (s *Subscription) Events() <-chan models.Event {
	return s.ch
}

// UserID returns the user the subscription delivers for.
func (s *Subscription) UserID() string {
	return s.userID
}

// Bus routes published events to every live subscription of the target user.
// The registry is a lock-protected map; publishers send under the read lock
// with a non-blocking select, and channel closes happen under the write
// lock, so a send can never race a close.
type Bus struct {
	mu         sync.RWMutex
	subs       map[string]map[*Subscription]struct{}
	bufferSize int
	logger     logging.Logger
}

// NewBus builds a Bus whose subscriptions buffer up to bufferSize events.
func NewBus(bufferSize int, logger logging.Logger) *Bus {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Bus{
		subs:       make(map[string]map[*Subscription]struct{}),
		bufferSize: bufferSize,
		logger:     logger.With("module", "event_bus"),
	}
}

// Subscribe registers a new delivery channel for userID.
func (b *Bus) Subscribe(userID string) *Subscription {
	sub := &Subscription{
		userID: userID,
		ch:     make(chan models.Event, b.bufferSize),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.subs[userID]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[userID] = set
	}
	set[sub] = struct{}{}

	return sub
}

// Publish delivers ev to every live subscription of ev.UserID. Delivery is
// best-effort and at-most-once: a subscriber whose buffer is full has the
// event dropped so a slow consumer can never block the publisher. Events
// published sequentially for one user arrive in publish order on any
// subscription that receives them.
func (b *Bus) Publish(ctx context.Context, ev models.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[ev.UserID] {
		select {
		case sub.ch <- ev:
		default:
			b.logger.Warn(ctx, "subscriber buffer full, dropping event",
				"user_id", ev.UserID, "event", ev.Name())
		}
	}
}

// Unsubscribe removes the subscription and closes its channel. It is
// idempotent and safe to call from the consumer side or externally.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

// CloseAllForUser terminates every live subscription for userID. Used on
// logout and on refresh-token reuse detection.
func (b *Bus) CloseAllForUser(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs[userID] {
		b.removeLocked(sub)
	}
}

func (b *Bus) removeLocked(sub *Subscription) {
	if sub.closed {
		return
	}
	sub.closed = true

	if set, ok := b.subs[sub.userID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, sub.userID)
		}
	}
	close(sub.ch)
}
