// Package realtime is the in-process fan-out bus for committed operations.
// Topics are keyed by vault id. Publishers call Publish after their insert
// transaction commits, in seq order; each subscription receives events in
// arrival order through a bounded buffer. Delivery is best-effort: a
// subscriber that cannot keep up is marked dropped rather than ever
// blocking a publisher, and must reconcile through a pull loop after
// reconnecting.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/obsync-io/obsync/internal/logging"
)

// Event is one committed operation as seen by subscribers.
type Event struct {
	VaultID   string
	Seq       int64
	OpType    string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// subscriberBufferSize is the per-subscriber channel capacity. It absorbs
// short write stalls (a websocket flush, a GC pause); a subscriber that
// falls further behind than this is dropped.
const subscriberBufferSize = 64

// Subscription is one registered consumer of a vault's events.
//
// Events is never closed; consumers stop reading when Dropped fires or
// when their own connection ends, and must call Close to deregister.
type Subscription struct {
	vaultID string
	bus     *Bus

	events  chan Event
	dropped chan struct{}

	dropOnce  sync.Once
	closeOnce sync.Once
}

// Events yields published events in arrival order.
func (s *Subscription) Events() <-chan Event { return s.events }

// Dropped is closed when the subscription fell behind (buffer full) or the
// bus shut down. After it fires no further events arrive.
func (s *Subscription) Dropped() <-chan struct{} { return s.dropped }

// Close deregisters the subscription. Safe to call multiple times and
// concurrently with Publish.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.bus.remove(s)
	})
}

func (s *Subscription) markDropped() {
	s.dropOnce.Do(func() {
		close(s.dropped)
	})
}

// Bus fans events out to per-vault subscriber sets. The registry is a
// shared mutable structure guarded by a reader-writer lock: Publish takes
// the read side and performs only non-blocking channel sends under it.
type Bus struct {
	logger logging.Logger

	mu          sync.RWMutex
	subscribers map[string][]*Subscription
	closed      bool
}

func NewBus(logger logging.Logger) *Bus {
	return &Bus{
		logger:      logger.With("module", "realtime"),
		subscribers: make(map[string][]*Subscription),
	}
}

// Subscribe registers a consumer for the vault's future events. Events
// published after Subscribe returns are buffered even before the caller
// starts reading, which lets the caller replay a backlog first without a
// gap. On a closed bus the returned subscription is already dropped.
func (b *Bus) Subscribe(vaultID string) *Subscription {
	sub := &Subscription{
		vaultID: vaultID,
		bus:     b,
		events:  make(chan Event, subscriberBufferSize),
		dropped: make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		sub.markDropped()
		return sub
	}

	b.subscribers[vaultID] = append(b.subscribers[vaultID], sub)
	return sub
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[sub.vaultID]
	for i, existing := range subs {
		if existing == sub {
			b.subscribers[sub.vaultID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subscribers[sub.vaultID]) == 0 {
		delete(b.subscribers, sub.vaultID)
	}
}

// Publish delivers the event to every live subscriber of its vault. Sends
// never block: a full buffer marks the subscription dropped and the event
// (and all later ones) are withheld from it. At-most-once per subscription.
func (b *Bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers[event.VaultID] {
		select {
		case <-sub.dropped:
			continue
		default:
		}

		select {
		case sub.events <- event:
		default:
			sub.markDropped()
			b.logger.Warn(ctx, "subscriber buffer full, dropping",
				"vault_id", event.VaultID, "seq", event.Seq)
		}
	}
}

// SubscriberCount reports the number of live subscriptions for a vault.
func (b *Bus) SubscriberCount(vaultID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[vaultID])
}

// Close drops every subscription and rejects future ones. Called once at
// shutdown.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for vaultID, subs := range b.subscribers {
		for _, sub := range subs {
			sub.markDropped()
		}
		delete(b.subscribers, vaultID)
	}
}
