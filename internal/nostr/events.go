package nostr

import (
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/puzpuzpuz/xsync/v3"
)

// EventDeduplicator filters duplicate events that arrive from multiple relays.
// Events are deduplicated by ID and expired after a configurable TTL.
type EventDeduplicator struct {
	seen *xsync.MapOf[string, time.Time]
	ttl  time.Duration
	now  func() time.Time
}

// NewEventDeduplicator creates a deduplicator with the given TTL.
func NewEventDeduplicator(ttl time.Duration) *EventDeduplicator {
	return &EventDeduplicator{
		seen: xsync.NewMapOf[string, time.Time](),
		ttl:  ttl,
		now:  time.Now,
	}
}

// IsDuplicate returns true if this event ID has been seen before.
// If not a duplicate, marks the event as seen.
func (ed *EventDeduplicator) IsDuplicate(event *nostr.Event) bool {
	_, loaded := ed.seen.LoadOrStore(event.ID, ed.now())
	return loaded
}

// Cleanup removes entries older than TTL. Call periodically.
func (ed *EventDeduplicator) Cleanup() {
	cutoff := ed.now().Add(-ed.ttl)
	ed.seen.Range(func(id string, seenAt time.Time) bool {
		if seenAt.Before(cutoff) {
			ed.seen.Delete(id)
		}
		return true
	})
}

// Len reports how many event IDs are remembered.
func (ed *EventDeduplicator) Len() int {
	return ed.seen.Size()
}

// StartCleanupLoop runs cleanup at regular intervals until done is closed.
func (ed *EventDeduplicator) StartCleanupLoop(done <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ed.Cleanup()
		}
	}
}
