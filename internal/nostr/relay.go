// Package nostr connects to relays and feeds gift-wrapped DMs and zap receipts
// addressed to the bot into channels.
package nostr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sethvargo/go-retry"
	"github.com/sourcegraph/conc"
)

const (
	dedupTTL        = 10 * time.Minute
	minBackoff      = time.Second
	maxBackoff      = 30 * time.Second
	eventBufferSize = 100
)

// RelayManager handles connections to multiple Nostr relays and manages subscriptions.
type RelayManager struct {
	relayURLs    []string
	botPubkeyHex string
	logger       *slog.Logger
	dedup        *EventDeduplicator
	relays       []*nostr.Relay
	mu           sync.RWMutex

	// Event channels for consumers
	dmEvents  chan *nostr.Event // kind:1059 gift-wrapped DMs
	zapEvents chan *nostr.Event // kind:9735 zap receipts

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup
}

// NewRelayManager creates a new relay manager for the given relay URLs.
func NewRelayManager(relayURLs []string, botPubkeyHex string, logger *slog.Logger) *RelayManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &RelayManager{
		relayURLs:    relayURLs,
		botPubkeyHex: botPubkeyHex,
		logger:       logger,
		dedup:        NewEventDeduplicator(dedupTTL),
		dmEvents:     make(chan *nostr.Event, eventBufferSize),
		zapEvents:    make(chan *nostr.Event, eventBufferSize),
	}
}

// Connect establishes connections to all configured relays and starts subscriptions.
func (rm *RelayManager) Connect(ctx context.Context) error {
	rm.ctx, rm.cancel = context.WithCancel(ctx)

	var connected int
	for _, url := range rm.relayURLs {
		relay, err := nostr.RelayConnect(rm.ctx, url)
		if err != nil {
			rm.logger.Warn("relay connect failed", slog.String("relay", url), slog.Any("error", err))
			continue
		}

		rm.mu.Lock()
		rm.relays = append(rm.relays, relay)
		rm.mu.Unlock()

		connected++
		rm.logger.Info("relay connected", slog.String("relay", url))

		rm.wg.Go(func() { rm.subscribeRelay(relay) })
	}

	if connected == 0 {
		return errors.New("failed to connect to any relays")
	}

	rm.wg.Go(func() { rm.dedup.StartCleanupLoop(rm.ctx.Done(), dedupTTL) })

	rm.logger.Info("relays ready", slog.Int("connected", connected), slog.Int("configured", len(rm.relayURLs)))
	return nil
}

func (rm *RelayManager) filters() nostr.Filters {
	return nostr.Filters{
		{
			Kinds: []int{nostr.KindGiftWrap},
			Tags:  nostr.TagMap{"p": []string{rm.botPubkeyHex}},
		},
		{
			Kinds: []int{nostr.KindZap},
			Tags:  nostr.TagMap{"p": []string{rm.botPubkeyHex}},
		},
	}
}

// subscribeRelay manages subscriptions for a single relay with reconnection logic.
func (rm *RelayManager) subscribeRelay(relay *nostr.Relay) {
	backoff := newBackoff()

	for {
		if rm.ctx.Err() != nil {
			return
		}

		sub, err := relay.Subscribe(rm.ctx, rm.filters())
		if err != nil {
			rm.logger.Warn("subscription failed", slog.String("relay", relay.URL), slog.Any("error", err))
			if !rm.reconnect(relay, &backoff) {
				return
			}
			continue
		}

		backoff = newBackoff()
		rm.logger.Debug("subscribed", slog.String("relay", relay.URL))

		if !rm.drain(sub, relay, &backoff) {
			return
		}
	}
}

// drain routes events until the subscription ends. It returns false once the
// manager is shutting down.
func (rm *RelayManager) drain(sub *nostr.Subscription, relay *nostr.Relay, backoff *retry.Backoff) bool {
	for {
		select {
		case <-rm.ctx.Done():
			sub.Unsub()
			return false

		case event, ok := <-sub.Events:
			if !ok {
				rm.logger.Info("subscription closed, reconnecting", slog.String("relay", relay.URL))
				return rm.reconnect(relay, backoff)
			}
			rm.routeEvent(event)
		}
	}
}

func newBackoff() retry.Backoff {
	return retry.WithCappedDuration(maxBackoff, retry.NewExponential(minBackoff))
}

// reconnect waits out the next backoff step and dials the relay again.
// Returns false if the context is done.
func (rm *RelayManager) reconnect(relay *nostr.Relay, backoff *retry.Backoff) bool {
	wait, _ := (*backoff).Next()

	select {
	case <-rm.ctx.Done():
		return false
	case <-time.After(wait):
	}

	if err := relay.Connect(rm.ctx); err != nil {
		rm.logger.Warn("relay reconnect failed", slog.String("relay", relay.URL), slog.Any("error", err))
		return true
	}

	rm.logger.Info("relay reconnected", slog.String("relay", relay.URL))
	*backoff = newBackoff()
	return true
}

// routeEvent sends events to appropriate channels based on kind, dropping
// copies already delivered by another relay.
func (rm *RelayManager) routeEvent(event *nostr.Event) {
	if rm.dedup.IsDuplicate(event) {
		return
	}

	var ch chan *nostr.Event
	switch event.Kind {
	case nostr.KindGiftWrap:
		ch = rm.dmEvents
	case nostr.KindZap:
		ch = rm.zapEvents
	default:
		return
	}

	select {
	case ch <- event:
	default:
		rm.logger.Warn("event channel full, dropping event", slog.String("event_id", event.ID), slog.Int("kind", event.Kind))
	}
}

// DMEvents returns a channel of gift-wrapped DM events (kind:1059).
func (rm *RelayManager) DMEvents() <-chan *nostr.Event {
	return rm.dmEvents
}

// ZapEvents returns a channel of zap receipt events (kind:9735).
func (rm *RelayManager) ZapEvents() <-chan *nostr.Event {
	return rm.zapEvents
}

// Publish sends an event to all connected relays.
func (rm *RelayManager) Publish(ctx context.Context, event *nostr.Event) error {
	rm.mu.RLock()
	relays := make([]*nostr.Relay, len(rm.relays))
	copy(relays, rm.relays)
	rm.mu.RUnlock()

	var lastErr error
	var published int

	for _, relay := range relays {
		if err := relay.Publish(ctx, *event); err != nil {
			lastErr = err
			rm.logger.Warn("publish failed", slog.String("relay", relay.URL), slog.Any("error", err))
			continue
		}
		published++
	}

	if published == 0 {
		return fmt.Errorf("failed to publish to any relay: %w", lastErr)
	}

	rm.logger.Debug("event published", slog.String("event_id", event.ID), slog.Int("relays", published))
	return nil
}

// Close gracefully shuts down all relay connections.
func (rm *RelayManager) Close() {
	if rm.cancel != nil {
		rm.cancel()
	}

	rm.wg.Wait()

	rm.mu.Lock()
	for _, relay := range rm.relays {
		_ = relay.Close()
	}
	rm.relays = nil
	rm.mu.Unlock()

	close(rm.dmEvents)
	close(rm.zapEvents)

	rm.logger.Info("relay manager closed")
}
