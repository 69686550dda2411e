// Package dm unwraps incoming NIP-17 direct messages and gift-wraps replies.
package dm

import (
	"context"
	"errors"
	"fmt"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip59"
)

// ErrNotDirectMessage is returned when a gift wrap does not carry a kind:14 rumor.
var ErrNotDirectMessage = errors.New("gift wrap does not contain a direct message")

// Message is an unwrapped direct message.
type Message struct {
	SenderPubkeyHex string
	Content         string
	RumorID         string
}

// Publisher sends a signed event to relays.
type Publisher interface {
	Publish(ctx context.Context, event *nostr.Event) error
}

// Unwrap opens a kind:1059 gift wrap addressed to the keyer's identity.
func Unwrap(ctx context.Context, kr nostr.Keyer, event *nostr.Event) (*Message, error) {
	rumor, err := nip59.GiftUnwrap(*event, func(pubkey, ciphertext string) (string, error) {
		return kr.Decrypt(ctx, ciphertext, pubkey)
	})
	if err != nil {
		return nil, fmt.Errorf("unwrapping gift: %w", err)
	}
	if rumor.Kind != nostr.KindDirectMessage {
		return nil, fmt.Errorf("%w: kind %d", ErrNotDirectMessage, rumor.Kind)
	}

	return &Message{
		SenderPubkeyHex: rumor.PubKey,
		Content:         rumor.Content,
		RumorID:         rumor.ID,
	}, nil
}

// WrapResponse creates a NIP-17 gift-wrapped DM response.
// recipientPubkeyHex is the hex pubkey of the recipient.
// Returns a ready-to-publish kind:1059 gift-wrapped event.
func WrapResponse(ctx context.Context, kr nostr.Keyer, botPubkeyHex string, recipientPubkeyHex string, message string) (*nostr.Event, error) {
	rumor := nostr.Event{
		PubKey:    botPubkeyHex,
		CreatedAt: nostr.Now(),
		Kind:      nostr.KindDirectMessage,
		Tags: nostr.Tags{
			nostr.Tag{"p", recipientPubkeyHex},
		},
		Content: message,
	}

	// rumor -> seal (kind:13) -> gift wrap (kind:1059)
	giftWrap, err := nip59.GiftWrap(
		rumor,
		recipientPubkeyHex,
		func(plaintext string) (string, error) {
			return kr.Encrypt(ctx, plaintext, recipientPubkeyHex)
		},
		func(event *nostr.Event) error {
			return kr.SignEvent(ctx, event)
		},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("gift wrapping response: %w", err)
	}

	return &giftWrap, nil
}

// Reply wraps message for recipientPubkeyHex and publishes it.
func Reply(ctx context.Context, pub Publisher, kr nostr.Keyer, botPubkeyHex, recipientPubkeyHex, message string) error {
	wrapped, err := WrapResponse(ctx, kr, botPubkeyHex, recipientPubkeyHex, message)
	if err != nil {
		return err
	}
	if err := pub.Publish(ctx, wrapped); err != nil {
		return fmt.Errorf("publishing reply: %w", err)
	}
	return nil
}
