// Package zaps validates NIP-57 zap receipts and turns the ones that name an
// order into payments.
package zaps

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

// OrderTag is the zap request tag carrying the order being paid.
const OrderTag = "order"

// ValidatedZap contains extracted information from a valid zap receipt.
type ValidatedZap struct {
	SenderNpub string // Npub of the zapper
	AmountSats int64  // Amount in sats (from bolt11)
	ZapEventID string // Event ID of the zap receipt
	OrderID    string // Empty when the zap request names no order
}

// ErrInvalidZapReceipt indicates the zap receipt is malformed or invalid.
var ErrInvalidZapReceipt = errors.New("invalid zap receipt")

// ErrUnauthorizedZapProvider indicates the zap was signed by an unexpected key.
var ErrUnauthorizedZapProvider = errors.New("unauthorized zap provider")

// ValidateZapReceipt validates a NIP-57 zap receipt and extracts payment info.
// lnurlPubkeyHex is the expected LNURL provider's pubkey that should sign zap receipts.
// An empty lnurlPubkeyHex rejects every receipt: anyone can sign a kind 9735 event.
func ValidateZapReceipt(event *nostr.Event, lnurlPubkeyHex string) (*ValidatedZap, error) {
	if event.Kind != nostr.KindZap {
		return nil, fmt.Errorf("%w: expected kind %d, got %d", ErrInvalidZapReceipt, nostr.KindZap, event.Kind)
	}

	ok, err := event.CheckSignature()
	if err != nil || !ok {
		return nil, fmt.Errorf("%w: invalid signature", ErrInvalidZapReceipt)
	}

	if lnurlPubkeyHex == "" {
		return nil, fmt.Errorf("%w: no provider configured", ErrUnauthorizedZapProvider)
	}
	if event.PubKey != lnurlPubkeyHex {
		expectedNpub, _ := nip19.EncodePublicKey(lnurlPubkeyHex)
		gotNpub, _ := nip19.EncodePublicKey(event.PubKey)
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrUnauthorizedZapProvider, expectedNpub, gotNpub)
	}

	zapRequest, err := zapRequestFrom(event)
	if err != nil {
		return nil, err
	}

	bolt11Tag := event.Tags.Find("bolt11")
	if len(bolt11Tag) < 2 {
		return nil, fmt.Errorf("%w: missing bolt11 tag", ErrInvalidZapReceipt)
	}

	amountMsats, err := extractAmountFromBolt11(bolt11Tag[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidZapReceipt, err)
	}

	senderNpub, err := nip19.EncodePublicKey(zapRequest.PubKey)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode sender npub: %v", ErrInvalidZapReceipt, err)
	}

	var orderID string
	if tag := zapRequest.Tags.Find(OrderTag); len(tag) >= 2 {
		orderID = strings.TrimSpace(tag[1])
	}

	return &ValidatedZap{
		SenderNpub: senderNpub,
		AmountSats: amountMsats / 1000,
		ZapEventID: event.ID,
		OrderID:    orderID,
	}, nil
}

// zapRequestFrom decodes the kind:9734 request embedded in the receipt's
// description tag.
func zapRequestFrom(receipt *nostr.Event) (*nostr.Event, error) {
	descTag := receipt.Tags.Find("description")
	if len(descTag) < 2 {
		return nil, fmt.Errorf("%w: missing description tag", ErrInvalidZapReceipt)
	}

	var req nostr.Event
	if err := json.Unmarshal([]byte(descTag[1]), &req); err != nil {
		return nil, fmt.Errorf("%w: invalid zap request JSON: %v", ErrInvalidZapReceipt, err)
	}
	if req.Kind != nostr.KindZapRequest {
		return nil, fmt.Errorf("%w: zap request kind is %d, expected %d", ErrInvalidZapReceipt, req.Kind, nostr.KindZapRequest)
	}
	if req.PubKey == "" {
		return nil, fmt.Errorf("%w: zap request missing pubkey", ErrInvalidZapReceipt)
	}
	return &req, nil
}

// msatsPerUnit maps BOLT11 amount multipliers to millisats per unit.
// Pico amounts are below one millisat and round to zero.
var msatsPerUnit = map[byte]int64{
	'm': 100_000_000,
	'u': 100_000,
	'n': 100,
	'p': 0,
}

const msatsPerBTC = 100_000_000_000

// extractAmountFromBolt11 extracts the amount in millisats from a BOLT11 invoice.
// BOLT11 format: ln<network><amount>[multiplier]1<data>
func extractAmountFromBolt11(invoice string) (int64, error) {
	invoice = strings.ToLower(invoice)

	var amountStart int
	switch {
	case strings.HasPrefix(invoice, "lnbcrt"):
		amountStart = 6
	case strings.HasPrefix(invoice, "lnbc"), strings.HasPrefix(invoice, "lntb"):
		amountStart = 4
	default:
		return 0, errors.New("unrecognized invoice prefix")
	}

	// bech32 data never contains '1', so the last one is the separator.
	sepIndex := strings.LastIndex(invoice, "1")
	if sepIndex <= amountStart {
		return 0, errors.New("invalid invoice format: no separator found")
	}

	amountPart := invoice[amountStart:sepIndex]
	if amountPart == "" {
		return 0, errors.New("no amount in invoice")
	}

	numStr, multiplier := amountPart, int64(msatsPerBTC)
	last := amountPart[len(amountPart)-1]
	if last < '0' || last > '9' {
		m, ok := msatsPerUnit[last]
		if !ok {
			return 0, fmt.Errorf("unknown multiplier: %c", last)
		}
		numStr, multiplier = amountPart[:len(amountPart)-1], m
	}

	amount, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount number: %v", err)
	}

	return amount * multiplier, nil
}
