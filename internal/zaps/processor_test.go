package zaps

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/buildtall-systems/orderflow/internal/fsm"
	"github.com/buildtall-systems/orderflow/internal/memstore"
	"github.com/buildtall-systems/orderflow/internal/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// npub for senderPubkey
const testSenderNpub = "npub1mna04t4lvslqepghuj0p8tf9cc8wfft6pd04l3qp4k7tn5237h6sj6ru9w"

func setupService(t *testing.T) *order.Service {
	t.Helper()
	return order.NewService(memstore.New(), order.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestProcessZap_PaysOrder(t *testing.T) {
	ctx := context.Background()
	var token string
	table := fsm.DefaultTable(fsm.OnEnter(fsm.StatePaid, func(_ context.Context, hc fsm.HookContext) error {
		token = hc.Payload[fsm.PaymentConfirmationKey]
		return nil
	}))
	svc := order.NewService(memstore.New(), order.WithTable(table))

	o, err := svc.Create(ctx, time.Now())
	require.NoError(t, err)

	zap := &ValidatedZap{SenderNpub: testSenderNpub, AmountSats: 1000, ZapEventID: "zap-1", OrderID: o.ID}
	result, err := ProcessZap(ctx, svc, zap)
	require.NoError(t, err)

	assert.True(t, result.Applied)
	assert.Equal(t, fsm.StatePaid, result.State)
	assert.Contains(t, result.Message, testSenderNpub)
	assert.Equal(t, "zap-1", token)

	stored, err := svc.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, fsm.StatePaid, stored.State)
}

func TestProcessZap_SecondZapNotApplied(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	o, err := svc.Create(ctx, time.Now())
	require.NoError(t, err)

	first := &ValidatedZap{SenderNpub: testSenderNpub, AmountSats: 1000, ZapEventID: "zap-1", OrderID: o.ID}
	_, err = ProcessZap(ctx, svc, first)
	require.NoError(t, err)

	second := &ValidatedZap{SenderNpub: testSenderNpub, AmountSats: 1000, ZapEventID: "zap-2", OrderID: o.ID}
	result, err := ProcessZap(ctx, svc, second)
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Equal(t, fsm.StatePaid, result.State)
	assert.Contains(t, result.Message, "not applied")
}

func TestProcessZap_UnknownOrder(t *testing.T) {
	svc := setupService(t)

	zap := &ValidatedZap{SenderNpub: testSenderNpub, AmountSats: 21, ZapEventID: "zap-1", OrderID: "missing"}
	result, err := ProcessZap(context.Background(), svc, zap)
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Contains(t, result.Message, "unknown order missing")
}

func TestProcessZap_NoOrder(t *testing.T) {
	_, err := ProcessZap(context.Background(), setupService(t), &ValidatedZap{ZapEventID: "zap-1"})
	assert.ErrorIs(t, err, ErrNoOrder)
}

type failingPayer struct{ err error }

func (f failingPayer) Pay(context.Context, string, string) (fsm.State, error) { return "", f.err }

func TestProcessZap_StoreFailure(t *testing.T) {
	storeErr := errors.New("database locked")
	_, err := ProcessZap(context.Background(), failingPayer{err: storeErr}, &ValidatedZap{ZapEventID: "z", OrderID: "o"})
	assert.ErrorIs(t, err, storeErr)

	_, err = ProcessZap(context.Background(), failingPayer{err: order.ErrConcurrentModification}, &ValidatedZap{ZapEventID: "z", OrderID: "o"})
	assert.ErrorIs(t, err, order.ErrConcurrentModification)
}
