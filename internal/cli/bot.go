package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/buildtall-systems/orderflow/internal/commands"
	"github.com/buildtall-systems/orderflow/internal/dm"
	"github.com/buildtall-systems/orderflow/internal/zaps"
	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

// bot answers DM commands and applies zap payments.
type bot struct {
	svc          commands.Lifecycle
	kr           nostr.Keyer
	pub          dm.Publisher
	botPubkeyHex string
	zapProvider  string
	execCfg      commands.ExecuteConfig
	logger       *slog.Logger
}

// serve handles events until ctx is done or a channel closes.
func (b *bot) serve(ctx context.Context, dms, zapReceipts <-chan *nostr.Event) error {
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("shutting down")
			return nil

		case event, ok := <-dms:
			if !ok {
				return nil
			}
			if event != nil {
				b.handleDM(ctx, event)
			}

		case event, ok := <-zapReceipts:
			if !ok {
				return nil
			}
			if event != nil {
				b.handleZap(ctx, event)
			}
		}
	}
}

func (b *bot) handleDM(ctx context.Context, event *nostr.Event) {
	msg, err := dm.Unwrap(ctx, b.kr, event)
	if err != nil {
		b.logger.Warn("failed to unwrap DM", slog.String("event_id", event.ID), slog.Any("error", err))
		return
	}

	senderNpub, err := nip19.EncodePublicKey(msg.SenderPubkeyHex)
	if err != nil {
		b.logger.Warn("invalid sender pubkey", slog.Any("error", err))
		return
	}
	logger := b.logger.With(slog.String("sender", senderNpub))

	cmd := commands.Parse(msg.Content)
	if cmd == nil {
		logger.Debug("empty message, ignoring")
		return
	}

	var result commands.Result
	if !cmd.IsValid() {
		logger.Info("unknown command", slog.String("command", cmd.Name))
		result = commands.HelpCmd(commands.IsAdmin(senderNpub, b.execCfg.Admins))
	} else {
		logger.Info("executing command", slog.String("command", cmd.Name), slog.Any("args", cmd.Args))
		result = commands.Execute(ctx, b.svc, cmd, senderNpub, b.execCfg)
	}

	reply := result.Message
	if result.Error != nil {
		if errors.Is(result.Error, commands.ErrAdminRequired) {
			logger.Warn("permission denied", slog.String("command", cmd.Name))
		} else {
			logger.Info("command failed", slog.String("command", cmd.Name), slog.Any("error", result.Error))
		}
		reply = "Error: " + result.Error.Error()
	}

	if err := dm.Reply(ctx, b.pub, b.kr, b.botPubkeyHex, msg.SenderPubkeyHex, reply); err != nil {
		logger.Error("failed to send reply", slog.Any("error", err))
	}
}

func (b *bot) handleZap(ctx context.Context, event *nostr.Event) {
	zap, err := zaps.ValidateZapReceipt(event, b.zapProvider)
	if err != nil {
		b.logger.Warn("rejected zap receipt", slog.String("event_id", event.ID), slog.Any("error", err))
		return
	}

	logger := b.logger.With(slog.String("sender", zap.SenderNpub), slog.Int64("sats", zap.AmountSats))

	result, err := zaps.ProcessZap(ctx, b.svc, zap)
	if errors.Is(err, zaps.ErrNoOrder) {
		logger.Info("zap without order tag, ignoring")
		return
	}
	if err != nil {
		logger.Error("processing zap", slog.String("order_id", zap.OrderID), slog.Any("error", err))
		return
	}

	logger.Info(result.Message, slog.String("order_id", result.OrderID), slog.Bool("applied", result.Applied))

	_, senderHex, err := nip19.Decode(zap.SenderNpub)
	if err != nil {
		return
	}
	if hex, ok := senderHex.(string); ok {
		if err := dm.Reply(ctx, b.pub, b.kr, b.botPubkeyHex, hex, result.Message); err != nil {
			logger.Error("failed to send zap receipt reply", slog.Any("error", err))
		}
	}
}
