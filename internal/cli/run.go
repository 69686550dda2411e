package cli

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/buildtall-systems/orderflow/internal/commands"
	"github.com/buildtall-systems/orderflow/internal/config"
	"github.com/buildtall-systems/orderflow/internal/nostr"
	"github.com/nbd-wtf/go-nostr/keyer"
	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the orderflow Nostr bot",
	Long:  `Connects to relays, answers order commands sent by DM and pays orders from zap receipts.`,
	RunE:  runBot,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithSecrets()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger(cfg.Log, cmd.ErrOrStderr())

	botNpub, _ := nip19.EncodePublicKey(cfg.Nostr.BotPubkeyHex)
	logger.Info("orderflow starting",
		slog.String("bot", botNpub),
		slog.Any("relays", cfg.Nostr.Relays),
		slog.String("driver", cfg.Database.Driver),
	)

	kr, err := keyer.NewPlainKeySigner(cfg.Nostr.BotSecretHex)
	if err != nil {
		return fmt.Errorf("creating keyer: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	relayMgr := nostr.NewRelayManager(cfg.Nostr.Relays, cfg.Nostr.BotPubkeyHex, logger)
	if err := relayMgr.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to relays: %w", err)
	}
	defer relayMgr.Close()

	b := &bot{
		svc:          newService(cfg, store, logger),
		kr:           kr,
		pub:          relayMgr,
		botPubkeyHex: cfg.Nostr.BotPubkeyHex,
		zapProvider:  cfg.Nostr.ZapProvider,
		execCfg:      commands.ExecuteConfig{Admins: cfg.Admins},
		logger:       logger,
	}

	logger.Info("orderflow running, waiting for events")
	return b.serve(ctx, relayMgr.DMEvents(), relayMgr.ZapEvents())
}
