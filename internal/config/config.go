package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/spf13/viper"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Verbose   bool
	Log       LogConfig
	Database  DatabaseConfig
	Lifecycle LifecycleConfig
	Nostr     NostrConfig
	Admins    []string // npubs of admin users
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text or json
}

// DatabaseConfig holds database settings.
type DatabaseConfig struct {
	Driver string
	Path   string // sqlite file
	DSN    string // postgres connection string
}

// LifecycleConfig tunes how order transitions handle contention.
type LifecycleConfig struct {
	LockPerOrder  bool
	RetryAttempts uint64
}

// NostrConfig holds Nostr-related settings.
type NostrConfig struct {
	Relays      []string
	BotSecret   string // nsec or hex, only read by LoadWithSecrets
	ZapProvider string // pubkey of the LNURL provider signing zap receipts, hex after LoadWithSecrets

	BotSecretHex string
	BotPubkeyHex string
}

// Load reads configuration from Viper and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{
		Verbose: viper.GetBool("verbose"),
		Log: LogConfig{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
		},
		Database: DatabaseConfig{
			Driver: viper.GetString("database.driver"),
			Path:   viper.GetString("database.path"),
			DSN:    viper.GetString("database.dsn"),
		},
		Lifecycle: LifecycleConfig{
			LockPerOrder:  viper.GetBool("lifecycle.lock_per_order"),
			RetryAttempts: viper.GetUint64("lifecycle.retry_attempts"),
		},
		Nostr: NostrConfig{
			Relays:      viper.GetStringSlice("nostr.relays"),
			ZapProvider: viper.GetString("nostr.zap_provider"),
		},
		Admins: viper.GetStringSlice("admins"),
	}

	// Apply defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Verbose {
		cfg.Log.Level = "debug"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverSQLite
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "orderflow.db"
	}
	if len(cfg.Nostr.Relays) == 0 {
		cfg.Nostr.Relays = []string{"wss://relay.damus.io"}
	}

	switch cfg.Database.Driver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if cfg.Database.DSN == "" {
			return nil, errors.New("database.dsn is required for the postgres driver")
		}
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	switch cfg.Log.Format {
	case "text", "json":
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Log.Format)
	}

	return cfg, nil
}

// LoadWithSecrets is Load plus the bot key and the zap provider, which only
// the run command needs. Zap receipts are accepted only from the provider key.
func LoadWithSecrets() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	cfg.Nostr.BotSecret = viper.GetString("nostr.bot_secret")
	if cfg.Nostr.BotSecret == "" {
		return nil, errors.New("nostr.bot_secret is required")
	}

	secretHex, err := DecodeSecret(cfg.Nostr.BotSecret)
	if err != nil {
		return nil, err
	}
	pubkey, err := nostr.GetPublicKey(secretHex)
	if err != nil {
		return nil, fmt.Errorf("deriving bot pubkey: %w", err)
	}

	if cfg.Nostr.ZapProvider == "" {
		return nil, errors.New("nostr.zap_provider is required")
	}
	provider, err := DecodePubkey(cfg.Nostr.ZapProvider)
	if err != nil {
		return nil, fmt.Errorf("nostr.zap_provider: %w", err)
	}

	cfg.Nostr.BotSecretHex = secretHex
	cfg.Nostr.BotPubkeyHex = pubkey
	cfg.Nostr.ZapProvider = provider
	return cfg, nil
}

// DecodePubkey accepts an npub or a 64 character hex key and returns hex.
func DecodePubkey(pubkey string) (string, error) {
	pubkey = strings.TrimSpace(pubkey)
	if strings.HasPrefix(pubkey, "npub1") {
		prefix, value, err := nip19.Decode(pubkey)
		if err != nil {
			return "", fmt.Errorf("decoding npub: %w", err)
		}
		if prefix != "npub" {
			return "", fmt.Errorf("expected npub, got %s", prefix)
		}
		s, ok := value.(string)
		if !ok {
			return "", errors.New("decoding npub: unexpected value")
		}
		return s, nil
	}

	if len(pubkey) != 64 {
		return "", errors.New("pubkey must be an npub or 64 hex characters")
	}
	if _, err := hex.DecodeString(pubkey); err != nil {
		return "", fmt.Errorf("pubkey is not hex: %w", err)
	}
	return strings.ToLower(pubkey), nil
}

// DecodeSecret accepts an nsec or a 64 character hex key and returns hex.
func DecodeSecret(secret string) (string, error) {
	secret = strings.TrimSpace(secret)
	if strings.HasPrefix(secret, "nsec1") {
		prefix, value, err := nip19.Decode(secret)
		if err != nil {
			return "", fmt.Errorf("decoding nsec: %w", err)
		}
		if prefix != "nsec" {
			return "", fmt.Errorf("expected nsec, got %s", prefix)
		}
		s, ok := value.(string)
		if !ok {
			return "", errors.New("decoding nsec: unexpected value")
		}
		return s, nil
	}

	if len(secret) != 64 {
		return "", errors.New("bot secret must be an nsec or 64 hex characters")
	}
	if _, err := hex.DecodeString(secret); err != nil {
		return "", fmt.Errorf("bot secret is not hex: %w", err)
	}
	return strings.ToLower(secret), nil
}
