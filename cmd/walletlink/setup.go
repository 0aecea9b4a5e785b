package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	internalAws "github.com/Layr-Labs/walletlink-go/internal/aws"
	"github.com/Layr-Labs/walletlink-go/pkg/address"
	"github.com/Layr-Labs/walletlink-go/pkg/config"
	"github.com/Layr-Labs/walletlink-go/pkg/journal"
	badgerJournal "github.com/Layr-Labs/walletlink-go/pkg/journal/badger"
	"github.com/Layr-Labs/walletlink-go/pkg/journal/memory"
	redisJournal "github.com/Layr-Labs/walletlink-go/pkg/journal/redis"
	"github.com/Layr-Labs/walletlink-go/pkg/keystore"
	"github.com/Layr-Labs/walletlink-go/pkg/logger"
	"github.com/Layr-Labs/walletlink-go/pkg/signer"
	"github.com/Layr-Labs/walletlink-go/pkg/signer/awsKmsSigner"
	"github.com/Layr-Labs/walletlink-go/pkg/signer/localSigner"
	"github.com/Layr-Labs/walletlink-go/pkg/signer/rpcSigner"
	"github.com/Layr-Labs/walletlink-go/pkg/transport"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const (
	openerStdout  = "stdout"
	openerBrowser = "browser"
	openerBridge  = "bridge"
)

// parseConfig reads every flag known to the invoked command into a config.
// Flags the command does not define keep their zero value.
func parseConfig(c *cli.Context) *config.WalletLinkConfig {
	cfg := config.NewDefaultConfig()
	cfg.Scheme = c.String("scheme")
	cfg.CallbackScheme = c.String("callback-scheme")
	cfg.Debug = c.Bool("debug")

	if v := c.String("signer"); v != "" {
		cfg.Signer.Type = config.SignerType(v)
	}
	cfg.Signer.PrivateKeys = splitKeys(c.StringSlice("private-key"))
	cfg.Signer.KeystoreDir = c.String("keystore-dir")
	cfg.Signer.Password = c.String("keystore-password")
	cfg.Signer.DefaultAccount = c.String("default-account")
	cfg.Signer.KMSKeyId = c.String("kms-key-id")
	cfg.Signer.AWSRegion = c.String("aws-region")
	cfg.Signer.RPCEndpoint = c.String("rpc-endpoint")
	cfg.Signer.ChainID = c.Uint64("chain-id")

	if v := c.String("journal"); v != "" {
		cfg.Journal.Type = config.JournalType(v)
	}
	cfg.Journal.BadgerPath = c.String("badger-path")
	cfg.Journal.Redis = config.RedisConfig{
		Address:  c.String("redis-address"),
		Password: c.String("redis-password"),
		DB:       c.Int("redis-db"),
	}

	if v := c.String("bridge-host"); v != "" {
		cfg.Bridge.Host = v
	}
	if v := c.Int("bridge-port"); v != 0 {
		cfg.Bridge.Port = v
	}
	cfg.Bridge.RateLimit = c.Float64("rate-limit")
	cfg.Bridge.Burst = c.Int("burst")
	return cfg
}

// splitKeys accepts keys passed either repeated or comma separated through the environment
func splitKeys(values []string) []string {
	var keys []string
	for _, v := range values {
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
	}
	return keys
}

func newLogger(cfg *config.WalletLinkConfig) (*zap.Logger, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return l, nil
}

// buildSigner constructs the configured signing backend. The returned cleanup
// function is never nil.
func buildSigner(ctx context.Context, cfg *config.SignerConfig, l *zap.Logger) (signer.ISigner, func(), error) {
	noop := func() {}
	chainID := cfg.ChainIDBig()

	switch cfg.Type {
	case config.SignerTypeLocal:
		ks := keystore.NewKeyStore()
		for i, key := range cfg.PrivateKeys {
			if _, err := ks.AddHexKey(key); err != nil {
				return nil, noop, fmt.Errorf("invalid private key at position %d: %w", i, err)
			}
		}
		if err := applyDefaultAccount(ks, cfg.DefaultAccount); err != nil {
			return nil, noop, err
		}
		l.Sugar().Infow("Using local signer", "accounts", ks.Accounts(), "chainId", chainID)
		return localSigner.NewEthereumSigner(ks, chainID, l), noop, nil

	case config.SignerTypeKeystore:
		password := cfg.Password
		if password == "" {
			p, err := promptPassword("Keystore password: ")
			if err != nil {
				return nil, noop, err
			}
			password = p
		}
		ks := keystore.NewKeyStore()
		accounts, err := ks.ImportKeyDir(cfg.KeystoreDir, password)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to import keystore: %w", err)
		}
		if len(accounts) == 0 {
			return nil, noop, fmt.Errorf("no key files found in %s", cfg.KeystoreDir)
		}
		if err := applyDefaultAccount(ks, cfg.DefaultAccount); err != nil {
			return nil, noop, err
		}
		l.Sugar().Infow("Using keystore signer", "dir", cfg.KeystoreDir, "accounts", accounts, "chainId", chainID)
		return localSigner.NewEthereumSigner(ks, chainID, l), noop, nil

	case config.SignerTypeKMS:
		awsCfg, err := internalAws.LoadAWSConfig(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to load AWS config: %w", err)
		}
		identity, err := internalAws.GetCallerIdentity(ctx, awsCfg)
		if err != nil {
			l.Sugar().Warnw("Failed to get AWS caller identity", "error", err)
		} else {
			l.Sugar().Infow("Using AWS identity", "arn", deref(identity.Arn), "account", deref(identity.Account))
		}
		l.Sugar().Infow("Using KMS signer", "keyId", cfg.KMSKeyId, "region", awsCfg.Region, "chainId", chainID)
		return awsKmsSigner.NewEthereumSigner(awsCfg, cfg.KMSKeyId, chainID, l), noop, nil

	case config.SignerTypeRPC:
		opts := &rpcSigner.Options{ChainID: chainID}
		if cfg.DefaultAccount != "" {
			from, err := address.Parse(cfg.DefaultAccount)
			if err != nil {
				return nil, noop, fmt.Errorf("invalid default account: %w", err)
			}
			opts.From = &from
		}
		s, err := rpcSigner.NewRPCSigner(ctx, cfg.RPCEndpoint, opts, l)
		if err != nil {
			return nil, noop, err
		}
		l.Sugar().Infow("Using remote signer", "endpoint", cfg.RPCEndpoint, "chainId", chainID)
		return s, s.Close, nil

	default:
		return nil, noop, fmt.Errorf("unsupported signer type: %s", cfg.Type)
	}
}

func applyDefaultAccount(ks *keystore.KeyStore, account string) error {
	if account == "" {
		return nil
	}
	addr, err := address.Parse(account)
	if err != nil {
		return fmt.Errorf("invalid default account: %w", err)
	}
	return ks.SetDefault(addr)
}

func promptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("keystore password is required")
	}
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

// buildJournal returns nil when journaling is disabled
func buildJournal(cfg *config.JournalConfig, l *zap.Logger) (journal.IJournal, error) {
	switch cfg.Type {
	case "", config.JournalTypeNone:
		return nil, nil
	case config.JournalTypeMemory:
		return memory.NewMemoryJournal(), nil
	case config.JournalTypeBadger:
		return badgerJournal.NewBadgerJournal(cfg.BadgerPath, l)
	case config.JournalTypeRedis:
		return redisJournal.NewRedisJournal(&redisJournal.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, l)
	default:
		return nil, fmt.Errorf("unsupported journal type: %s", cfg.Type)
	}
}

func buildOpener(kind string, bridgeURL string) (transport.IOpener, error) {
	switch kind {
	case "", openerStdout:
		return transport.NewWriterOpener(os.Stdout), nil
	case openerBrowser:
		return transport.NewBrowserOpener(), nil
	case openerBridge:
		if bridgeURL == "" {
			return nil, fmt.Errorf("--bridge-url is required for the bridge opener")
		}
		return transport.NewHTTPOpener(bridgeURL, nil), nil
	default:
		return nil, fmt.Errorf("unsupported opener: %s", kind)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
