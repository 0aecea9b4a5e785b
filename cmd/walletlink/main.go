package main

import (
	"fmt"
	"log"
	"os"

	"github.com/Layr-Labs/walletlink-go/pkg/config"
	"github.com/urfave/cli/v2"
)

var (
	signerFlags = []cli.Flag{
		&cli.StringFlag{
			Name:    "signer",
			Usage:   "Signer backend: local, keystore, kms or rpc",
			Value:   string(config.SignerTypeLocal),
			EnvVars: []string{config.EnvWalletLinkSignerType},
		},
		&cli.StringSliceFlag{
			Name:    "private-key",
			Usage:   "Hex encoded secp256k1 private key for the local signer (repeatable)",
			EnvVars: []string{config.EnvWalletLinkPrivateKeys},
		},
		&cli.StringFlag{
			Name:    "keystore-dir",
			Usage:   "Directory of encrypted key files for the keystore signer",
			EnvVars: []string{config.EnvWalletLinkKeystoreDir},
		},
		&cli.StringFlag{
			Name:    "keystore-password",
			Usage:   "Password of the key files. Prompted for when empty and stdin is a terminal",
			EnvVars: []string{config.EnvWalletLinkKeystorePass},
		},
		&cli.StringFlag{
			Name:    "default-account",
			Usage:   "Account used when a request names no address",
			EnvVars: []string{config.EnvWalletLinkDefaultAccount},
		},
		&cli.StringFlag{
			Name:    "kms-key-id",
			Usage:   "AWS KMS key id or ARN of an ECC_SECG_P256K1 key",
			EnvVars: []string{config.EnvWalletLinkKMSKeyId},
		},
		&cli.StringFlag{
			Name:    "aws-region",
			Usage:   "AWS region override for the kms signer",
			EnvVars: []string{config.EnvWalletLinkAWSRegion},
		},
		&cli.StringFlag{
			Name:    "rpc-endpoint",
			Usage:   "JSON-RPC endpoint of a remote signer exposing eth_sign and eth_signTransaction",
			EnvVars: []string{config.EnvWalletLinkRPCEndpoint},
		},
		&cli.Uint64Flag{
			Name:    "chain-id",
			Usage:   "Chain id for EIP-155 transaction signing. 0 signs without replay protection",
			EnvVars: []string{config.EnvWalletLinkChainID},
		},
	}

	journalFlags = []cli.Flag{
		&cli.StringFlag{
			Name:    "journal",
			Usage:   "Journal backend: none, memory, badger or redis",
			Value:   string(config.JournalTypeNone),
			EnvVars: []string{config.EnvWalletLinkJournalType},
		},
		&cli.StringFlag{
			Name:    "badger-path",
			Usage:   "Data directory of the badger journal",
			EnvVars: []string{config.EnvWalletLinkBadgerPath},
		},
		&cli.StringFlag{
			Name:    "redis-address",
			Usage:   "Redis address (host:port) of the redis journal",
			EnvVars: []string{config.EnvWalletLinkRedisAddress},
		},
		&cli.StringFlag{
			Name:    "redis-password",
			Usage:   "Redis password",
			EnvVars: []string{config.EnvWalletLinkRedisPassword},
		},
		&cli.IntFlag{
			Name:    "redis-db",
			Usage:   "Redis database number",
			EnvVars: []string{config.EnvWalletLinkRedisDB},
		},
	}

	bridgeFlags = []cli.Flag{
		&cli.StringFlag{
			Name:    "bridge-host",
			Usage:   "Host the bridge listens on",
			Value:   config.DefaultBridgeHost,
			EnvVars: []string{config.EnvWalletLinkBridgeHost},
		},
		&cli.IntFlag{
			Name:    "bridge-port",
			Aliases: []string{"p"},
			Usage:   "Port the bridge listens on",
			Value:   config.DefaultBridgePort,
			EnvVars: []string{config.EnvWalletLinkBridgePort},
		},
		&cli.Float64Flag{
			Name:    "rate-limit",
			Usage:   "Sustained open requests per second accepted by the bridge. 0 disables limiting",
			EnvVars: []string{config.EnvWalletLinkBridgeRateLimit},
		},
		&cli.IntFlag{
			Name:    "burst",
			Usage:   "Open requests accepted above the rate limit",
			Value:   10,
			EnvVars: []string{config.EnvWalletLinkBridgeBurst},
		},
	}

	openerFlags = []cli.Flag{
		&cli.StringFlag{
			Name:  "opener",
			Usage: "How URLs are opened: stdout, browser or bridge",
			Value: openerStdout,
		},
		&cli.StringFlag{
			Name:    "bridge-url",
			Usage:   "Base URL of the peer bridge used by the bridge opener",
			EnvVars: []string{config.EnvWalletLinkBridgeURL},
		},
	}
)

func flags(groups ...[]cli.Flag) []cli.Flag {
	var all []cli.Flag
	for _, g := range groups {
		all = append(all, g...)
	}
	return all
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "walletlink",
		Usage: "Exchange signing requests between apps over URLs",
		Description: `walletlink speaks the URL based signing protocol between a requesting app and a signer app.

A requester opens <scheme>://<command>?...&callback=<callback-url> in the signer.
The signer asks its key backend for a signature and opens the callback URL with the result.

Supported commands: sign-message, sign-personal-message and sign-transaction.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "scheme",
				Usage:   "URL scheme the signer app is registered under",
				Value:   config.DefaultScheme,
				EnvVars: []string{config.EnvWalletLinkScheme},
			},
			&cli.StringFlag{
				Name:    "callback-scheme",
				Usage:   "URL scheme the requesting app is registered under",
				Value:   config.DefaultCallbackScheme,
				EnvVars: []string{config.EnvWalletLinkCallbackScheme},
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				EnvVars: []string{config.EnvWalletLinkDebug},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "request",
				Usage:     "Build a signing request URL and open it in the signer",
				ArgsUsage: "<sign-message|sign-personal-message|sign-transaction>",
				Flags: flags([]cli.Flag{
					&cli.StringFlag{
						Name:  "message",
						Usage: "Message to sign (as string)",
					},
					&cli.StringFlag{
						Name:  "message-hex",
						Usage: "Message to sign (0x prefixed hex)",
					},
					&cli.StringFlag{
						Name:  "address",
						Usage: "Account that should sign the message",
					},
					&cli.StringFlag{
						Name:  "to",
						Usage: "Transaction recipient",
					},
					&cli.StringFlag{
						Name:  "amount",
						Usage: "Transaction value in wei",
						Value: "0",
					},
					&cli.StringFlag{
						Name:  "gas-price",
						Usage: "Transaction gas price in wei",
					},
					&cli.Uint64Flag{
						Name:  "gas-limit",
						Usage: "Transaction gas limit",
						Value: 21000,
					},
					&cli.Uint64Flag{
						Name:  "nonce",
						Usage: "Transaction nonce",
					},
					&cli.StringFlag{
						Name:  "data",
						Usage: "Transaction payload (0x prefixed hex)",
					},
					&cli.StringFlag{
						Name:  "id",
						Usage: "Correlation id. Generated when empty",
					},
					&cli.BoolFlag{
						Name:  "no-id",
						Usage: "Omit the correlation id",
					},
					&cli.BoolFlag{
						Name:  "wait",
						Usage: "Serve a local bridge and wait for the callback",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the callback",
						Value: defaultWaitTimeout,
					},
				}, openerFlags, bridgeFlags),
				Action: requestCommand,
			},
			{
				Name:      "handle",
				Usage:     "Dispatch a single request URL to the signer and open its callback",
				ArgsUsage: "<url>",
				Flags:     flags(signerFlags, journalFlags, openerFlags),
				Action:    handleCommand,
			},
			{
				Name:      "decode",
				Usage:     "Decode a request or callback URL",
				ArgsUsage: "<url>",
				Action:    decodeCommand,
			},
			{
				Name:   "serve",
				Usage:  "Run the signer behind an HTTP bridge",
				Flags:  flags(signerFlags, journalFlags, openerFlags, bridgeFlags),
				Action: serveCommand,
			},
			{
				Name:   "journal",
				Usage:  "List recorded dispatch outcomes",
				Flags:  journalFlags,
				Action: journalCommand,
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func usageError(c *cli.Context, format string, args ...any) error {
	_ = cli.ShowSubcommandHelp(c)
	return fmt.Errorf(format, args...)
}
