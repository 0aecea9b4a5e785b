package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Layr-Labs/walletlink-go/pkg/address"
	"github.com/Layr-Labs/walletlink-go/pkg/bridge"
	"github.com/Layr-Labs/walletlink-go/pkg/command"
	"github.com/Layr-Labs/walletlink-go/pkg/config"
	"github.com/Layr-Labs/walletlink-go/pkg/dispatcher"
	"github.com/Layr-Labs/walletlink-go/pkg/metrics"
	"github.com/Layr-Labs/walletlink-go/pkg/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

const (
	defaultWaitTimeout = 2 * time.Minute
	shutdownTimeout    = 5 * time.Second
)

func requestCommand(c *cli.Context) error {
	cfg := parseConfig(c)
	if err := cfg.ValidateSchemes(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	kind, ok := types.ParseCommandKind(c.Args().First())
	if !ok {
		return usageError(c, "unknown command %q", c.Args().First())
	}

	l, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	results := make(chan types.Result, 1)
	opts := commandOptions(c)
	if c.Bool("wait") {
		opts = append(opts, command.WithFailureDelivery())
	}
	cmd, err := buildCommand(c, kind, cfg.CallbackScheme, func(r types.Result) { results <- r }, opts...)
	if err != nil {
		return err
	}

	requestURL, err := cmd.RequestURL(cfg.Scheme)
	if err != nil {
		return fmt.Errorf("failed to build request URL: %w", err)
	}

	opener, err := buildOpener(c.String("opener"), c.String("bridge-url"))
	if err != nil {
		return err
	}

	if !c.Bool("wait") {
		return opener.Open(c.Context, requestURL)
	}

	server := bridge.NewServer(&bridge.Config{
		Host:      cfg.Bridge.Host,
		Port:      cfg.Bridge.Port,
		RateLimit: cfg.Bridge.RateLimit,
		Burst:     cfg.Bridge.Burst,
	}, func(_ context.Context, u *url.URL) bool {
		return cmd.HandleCallback(u)
	}, l)
	if err := server.Start(); err != nil {
		return err
	}
	defer stopServer(server)

	if err := opener.Open(c.Context, requestURL); err != nil {
		return fmt.Errorf("failed to open request: %w", err)
	}
	l.Sugar().Infow("Waiting for callback", "kind", kind, "id", cmd.ID, "bridge", server.Addr())

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	select {
	case result := <-results:
		printResult(os.Stdout, kind, result)
		if result.IsFailure() {
			return fmt.Errorf("signer reported failure: %s", result.Error)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("no callback received: %w", ctx.Err())
	}
}

func commandOptions(c *cli.Context) []command.Option {
	var opts []command.Option
	switch {
	case c.Bool("no-id"):
		opts = append(opts, command.WithoutID())
	case c.String("id") != "":
		opts = append(opts, command.WithID(c.String("id")))
	}
	return opts
}

func buildCommand(c *cli.Context, kind types.CommandKind, callbackScheme string, completion command.CompletionFunc, opts ...command.Option) (*command.Command, error) {
	if kind == types.CommandKindSignTransaction {
		tx, err := parseTransaction(c)
		if err != nil {
			return nil, err
		}
		return command.NewSignTransaction(tx, callbackScheme, completion, opts...), nil
	}

	message, err := parseMessage(c.String("message"), c.String("message-hex"))
	if err != nil {
		return nil, err
	}
	if raw := c.String("address"); raw != "" {
		addr, err := address.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid address: %w", err)
		}
		opts = append(opts, command.WithAddress(addr))
	}

	if kind == types.CommandKindSignPersonalMessage {
		return command.NewSignPersonalMessage(message, callbackScheme, completion, opts...), nil
	}
	return command.NewSignMessage(message, callbackScheme, completion, opts...), nil
}

func parseMessage(text string, hexText string) ([]byte, error) {
	switch {
	case text != "" && hexText != "":
		return nil, fmt.Errorf("only one of --message and --message-hex may be set")
	case text != "":
		return []byte(text), nil
	case hexText != "":
		message, err := hexutil.Decode(hexText)
		if err != nil {
			return nil, fmt.Errorf("invalid --message-hex: %w", err)
		}
		return message, nil
	default:
		return nil, fmt.Errorf("--message or --message-hex is required")
	}
}

func parseTransaction(c *cli.Context) (*types.Transaction, error) {
	to, err := address.Parse(c.String("to"))
	if err != nil {
		return nil, fmt.Errorf("invalid --to: %w", err)
	}
	amount, err := parseWei("amount", c.String("amount"))
	if err != nil {
		return nil, err
	}
	gasPrice, err := parseWei("gas-price", c.String("gas-price"))
	if err != nil {
		return nil, err
	}

	tx := &types.Transaction{
		GasPrice: gasPrice,
		GasLimit: c.Uint64("gas-limit"),
		To:       to,
		Amount:   amount,
		Nonce:    c.Uint64("nonce"),
	}
	if data := c.String("data"); data != "" {
		tx.Payload, err = hexutil.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("invalid --data: %w", err)
		}
	}
	return tx, nil
}

func parseWei(name string, value string) (*big.Int, error) {
	if value == "" {
		return nil, fmt.Errorf("--%s is required", name)
	}
	v, ok := new(big.Int).SetString(value, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid --%s: %q", name, value)
	}
	return v, nil
}

func printResult(w io.Writer, kind types.CommandKind, result types.Result) {
	switch result.Kind {
	case types.ResultKindFailure:
		fmt.Fprintf(w, "%s failed: %s\n", kind, result.Error)
	case types.ResultKindSignedTransaction:
		fmt.Fprintf(w, "v: %s\nr: %s\ns: %s\n", result.V, result.R, result.S)
	default:
		fmt.Fprintf(w, "signature: %s\nbase64: %s\n",
			hexutil.Encode(result.Signature),
			base64.StdEncoding.EncodeToString(result.Signature))
	}
}

func handleCommand(c *cli.Context) error {
	raw := c.Args().First()
	if raw == "" {
		return usageError(c, "a request URL is required")
	}

	cfg := parseConfig(c)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	l, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	s, cleanup, err := buildSigner(c.Context, &cfg.Signer, l)
	if err != nil {
		return fmt.Errorf("failed to create signer: %w", err)
	}
	defer cleanup()

	j, err := buildJournal(&cfg.Journal, l)
	if err != nil {
		return fmt.Errorf("failed to create journal: %w", err)
	}
	if j != nil {
		defer func() { _ = j.Close() }()
	}

	opener, err := buildOpener(c.String("opener"), c.String("bridge-url"))
	if err != nil {
		return err
	}

	d := dispatcher.NewDispatcher(s, opener, j, l, dispatcher.WithScheme(cfg.Scheme))
	if !d.HandleOpenString(c.Context, raw) {
		return fmt.Errorf("url was not handled: %s", raw)
	}
	return nil
}

func decodeCommand(c *cli.Context) error {
	raw := c.Args().First()
	if raw == "" {
		return usageError(c, "a URL is required")
	}
	cfg := parseConfig(c)

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	kind, ok := command.ParseKind(u)
	if !ok {
		return fmt.Errorf("url does not name a known command: %s", u.Host)
	}

	out, err := describeURL(u, kind, u.Scheme == cfg.CallbackScheme)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// decodedURL is the printable form of a request or callback URL
type decodedURL struct {
	Kind     types.CommandKind `json:"kind"`
	ID       string            `json:"id,omitempty"`
	Message  string            `json:"message,omitempty"`
	Address  *address.Address  `json:"address,omitempty"`
	Callback string            `json:"callback,omitempty"`

	GasPrice string `json:"gasPrice,omitempty"`
	GasLimit uint64 `json:"gasLimit,omitempty"`
	To       string `json:"to,omitempty"`
	Amount   string `json:"amount,omitempty"`
	Data     string `json:"data,omitempty"`
	Nonce    uint64 `json:"nonce,omitempty"`

	Result string `json:"result,omitempty"`
	V      string `json:"v,omitempty"`
	R      string `json:"r,omitempty"`
	S      string `json:"s,omitempty"`
	Error  string `json:"error,omitempty"`
}

func describeURL(u *url.URL, kind types.CommandKind, isCallback bool) (*decodedURL, error) {
	if isCallback {
		result, id, err := command.DecodeResult(u, kind)
		if err != nil {
			return nil, fmt.Errorf("invalid callback: %w", err)
		}
		out := &decodedURL{Kind: kind, ID: id, Error: result.Error}
		switch result.Kind {
		case types.ResultKindSigned:
			out.Result = hexutil.Encode(result.Signature)
		case types.ResultKindSignedTransaction:
			out.V, out.R, out.S = result.V.String(), result.R.String(), result.S.String()
		}
		return out, nil
	}

	req, err := command.DecodeRequest(u, kind)
	if err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	out := &decodedURL{Kind: kind, ID: req.ID, Address: req.Address}
	if req.Callback != nil {
		out.Callback = req.Callback.String()
	}
	if req.Message != nil {
		out.Message = hexutil.Encode(req.Message)
	}
	if tx := req.Transaction; tx != nil {
		out.GasPrice = tx.GasPrice.String()
		out.GasLimit = tx.GasLimit
		out.To = tx.To.String()
		out.Amount = tx.Amount.String()
		out.Nonce = tx.Nonce
		if len(tx.Payload) > 0 {
			out.Data = hexutil.Encode(tx.Payload)
		}
	}
	return out, nil
}

func serveCommand(c *cli.Context) error {
	cfg := parseConfig(c)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	l, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, cleanup, err := buildSigner(ctx, &cfg.Signer, l)
	if err != nil {
		return fmt.Errorf("failed to create signer: %w", err)
	}
	defer cleanup()

	j, err := buildJournal(&cfg.Journal, l)
	if err != nil {
		return fmt.Errorf("failed to create journal: %w", err)
	}
	if j != nil {
		defer func() { _ = j.Close() }()
	}

	opener, err := buildOpener(c.String("opener"), c.String("bridge-url"))
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	d := dispatcher.NewDispatcher(s, opener, j, l,
		dispatcher.WithScheme(cfg.Scheme),
		dispatcher.WithCallbackSchemes(cfg.CallbackScheme),
		dispatcher.WithMetrics(m),
	)

	server := bridge.NewServer(&bridge.Config{
		Host:      cfg.Bridge.Host,
		Port:      cfg.Bridge.Port,
		RateLimit: cfg.Bridge.RateLimit,
		Burst:     cfg.Bridge.Burst,
		Metrics:   m,
		Gatherer:  reg,
	}, d.HandleOpen, l)
	if err := server.Start(); err != nil {
		return err
	}
	defer stopServer(server)

	l.Sugar().Infow("Signer bridge running",
		"address", server.Addr(),
		"scheme", cfg.Scheme,
		"callbackScheme", cfg.CallbackScheme,
		"signer", cfg.Signer.Type,
		"journal", cfg.Journal.Type,
	)
	l.Sugar().Infow("Available endpoints", "open", "POST /open", "health", "GET /health", "metrics", "GET /metrics")
	l.Sugar().Info("Press Ctrl+C to stop")

	<-ctx.Done()
	l.Sugar().Info("Shutting down")
	return nil
}

func journalCommand(c *cli.Context) error {
	cfg := parseConfig(c)
	if cfg.Journal.Type == config.JournalTypeNone || cfg.Journal.Type == config.JournalTypeMemory {
		return fmt.Errorf("journal listing needs a persistent journal (badger or redis)")
	}
	if err := cfg.ValidateJournal(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	l, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	j, err := buildJournal(&cfg.Journal, l)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer func() { _ = j.Close() }()

	entries, err := j.List()
	if err != nil {
		return fmt.Errorf("failed to list journal: %w", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func stopServer(server *bridge.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = server.Stop(ctx)
}
