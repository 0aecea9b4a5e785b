// Package dispatcher implements the signer side of the protocol: it decodes an
// inbound request URL, asks the signing capability for a result and opens the
// callback URL that carries it back to the requester.
package dispatcher

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/Layr-Labs/walletlink-go/pkg/command"
	"github.com/Layr-Labs/walletlink-go/pkg/journal"
	"github.com/Layr-Labs/walletlink-go/pkg/metrics"
	"github.com/Layr-Labs/walletlink-go/pkg/signer"
	"github.com/Layr-Labs/walletlink-go/pkg/transport"
	"github.com/Layr-Labs/walletlink-go/pkg/types"
	"go.uber.org/zap"
)

type Dispatcher struct {
	signer  signer.ISigner
	opener  transport.IOpener
	journal journal.IJournal
	metrics *metrics.Metrics
	logger  *zap.Logger

	scheme          string
	callbackSchemes map[string]struct{}
}

type Option func(*Dispatcher)

// WithScheme only accepts inbound URLs using scheme.
func WithScheme(scheme string) Option {
	return func(d *Dispatcher) {
		d.scheme = scheme
	}
}

// WithCallbackSchemes restricts the schemes results may be delivered to.
// Results for any other callback scheme are dropped.
func WithCallbackSchemes(schemes ...string) Option {
	return func(d *Dispatcher) {
		d.callbackSchemes = make(map[string]struct{}, len(schemes))
		for _, s := range schemes {
			d.callbackSchemes[s] = struct{}{}
		}
	}
}

// WithMetrics records dispatch outcomes and signing latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// NewDispatcher creates a dispatcher. The journal is optional.
func NewDispatcher(s signer.ISigner, opener transport.IOpener, j journal.IJournal, logger *zap.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		signer:  s,
		opener:  opener,
		journal: j,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleOpenString parses raw and dispatches it. Unparseable input is not handled.
func (d *Dispatcher) HandleOpenString(ctx context.Context, raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		d.logger.Sugar().Debugw("Ignoring unparseable URL", "error", err)
		return false
	}
	return d.HandleOpen(ctx, u)
}

// HandleOpen dispatches an inbound URL. It returns false when the URL names no
// known command or fails to decode, and true once the signer has been asked,
// whatever the signing outcome.
func (d *Dispatcher) HandleOpen(ctx context.Context, u *url.URL) bool {
	if u == nil {
		return false
	}
	if d.scheme != "" && u.Scheme != d.scheme {
		d.logger.Sugar().Debugw("Ignoring URL for another scheme", "scheme", u.Scheme)
		d.metrics.ObserveIgnored(metrics.ReasonSchemeMismatch)
		return false
	}

	kind, ok := command.ParseKind(u)
	if !ok {
		d.logger.Sugar().Debugw("Ignoring URL for unknown command", "host", u.Host)
		d.metrics.ObserveIgnored(metrics.ReasonUnknownCommand)
		return false
	}
	if d.signer == nil {
		d.logger.Sugar().Warnw("No signer configured, ignoring request", "kind", kind)
		d.metrics.ObserveIgnored(metrics.ReasonNoSigner)
		return false
	}

	req, err := command.DecodeRequest(u, kind)
	if err != nil {
		var decodeErr *command.DecodeError
		if errors.As(err, &decodeErr) {
			d.logger.Sugar().Infow("Ignoring invalid request",
				"kind", kind,
				"field", decodeErr.Field,
				"reason", decodeErr.Reason,
			)
		} else {
			d.logger.Sugar().Debugw("Ignoring request", "kind", kind, "error", err)
		}
		d.metrics.ObserveIgnored(metrics.ReasonInvalid)
		return false
	}

	result := d.sign(ctx, req)
	d.deliver(ctx, req, result)
	return true
}

func (d *Dispatcher) sign(ctx context.Context, req *command.Request) types.Result {
	start := time.Now()
	defer func() { d.metrics.ObserveSign(req.Kind, time.Since(start)) }()

	switch req.Kind {
	case types.CommandKindSignMessage:
		sig, err := d.signer.SignMessage(ctx, req.Message, req.Address)
		if err != nil {
			return types.FailureResult(err.Error())
		}
		return types.SignedResult(sig)
	case types.CommandKindSignPersonalMessage:
		sig, err := d.signer.SignPersonalMessage(ctx, req.Message, req.Address)
		if err != nil {
			return types.FailureResult(err.Error())
		}
		return types.SignedResult(sig)
	case types.CommandKindSignTransaction:
		tx, err := d.signer.SignTransaction(ctx, req.Transaction)
		if err != nil {
			return types.FailureResult(err.Error())
		}
		if !tx.IsSigned() {
			return types.FailureResult("signer returned an unsigned transaction")
		}
		return types.SignedTransactionResult(tx.V, tx.R, tx.S)
	default:
		return types.FailureResult("unsupported command " + req.Kind.String())
	}
}

func (d *Dispatcher) deliver(ctx context.Context, req *command.Request, result types.Result) {
	outcome := journal.OutcomeSigned
	if result.IsFailure() {
		outcome = journal.OutcomeFailed
		d.logger.Sugar().Infow("Signer reported failure",
			"kind", req.Kind,
			"id", req.ID,
			"error", result.Error,
		)
	}

	entry := journal.NewEntry(req.Kind, req.ID, outcome)
	entry.Error = result.Error
	if req.Address != nil {
		entry.Account = req.Address.String()
	}
	defer d.record(entry)

	if req.Callback == nil {
		d.logger.Sugar().Warnw("Request declared no callback, dropping result", "kind", req.Kind, "id", req.ID)
		entry.Outcome = journal.OutcomeDropped
		return
	}
	if !d.callbackAllowed(req.Callback) {
		d.logger.Sugar().Warnw("Callback scheme not allowed, dropping result",
			"kind", req.Kind,
			"id", req.ID,
			"scheme", req.Callback.Scheme,
		)
		entry.Outcome = journal.OutcomeDropped
		return
	}

	callback := command.EncodeResult(req.Callback, req.ID, result)
	entry.Callback = callback.String()

	if d.opener == nil {
		d.logger.Sugar().Warnw("No opener configured, dropping callback", "kind", req.Kind, "id", req.ID)
		return
	}
	if err := d.opener.Open(ctx, callback); err != nil {
		d.logger.Sugar().Warnw("Failed to open callback",
			"kind", req.Kind,
			"id", req.ID,
			"scheme", callback.Scheme,
			"error", err,
		)
		return
	}
	entry.Delivered = true

	d.logger.Sugar().Infow("Delivered result",
		"kind", req.Kind,
		"id", req.ID,
		"outcome", outcome,
	)
}

func (d *Dispatcher) callbackAllowed(callback *url.URL) bool {
	if d.callbackSchemes == nil {
		return true
	}
	_, ok := d.callbackSchemes[callback.Scheme]
	return ok
}

func (d *Dispatcher) record(entry *journal.Entry) {
	d.metrics.ObserveDispatch(entry.Kind, string(entry.Outcome))
	if d.journal == nil {
		return
	}
	if err := d.journal.Record(entry); err != nil {
		d.logger.Sugar().Warnw("Failed to record journal entry", "id", entry.ID, "error", err)
	}
}
