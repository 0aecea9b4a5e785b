// Package command models the three signing commands exchanged between a
// requesting app and a signer app, and their URL encoding.
//
// A Command is owned by the requester: it builds the outbound request URL and
// later consumes the callback URL the signer opens. Correlation is structural
// (callback scheme plus wire identifier) with an additional opaque id that the
// signer echoes back. The package never keeps a registry of pending commands;
// hosts keep their Command values alive until the callback arrives.
package command

import (
	"bytes"
	"errors"
	"net/url"
	"sync/atomic"

	"github.com/Layr-Labs/walletlink-go/pkg/address"
	"github.com/Layr-Labs/walletlink-go/pkg/types"
	"github.com/google/uuid"
)

// CompletionFunc receives the result of a command exactly once.
type CompletionFunc func(result types.Result)

type Command struct {
	Kind           types.CommandKind
	ID             string
	Message        []byte
	Address        *address.Address
	Transaction    *types.Transaction
	CallbackScheme string

	completion      CompletionFunc
	deliverFailures bool
	consumed        atomic.Bool
}

type Option func(*Command)

// WithAddress selects the account that should sign a message.
func WithAddress(addr address.Address) Option {
	return func(c *Command) {
		c.Address = &addr
	}
}

// WithID overrides the generated correlation id.
func WithID(id string) Option {
	return func(c *Command) {
		c.ID = id
	}
}

// WithoutID omits the correlation id, producing the bare legacy wire shape.
func WithoutID() Option {
	return WithID("")
}

// WithFailureDelivery makes error callbacks complete the command with a
// failure result. Without it error callbacks are left unhandled.
func WithFailureDelivery() Option {
	return func(c *Command) {
		c.deliverFailures = true
	}
}

func NewSignMessage(message []byte, callbackScheme string, completion CompletionFunc, opts ...Option) *Command {
	return newCommand(types.CommandKindSignMessage, callbackScheme, completion, func(c *Command) {
		c.Message = bytes.Clone(message)
	}, opts)
}

func NewSignPersonalMessage(message []byte, callbackScheme string, completion CompletionFunc, opts ...Option) *Command {
	return newCommand(types.CommandKindSignPersonalMessage, callbackScheme, completion, func(c *Command) {
		c.Message = bytes.Clone(message)
	}, opts)
}

func NewSignTransaction(tx *types.Transaction, callbackScheme string, completion CompletionFunc, opts ...Option) *Command {
	return newCommand(types.CommandKindSignTransaction, callbackScheme, completion, func(c *Command) {
		c.Transaction = tx.Copy()
	}, opts)
}

func newCommand(kind types.CommandKind, callbackScheme string, completion CompletionFunc, init func(*Command), opts []Option) *Command {
	c := &Command{
		Kind:           kind,
		ID:             uuid.New().String(),
		CallbackScheme: callbackScheme,
		completion:     completion,
	}
	init(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Callback returns the URL the signer should open with the result.
func (c *Command) Callback() *url.URL {
	return CallbackURL(c.CallbackScheme, c.Kind)
}

// Request returns the codec view of the command.
func (c *Command) Request() *Request {
	return &Request{
		Kind:        c.Kind,
		ID:          c.ID,
		Message:     c.Message,
		Address:     c.Address,
		Transaction: c.Transaction,
		Callback:    c.Callback(),
	}
}

// RequestURL builds the outbound URL for the signer registered under scheme.
func (c *Command) RequestURL(scheme string) (*url.URL, error) {
	if c.CallbackScheme == "" {
		return nil, errors.New("callback scheme cannot be empty")
	}
	return EncodeRequest(c.Request(), scheme)
}

// Consumed reports whether the completion has already fired.
func (c *Command) Consumed() bool {
	return c.consumed.Load()
}

// HandleCallback consumes a callback URL. It returns false, without invoking
// the completion, when the URL is addressed to another command, carries a
// different correlation id, has no decodable result, or the command was
// already consumed.
func (c *Command) HandleCallback(u *url.URL) bool {
	if c.consumed.Load() {
		return false
	}

	result, id, err := DecodeResult(u, c.Kind)
	if err != nil {
		return false
	}
	if id != "" && c.ID != "" && id != c.ID {
		return false
	}
	if !c.acceptsResult(result) {
		return false
	}

	if !c.consumed.CompareAndSwap(false, true) {
		return false
	}
	if c.completion != nil {
		c.completion(result)
	}
	return true
}

func (c *Command) acceptsResult(result types.Result) bool {
	switch result.Kind {
	case types.ResultKindFailure:
		return c.deliverFailures
	case types.ResultKindSignedTransaction:
		return c.Kind == types.CommandKindSignTransaction
	default:
		return true
	}
}

// HandleCallbacks offers a callback URL to each command in turn and returns the
// one that consumed it.
func HandleCallbacks(u *url.URL, commands ...*Command) (*Command, bool) {
	for _, c := range commands {
		if c != nil && c.HandleCallback(u) {
			return c, true
		}
	}
	return nil, false
}
