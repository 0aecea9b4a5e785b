package types

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/walletlink-go/pkg/address"
)

// CommandKind is the wire identifier of a command. It is used as the URL host of
// both the outbound request and the callback.
type CommandKind string

const (
	CommandKindSignMessage         CommandKind = "sign-message"
	CommandKindSignPersonalMessage CommandKind = "sign-personal-message"
	CommandKindSignTransaction     CommandKind = "sign-transaction"
)

func (k CommandKind) String() string {
	return string(k)
}

// IsMessage reports whether the kind carries a message payload.
func (k CommandKind) IsMessage() bool {
	return k == CommandKindSignMessage || k == CommandKindSignPersonalMessage
}

// CommandKinds returns every supported command kind.
func CommandKinds() []CommandKind {
	return []CommandKind{
		CommandKindSignMessage,
		CommandKindSignPersonalMessage,
		CommandKindSignTransaction,
	}
}

// ParseCommandKind maps a wire identifier to its kind.
func ParseCommandKind(s string) (CommandKind, bool) {
	for _, k := range CommandKinds() {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Transaction is a legacy (pre EIP-1559) transaction as carried by the
// sign-transaction command. V, R and S are populated once signed.
type Transaction struct {
	GasPrice *big.Int
	GasLimit uint64
	To       address.Address
	Amount   *big.Int
	Payload  []byte
	Nonce    uint64

	V *big.Int
	R *big.Int
	S *big.Int
}

// Copy returns a deep copy of the transaction.
func (t *Transaction) Copy() *Transaction {
	if t == nil {
		return nil
	}
	return &Transaction{
		GasPrice: copyBig(t.GasPrice),
		GasLimit: t.GasLimit,
		To:       t.To,
		Amount:   copyBig(t.Amount),
		Payload:  bytes.Clone(t.Payload),
		Nonce:    t.Nonce,
		V:        copyBig(t.V),
		R:        copyBig(t.R),
		S:        copyBig(t.S),
	}
}

// IsSigned reports whether all signature values are present.
func (t *Transaction) IsSigned() bool {
	return t != nil && t.V != nil && t.R != nil && t.S != nil
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

type ResultKind int

const (
	ResultKindSigned ResultKind = iota
	ResultKindSignedTransaction
	ResultKindFailure
)

func (k ResultKind) String() string {
	switch k {
	case ResultKindSigned:
		return "signed"
	case ResultKindSignedTransaction:
		return "signed-transaction"
	case ResultKindFailure:
		return "failure"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Result is the outcome of a command: signed bytes for message signing, the
// v, r, s triple for transaction signing, or a failure message.
type Result struct {
	Kind      ResultKind
	Signature []byte
	V         *big.Int
	R         *big.Int
	S         *big.Int
	Error     string
}

func SignedResult(signature []byte) Result {
	return Result{Kind: ResultKindSigned, Signature: signature}
}

func SignedTransactionResult(v, r, s *big.Int) Result {
	return Result{Kind: ResultKindSignedTransaction, V: v, R: r, S: s}
}

func FailureResult(message string) Result {
	return Result{Kind: ResultKindFailure, Error: message}
}

func (r Result) IsFailure() bool {
	return r.Kind == ResultKindFailure
}
