package command

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strconv"
	"strings"

	"github.com/Layr-Labs/walletlink-go/pkg/address"
	"github.com/Layr-Labs/walletlink-go/pkg/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Query field names
const (
	FieldMessage  = "message"
	FieldAddress  = "address"
	FieldCallback = "callback"
	FieldID       = "id"

	FieldGasPrice = "gasPrice"
	FieldGasLimit = "gasLimit"
	FieldTo       = "to"
	FieldAmount   = "amount"
	FieldData     = "data"
	FieldPayload  = "payload"
	FieldNonce    = "nonce"

	FieldResult = "result"
	FieldV      = "v"
	FieldR      = "r"
	FieldS      = "s"
	FieldError  = "error"
)

// ErrRoutingMismatch is returned when a URL addresses a different command.
var ErrRoutingMismatch = errors.New("url does not address this command")

// DecodeError describes a required field that is missing or malformed.
type DecodeError struct {
	Kind   types.CommandKind
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: field %q: %s", e.Kind, e.Field, e.Reason)
}

// Request is the decoded form of an outbound request URL.
type Request struct {
	Kind        types.CommandKind
	ID          string
	Message     []byte
	Address     *address.Address
	Transaction *types.Transaction
	Callback    *url.URL
}

// ParseKind identifies the command a URL addresses by its host.
func ParseKind(u *url.URL) (types.CommandKind, bool) {
	if u == nil {
		return "", false
	}
	return types.ParseCommandKind(u.Host)
}

// EncodeRequest serializes a request into <scheme>://<kind>?<fields>.
func EncodeRequest(req *Request, scheme string) (*url.URL, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}
	if scheme == "" {
		return nil, fmt.Errorf("scheme cannot be empty")
	}

	var q orderedQuery
	switch req.Kind {
	case types.CommandKindSignMessage, types.CommandKindSignPersonalMessage:
		q.add(FieldMessage, base64.StdEncoding.EncodeToString(req.Message))
		if req.Address != nil {
			q.add(FieldAddress, req.Address.String())
		}
	case types.CommandKindSignTransaction:
		tx := req.Transaction
		if tx == nil {
			return nil, fmt.Errorf("%s: transaction cannot be nil", req.Kind)
		}
		if tx.GasPrice == nil || tx.Amount == nil {
			return nil, fmt.Errorf("%s: gas price and amount are required", req.Kind)
		}
		q.add(FieldGasPrice, tx.GasPrice.String())
		q.add(FieldGasLimit, strconv.FormatUint(tx.GasLimit, 10))
		q.add(FieldTo, tx.To.String())
		q.add(FieldAmount, tx.Amount.String())
		if tx.Payload != nil {
			q.add(FieldData, hexutil.Encode(tx.Payload))
		}
		q.add(FieldNonce, strconv.FormatUint(tx.Nonce, 10))
	default:
		return nil, fmt.Errorf("unsupported command kind %q", req.Kind)
	}

	if req.ID != "" {
		q.add(FieldID, req.ID)
	}
	if req.Callback != nil {
		q.add(FieldCallback, req.Callback.String())
	}

	return &url.URL{
		Scheme:   scheme,
		Host:     req.Kind.String(),
		RawQuery: q.encode(),
	}, nil
}

// DecodeRequest decodes a request URL for the given kind. It returns
// ErrRoutingMismatch when the host names another command and a *DecodeError
// when a required field is missing or malformed.
func DecodeRequest(u *url.URL, kind types.CommandKind) (*Request, error) {
	if u == nil || u.Host != kind.String() {
		return nil, ErrRoutingMismatch
	}
	q := u.Query()

	req := &Request{
		Kind:     kind,
		ID:       q.Get(FieldID),
		Callback: parseCallback(q.Get(FieldCallback)),
	}

	switch kind {
	case types.CommandKindSignMessage, types.CommandKindSignPersonalMessage:
		if !q.Has(FieldMessage) {
			return nil, &DecodeError{Kind: kind, Field: FieldMessage, Reason: "missing"}
		}
		message, err := decodeBase64(q.Get(FieldMessage))
		if err != nil {
			return nil, &DecodeError{Kind: kind, Field: FieldMessage, Reason: "invalid base64"}
		}
		req.Message = message

		if q.Has(FieldAddress) {
			addr, err := address.Parse(q.Get(FieldAddress))
			if err != nil {
				return nil, &DecodeError{Kind: kind, Field: FieldAddress, Reason: err.Error()}
			}
			req.Address = &addr
		}
	case types.CommandKindSignTransaction:
		tx, err := decodeTransaction(q)
		if err != nil {
			return nil, err
		}
		req.Transaction = tx
	default:
		return nil, ErrRoutingMismatch
	}

	return req, nil
}

func decodeTransaction(q url.Values) (*types.Transaction, error) {
	kind := types.CommandKindSignTransaction

	gasPrice, err := requiredBig(q, FieldGasPrice)
	if err != nil {
		return nil, err
	}

	if !q.Has(FieldGasLimit) {
		return nil, &DecodeError{Kind: kind, Field: FieldGasLimit, Reason: "missing"}
	}
	gasLimit, err := strconv.ParseUint(q.Get(FieldGasLimit), 10, 64)
	if err != nil {
		return nil, &DecodeError{Kind: kind, Field: FieldGasLimit, Reason: "invalid unsigned integer"}
	}

	if !q.Has(FieldTo) {
		return nil, &DecodeError{Kind: kind, Field: FieldTo, Reason: "missing"}
	}
	to, err := address.Parse(q.Get(FieldTo))
	if err != nil {
		return nil, &DecodeError{Kind: kind, Field: FieldTo, Reason: err.Error()}
	}

	amount, err := requiredBig(q, FieldAmount)
	if err != nil {
		return nil, err
	}

	tx := &types.Transaction{
		GasPrice: gasPrice,
		GasLimit: gasLimit,
		To:       to,
		Amount:   amount,
	}

	// nonce falls back to zero rather than failing the request
	if nonce, err := strconv.ParseUint(q.Get(FieldNonce), 10, 64); err == nil {
		tx.Nonce = nonce
	}

	payloadField := FieldData
	if !q.Has(payloadField) && q.Has(FieldPayload) {
		payloadField = FieldPayload
	}
	if q.Has(payloadField) {
		payload, err := decodeHex(q.Get(payloadField))
		if err != nil {
			return nil, &DecodeError{Kind: kind, Field: payloadField, Reason: "invalid hex"}
		}
		tx.Payload = payload
	}

	return tx, nil
}

// CallbackURL is the URL a signer opens to answer a command of the given kind.
func CallbackURL(callbackScheme string, kind types.CommandKind) *url.URL {
	return &url.URL{Scheme: callbackScheme, Host: kind.String()}
}

// EncodeResult attaches a result to the declared callback URL. The query of the
// callback is replaced by the result fields. A non-empty id is echoed back.
// A nil callback yields nil.
func EncodeResult(callback *url.URL, id string, result types.Result) *url.URL {
	if callback == nil {
		return nil
	}

	var q orderedQuery
	switch result.Kind {
	case types.ResultKindSigned:
		q.add(FieldResult, base64.StdEncoding.EncodeToString(result.Signature))
	case types.ResultKindSignedTransaction:
		q.add(FieldV, bigString(result.V))
		q.add(FieldR, bigString(result.R))
		q.add(FieldS, bigString(result.S))
	default:
		q.add(FieldError, result.Error)
	}
	if id != "" {
		q.add(FieldID, id)
	}

	return &url.URL{
		Scheme:   callback.Scheme,
		Opaque:   callback.Opaque,
		User:     callback.User,
		Host:     callback.Host,
		Path:     callback.Path,
		RawPath:  callback.RawPath,
		RawQuery: q.encode(),
	}
}

// DecodeResult reads a result from a callback URL addressed to kind. The
// returned id is empty when the callback carries none.
func DecodeResult(u *url.URL, kind types.CommandKind) (types.Result, string, error) {
	if u == nil || u.Host != kind.String() {
		return types.Result{}, "", ErrRoutingMismatch
	}
	q := u.Query()
	id := q.Get(FieldID)

	if q.Has(FieldError) {
		return types.FailureResult(q.Get(FieldError)), id, nil
	}

	if kind == types.CommandKindSignTransaction && (q.Has(FieldV) || q.Has(FieldR) || q.Has(FieldS)) {
		v, err := requiredBig(q, FieldV)
		if err != nil {
			return types.Result{}, id, err
		}
		r, err := requiredBig(q, FieldR)
		if err != nil {
			return types.Result{}, id, err
		}
		s, err := requiredBig(q, FieldS)
		if err != nil {
			return types.Result{}, id, err
		}
		return types.SignedTransactionResult(v, r, s), id, nil
	}

	if !q.Has(FieldResult) {
		return types.Result{}, id, &DecodeError{Kind: kind, Field: FieldResult, Reason: "missing"}
	}
	signature, err := decodeBase64(q.Get(FieldResult))
	if err != nil {
		return types.Result{}, id, &DecodeError{Kind: kind, Field: FieldResult, Reason: "invalid base64"}
	}
	return types.SignedResult(signature), id, nil
}

func requiredBig(q url.Values, field string) (*big.Int, error) {
	if !q.Has(field) {
		return nil, &DecodeError{Kind: types.CommandKindSignTransaction, Field: field, Reason: "missing"}
	}
	v, ok := new(big.Int).SetString(q.Get(field), 10)
	if !ok || v.Sign() < 0 {
		return nil, &DecodeError{Kind: types.CommandKindSignTransaction, Field: field, Reason: "invalid decimal integer"}
	}
	return v, nil
}

func parseCallback(raw string) *url.URL {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return nil
	}
	return u
}

// decodeBase64 tolerates a '+' that was turned into a space by form decoding.
func decodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(strings.ReplaceAll(s, " ", "+"))
}

func decodeHex(s string) ([]byte, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	return hex.DecodeString(s)
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// orderedQuery keeps fields in insertion order; url.Values sorts by key.
type orderedQuery []queryField

type queryField struct {
	key   string
	value string
}

func (q *orderedQuery) add(key, value string) {
	*q = append(*q, queryField{key: key, value: value})
}

func (q orderedQuery) encode() string {
	var sb strings.Builder
	for i, f := range q {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(f.key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(f.value))
	}
	return sb.String()
}
