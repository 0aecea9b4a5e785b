package command

import (
	"errors"
	"math/big"
	"net/url"
	"testing"

	"github.com/Layr-Labs/walletlink-go/pkg/address"
	"github.com/Layr-Labs/walletlink-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func testTransaction() *types.Transaction {
	return &types.Transaction{
		GasPrice: big.NewInt(20000000000),
		GasLimit: 21000,
		To:       address.MustParse(testAddress),
		Amount:   new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil),
		Payload:  []byte{0xa9, 0x05, 0x9c, 0xbb},
		Nonce:    42,
	}
}

func TestEncodeRequest_MessageShape(t *testing.T) {
	addr := address.MustParse(testAddress)
	req := &Request{
		Kind:     types.CommandKindSignMessage,
		Message:  []byte{0x12, 0x34},
		Address:  &addr,
		Callback: CallbackURL("app", types.CommandKindSignMessage),
	}

	u, err := EncodeRequest(req, "trust")
	require.NoError(t, err)
	assert.Equal(t, "trust", u.Scheme)
	assert.Equal(t, "sign-message", u.Host)
	assert.Equal(t, "trust://sign-message?message=EjQ%3D&address="+testAddress+"&callback=app%3A%2F%2Fsign-message", u.String())
}

func TestEncodeRequest_Errors(t *testing.T) {
	_, err := EncodeRequest(nil, "trust")
	require.Error(t, err)

	_, err = EncodeRequest(&Request{Kind: types.CommandKindSignMessage}, "")
	require.Error(t, err)

	_, err = EncodeRequest(&Request{Kind: types.CommandKindSignTransaction}, "trust")
	require.Error(t, err)

	_, err = EncodeRequest(&Request{Kind: types.CommandKindSignTransaction, Transaction: &types.Transaction{}}, "trust")
	require.Error(t, err)

	_, err = EncodeRequest(&Request{Kind: "sign-typed-data"}, "trust")
	require.Error(t, err)
}

func TestMessageRoundTrip(t *testing.T) {
	addr := address.MustParse(testAddress)

	tests := []struct {
		name    string
		kind    types.CommandKind
		message []byte
		address *address.Address
	}{
		{name: "message", kind: types.CommandKindSignMessage, message: []byte{0x12, 0x34}},
		{name: "message with address", kind: types.CommandKindSignMessage, message: []byte("hello world"), address: &addr},
		{name: "personal", kind: types.CommandKindSignPersonalMessage, message: []byte{0xfb, 0xff, 0xfe}, address: &addr},
		{name: "empty message", kind: types.CommandKindSignPersonalMessage, message: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &Request{
				Kind:     tt.kind,
				ID:       "req-1",
				Message:  tt.message,
				Address:  tt.address,
				Callback: CallbackURL("app", tt.kind),
			}

			u, err := EncodeRequest(req, "trust")
			require.NoError(t, err)

			decoded, err := DecodeRequest(u, tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, decoded.Kind)
			assert.Equal(t, tt.message, decoded.Message)
			assert.Equal(t, tt.address, decoded.Address)
			assert.Equal(t, "req-1", decoded.ID)
			require.NotNil(t, decoded.Callback)
			assert.Equal(t, "app://"+tt.kind.String(), decoded.Callback.String())
		})
	}
}

func TestTransactionRoundTrip(t *testing.T) {
	tx := testTransaction()
	u, err := EncodeRequest(&Request{
		Kind:        types.CommandKindSignTransaction,
		Transaction: tx,
		Callback:    CallbackURL("app", types.CommandKindSignTransaction),
	}, "trust")
	require.NoError(t, err)
	assert.Equal(t, "0xa9059cbb", u.Query().Get(FieldData))

	decoded, err := DecodeRequest(u, types.CommandKindSignTransaction)
	require.NoError(t, err)
	require.NotNil(t, decoded.Transaction)
	assert.Equal(t, 0, tx.GasPrice.Cmp(decoded.Transaction.GasPrice))
	assert.Equal(t, tx.GasLimit, decoded.Transaction.GasLimit)
	assert.Equal(t, tx.To, decoded.Transaction.To)
	assert.Equal(t, 0, tx.Amount.Cmp(decoded.Transaction.Amount))
	assert.Equal(t, tx.Nonce, decoded.Transaction.Nonce)
	assert.Equal(t, tx.Payload, decoded.Transaction.Payload)
}

func TestDecodeRequest_AuthorityMismatch(t *testing.T) {
	u := mustURL(t, "trust://sign-transaction?gasPrice=0&gasLimit=10&to="+testAddress+"&amount=100")

	_, err := DecodeRequest(u, types.CommandKindSignMessage)
	require.ErrorIs(t, err, ErrRoutingMismatch)

	var decodeErr *DecodeError
	assert.False(t, errors.As(err, &decodeErr))

	_, err = DecodeRequest(nil, types.CommandKindSignMessage)
	require.ErrorIs(t, err, ErrRoutingMismatch)
}

func TestDecodeRequest_Message(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantField string
	}{
		{name: "missing message", raw: "trust://sign-message?callback=app://sign-message", wantField: FieldMessage},
		{name: "invalid base64", raw: "trust://sign-message?message=%40%40%40", wantField: FieldMessage},
		{name: "invalid address", raw: "trust://sign-message?message=EjQ%3D&address=0x1234", wantField: FieldAddress},
		{name: "bad checksum", raw: "trust://sign-message?message=EjQ%3D&address=0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", wantField: FieldAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRequest(mustURL(t, tt.raw), types.CommandKindSignMessage)
			var decodeErr *DecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.Equal(t, tt.wantField, decodeErr.Field)
		})
	}

	t.Run("callback is optional", func(t *testing.T) {
		req, err := DecodeRequest(mustURL(t, "trust://sign-message?message=EjQ%3D"), types.CommandKindSignMessage)
		require.NoError(t, err)
		assert.Nil(t, req.Callback)
		assert.Nil(t, req.Address)
		assert.Equal(t, []byte{0x12, 0x34}, req.Message)
	})

	t.Run("unescaped plus in base64", func(t *testing.T) {
		// "+/8=" is 0xfb 0xff; a raw '+' decodes to a space in a query string
		req, err := DecodeRequest(mustURL(t, "trust://sign-message?message=+/8="), types.CommandKindSignMessage)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xfb, 0xff}, req.Message)
	})

	t.Run("unparseable callback is dropped", func(t *testing.T) {
		req, err := DecodeRequest(mustURL(t, "trust://sign-message?message=EjQ%3D&callback=no-scheme"), types.CommandKindSignMessage)
		require.NoError(t, err)
		assert.Nil(t, req.Callback)
	})
}

func TestDecodeRequest_Transaction(t *testing.T) {
	base := "trust://sign-transaction?gasPrice=0&gasLimit=10&to=" + testAddress + "&amount=100"

	t.Run("minimal request", func(t *testing.T) {
		req, err := DecodeRequest(mustURL(t, base+"&callback=app://sign-transaction"), types.CommandKindSignTransaction)
		require.NoError(t, err)
		tx := req.Transaction
		assert.Equal(t, int64(0), tx.GasPrice.Int64())
		assert.Equal(t, uint64(10), tx.GasLimit)
		assert.Equal(t, address.MustParse(testAddress), tx.To)
		assert.Equal(t, int64(100), tx.Amount.Int64())
		assert.Equal(t, uint64(0), tx.Nonce)
		assert.Nil(t, tx.Payload)
		assert.Equal(t, "app://sign-transaction", req.Callback.String())
	})

	t.Run("nonce defaults to zero when unparseable", func(t *testing.T) {
		req, err := DecodeRequest(mustURL(t, base+"&nonce=abc"), types.CommandKindSignTransaction)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), req.Transaction.Nonce)
	})

	t.Run("payload field and unprefixed hex", func(t *testing.T) {
		req, err := DecodeRequest(mustURL(t, base+"&payload=deadbeef&nonce=3"), types.CommandKindSignTransaction)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, req.Transaction.Payload)
		assert.Equal(t, uint64(3), req.Transaction.Nonce)
	})

	t.Run("data wins over payload", func(t *testing.T) {
		req, err := DecodeRequest(mustURL(t, base+"&data=0x01&payload=0x02"), types.CommandKindSignTransaction)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x01}, req.Transaction.Payload)
	})

	failures := []struct {
		name  string
		raw   string
		field string
	}{
		{name: "missing amount", raw: "trust://sign-transaction?gasPrice=0&gasLimit=10&to=" + testAddress, field: FieldAmount},
		{name: "missing gasPrice", raw: "trust://sign-transaction?gasLimit=10&to=" + testAddress + "&amount=100", field: FieldGasPrice},
		{name: "missing gasLimit", raw: "trust://sign-transaction?gasPrice=0&to=" + testAddress + "&amount=100", field: FieldGasLimit},
		{name: "missing to", raw: "trust://sign-transaction?gasPrice=0&gasLimit=10&amount=100", field: FieldTo},
		{name: "negative amount", raw: base[:len(base)-len("100")] + "-1", field: FieldAmount},
		{name: "hex gas price", raw: "trust://sign-transaction?gasPrice=0x10&gasLimit=10&to=" + testAddress + "&amount=100", field: FieldGasPrice},
		{name: "gas limit overflow", raw: "trust://sign-transaction?gasPrice=0&gasLimit=18446744073709551616&to=" + testAddress + "&amount=100", field: FieldGasLimit},
		{name: "invalid to", raw: "trust://sign-transaction?gasPrice=0&gasLimit=10&to=bob&amount=100", field: FieldTo},
		{name: "invalid payload", raw: base + "&data=0xzz", field: FieldData},
	}

	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRequest(mustURL(t, tt.raw), types.CommandKindSignTransaction)
			var decodeErr *DecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.Equal(t, tt.field, decodeErr.Field)
			assert.Contains(t, decodeErr.Error(), tt.field)
		})
	}
}

func TestParseKind(t *testing.T) {
	kind, ok := ParseKind(mustURL(t, "trust://sign-personal-message?message=EjQ%3D"))
	require.True(t, ok)
	assert.Equal(t, types.CommandKindSignPersonalMessage, kind)

	_, ok = ParseKind(mustURL(t, "trust://open-dapp?url=x"))
	assert.False(t, ok)

	_, ok = ParseKind(nil)
	assert.False(t, ok)
}

func TestEncodeResult(t *testing.T) {
	callback := mustURL(t, "app://sign-transaction")

	t.Run("signed message", func(t *testing.T) {
		u := EncodeResult(mustURL(t, "app://sign-message"), "", types.SignedResult([]byte{0x12, 0x34}))
		assert.Equal(t, "app://sign-message?result=EjQ%3D", u.String())
	})

	t.Run("signed transaction keeps v r s order", func(t *testing.T) {
		u := EncodeResult(callback, "", types.SignedTransactionResult(big.NewInt(1), big.NewInt(2), big.NewInt(3)))
		assert.Equal(t, "app://sign-transaction?v=1&r=2&s=3", u.String())
	})

	t.Run("failure", func(t *testing.T) {
		u := EncodeResult(callback, "", types.FailureResult("user rejected"))
		assert.Equal(t, "app://sign-transaction?error=user+rejected", u.String())
		assert.Equal(t, "user rejected", u.Query().Get(FieldError))
	})

	t.Run("id is echoed", func(t *testing.T) {
		u := EncodeResult(callback, "abc", types.FailureResult("nope"))
		assert.Equal(t, "abc", u.Query().Get(FieldID))
	})

	t.Run("declared query is replaced", func(t *testing.T) {
		u := EncodeResult(mustURL(t, "app://sign-message?stale=1"), "", types.SignedResult([]byte{1}))
		assert.False(t, u.Query().Has("stale"))
	})

	t.Run("nil callback", func(t *testing.T) {
		assert.NotPanics(t, func() {
			assert.Nil(t, EncodeResult(nil, "abc", types.SignedResult([]byte{1})))
		})
	})
}

func TestDecodeResult(t *testing.T) {
	t.Run("message", func(t *testing.T) {
		res, id, err := DecodeResult(mustURL(t, "app://sign-message?result=EjQ%3D&id=x"), types.CommandKindSignMessage)
		require.NoError(t, err)
		assert.Equal(t, "x", id)
		assert.Equal(t, types.SignedResult([]byte{0x12, 0x34}), res)
	})

	t.Run("transaction", func(t *testing.T) {
		res, _, err := DecodeResult(mustURL(t, "app://sign-transaction?v=37&r=2&s=3"), types.CommandKindSignTransaction)
		require.NoError(t, err)
		assert.Equal(t, types.ResultKindSignedTransaction, res.Kind)
		assert.Equal(t, int64(37), res.V.Int64())
	})

	t.Run("partial signature", func(t *testing.T) {
		_, _, err := DecodeResult(mustURL(t, "app://sign-transaction?v=37&r=2"), types.CommandKindSignTransaction)
		var decodeErr *DecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.Equal(t, FieldS, decodeErr.Field)
	})

	t.Run("error", func(t *testing.T) {
		res, _, err := DecodeResult(mustURL(t, "app://sign-message?error=denied"), types.CommandKindSignMessage)
		require.NoError(t, err)
		assert.True(t, res.IsFailure())
		assert.Equal(t, "denied", res.Error)
	})

	t.Run("missing result", func(t *testing.T) {
		_, _, err := DecodeResult(mustURL(t, "app://sign-message"), types.CommandKindSignMessage)
		require.Error(t, err)
	})

	t.Run("wrong host", func(t *testing.T) {
		_, _, err := DecodeResult(mustURL(t, "app://sign-message?result=EjQ%3D"), types.CommandKindSignPersonalMessage)
		require.ErrorIs(t, err, ErrRoutingMismatch)
	})
}
