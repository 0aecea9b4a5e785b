package types

import (
	"math/big"
	"testing"

	"github.com/Layr-Labs/walletlink-go/pkg/address"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommandKind(t *testing.T) {
	for _, k := range CommandKinds() {
		parsed, ok := ParseCommandKind(k.String())
		require.True(t, ok)
		assert.Equal(t, k, parsed)
	}

	_, ok := ParseCommandKind("sign-typed-data")
	assert.False(t, ok)

	assert.True(t, CommandKindSignMessage.IsMessage())
	assert.True(t, CommandKindSignPersonalMessage.IsMessage())
	assert.False(t, CommandKindSignTransaction.IsMessage())
}

func TestTransaction_Copy(t *testing.T) {
	tx := &Transaction{
		GasPrice: big.NewInt(20),
		GasLimit: 21000,
		To:       address.MustParse("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"),
		Amount:   big.NewInt(100),
		Payload:  []byte{0xde, 0xad},
		Nonce:    7,
	}

	cp := tx.Copy()
	require.Equal(t, tx, cp)
	assert.False(t, cp.IsSigned())

	cp.GasPrice.SetInt64(1)
	cp.Payload[0] = 0x00
	assert.Equal(t, int64(20), tx.GasPrice.Int64())
	assert.Equal(t, byte(0xde), tx.Payload[0])

	cp.V, cp.R, cp.S = big.NewInt(1), big.NewInt(2), big.NewInt(3)
	assert.True(t, cp.IsSigned())

	var nilTx *Transaction
	assert.Nil(t, nilTx.Copy())
}

func TestResultConstructors(t *testing.T) {
	assert.Equal(t, ResultKindSigned, SignedResult([]byte{1}).Kind)
	assert.Equal(t, ResultKindSignedTransaction, SignedTransactionResult(big.NewInt(1), big.NewInt(2), big.NewInt(3)).Kind)

	failure := FailureResult("rejected")
	assert.True(t, failure.IsFailure())
	assert.Equal(t, "rejected", failure.Error)
	assert.Equal(t, "failure", failure.Kind.String())
}
