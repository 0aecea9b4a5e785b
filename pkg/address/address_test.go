package address

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const checksummed = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "checksummed", input: checksummed},
		{name: "lowercase", input: strings.ToLower(checksummed)},
		{name: "uppercase body", input: "0x" + strings.ToUpper(checksummed[2:])},
		{name: "no prefix", input: checksummed[2:]},
		{name: "bad checksum", input: "0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", wantErr: ErrInvalidChecksum},
		{name: "too short", input: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeA", wantErr: ErrInvalidAddress},
		{name: "not hex", input: "0xZZAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", wantErr: ErrInvalidAddress},
		{name: "empty", input: "", wantErr: ErrInvalidAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := Parse(tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, checksummed, addr.String())
		})
	}
}

func TestAddress_EqualityIsByteExact(t *testing.T) {
	a := MustParse(checksummed)
	b := MustParse(strings.ToLower(checksummed))
	assert.Equal(t, a, b)
	assert.Equal(t, common.HexToAddress(checksummed), a.Common())
	assert.Len(t, a.Bytes(), Length)
	assert.False(t, a.IsZero())
	assert.True(t, Address{}.IsZero())
}

func TestAddress_JSON(t *testing.T) {
	type wrapper struct {
		To Address `json:"to"`
	}

	data, err := json.Marshal(wrapper{To: MustParse(checksummed)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"to":"`+checksummed+`"}`, string(data))

	var decoded wrapper
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, MustParse(checksummed), decoded.To)

	require.Error(t, json.Unmarshal([]byte(`{"to":"0x1234"}`), &decoded))
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("nope") })
}
