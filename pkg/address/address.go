// Package address implements the 20 byte account identifier used on the wire.
//
// The canonical text form is EIP-55 checksummed hex. Parsing accepts hex in a
// single case (no checksum information) and mixed case only when the checksum
// matches.
package address

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const Length = common.AddressLength

var (
	ErrInvalidAddress  = errors.New("invalid address")
	ErrInvalidChecksum = errors.New("invalid address checksum")
)

type Address common.Address

// Parse parses a hex address with or without the 0x prefix.
func Parse(s string) (Address, error) {
	if !common.IsHexAddress(s) {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	addr := common.HexToAddress(s)

	body := s
	if has0xPrefix(body) {
		body = body[2:]
	}
	if isMixedCase(body) && addr.Hex()[2:] != body {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidChecksum, s)
	}
	return Address(addr), nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromCommon converts a go-ethereum address.
func FromCommon(a common.Address) Address {
	return Address(a)
}

// Common returns the go-ethereum representation.
func (a Address) Common() common.Address {
	return common.Address(a)
}

// String returns the EIP-55 checksummed form.
func (a Address) String() string {
	return common.Address(a).Hex()
}

func (a Address) Bytes() []byte {
	return common.Address(a).Bytes()
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

func isMixedCase(s string) bool {
	return strings.ToLower(s) != s && strings.ToUpper(s) != s
}
