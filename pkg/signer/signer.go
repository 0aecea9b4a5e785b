// Package signer provides the signing capability the dispatcher calls into.
//
// ISigner is the capability itself. EthereumSigner implements it on top of an
// IDigestSigner, which only has to produce raw secp256k1 signatures over 32
// byte digests; local keys and AWS KMS keys are both exposed that way.
package signer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/walletlink-go/pkg/address"
	"github.com/Layr-Labs/walletlink-go/pkg/types"
	"github.com/ethereum/go-ethereum/accounts"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// ErrUnsupported is returned by signers that cannot perform an operation.
var ErrUnsupported = errors.New("operation not supported by signer")

// SignatureLength is the size of an [R || S || V] signature.
const SignatureLength = crypto.SignatureLength

type ISigner interface {
	// SignMessage signs the keccak256 hash of message.
	SignMessage(ctx context.Context, message []byte, addr *address.Address) ([]byte, error)
	// SignPersonalMessage signs message with the EIP-191 personal message prefix.
	SignPersonalMessage(ctx context.Context, message []byte, addr *address.Address) ([]byte, error)
	// SignTransaction returns a copy of tx with V, R and S populated.
	SignTransaction(ctx context.Context, tx *types.Transaction) (*types.Transaction, error)
}

type IDigestSigner interface {
	// ResolveAccount returns the account that signs for addr, or the default
	// account when addr is nil.
	ResolveAccount(ctx context.Context, addr *address.Address) (address.Address, error)
	// SignDigest returns a 65 byte [R || S || V] signature with V in {0, 1}.
	SignDigest(ctx context.Context, account address.Address, digest []byte) ([]byte, error)
}

type EthereumSigner struct {
	digestSigner IDigestSigner
	txSigner     ethTypes.Signer
	logger       *zap.Logger
}

// NewEthereumSigner creates a signer that produces EIP-155 transaction
// signatures for chainID. A nil or zero chainID selects pre EIP-155 signing.
func NewEthereumSigner(digestSigner IDigestSigner, chainID *big.Int, logger *zap.Logger) *EthereumSigner {
	if chainID != nil && chainID.Sign() == 0 {
		chainID = nil
	}
	return &EthereumSigner{
		digestSigner: digestSigner,
		txSigner:     ethTypes.LatestSignerForChainID(chainID),
		logger:       logger,
	}
}

func (s *EthereumSigner) SignMessage(ctx context.Context, message []byte, addr *address.Address) ([]byte, error) {
	return s.signHash(ctx, crypto.Keccak256(message), addr)
}

func (s *EthereumSigner) SignPersonalMessage(ctx context.Context, message []byte, addr *address.Address) ([]byte, error) {
	return s.signHash(ctx, accounts.TextHash(message), addr)
}

func (s *EthereumSigner) signHash(ctx context.Context, hash []byte, addr *address.Address) ([]byte, error) {
	account, err := s.digestSigner.ResolveAccount(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve signing account: %w", err)
	}

	sig, err := s.digestSigner.SignDigest(ctx, account, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest: %w", err)
	}
	if len(sig) != SignatureLength {
		return nil, fmt.Errorf("invalid signature length %d", len(sig))
	}

	out := bytes.Clone(sig)
	out[crypto.RecoveryIDOffset] += 27

	s.logger.Sugar().Debugw("Signed message",
		zap.String("account", account.String()),
	)
	return out, nil
}

func (s *EthereumSigner) SignTransaction(ctx context.Context, tx *types.Transaction) (*types.Transaction, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction cannot be nil")
	}

	account, err := s.digestSigner.ResolveAccount(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve signing account: %w", err)
	}

	ethTx := ToEthereumTransaction(tx)
	hash := s.txSigner.Hash(ethTx)

	sig, err := s.digestSigner.SignDigest(ctx, account, hash.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction hash: %w", err)
	}

	signedTx, err := ethTx.WithSignature(s.txSigner, sig)
	if err != nil {
		return nil, fmt.Errorf("failed to apply transaction signature: %w", err)
	}

	s.logger.Sugar().Debugw("Signed transaction",
		zap.String("account", account.String()),
		zap.String("hash", signedTx.Hash().Hex()),
		zap.Uint64("nonce", tx.Nonce),
	)
	return FromSignedEthereumTransaction(tx, signedTx), nil
}

// ToEthereumTransaction converts tx to an unsigned go-ethereum legacy transaction.
func ToEthereumTransaction(tx *types.Transaction) *ethTypes.Transaction {
	to := tx.To.Common()
	return ethTypes.NewTx(&ethTypes.LegacyTx{
		Nonce:    tx.Nonce,
		GasPrice: tx.GasPrice,
		Gas:      tx.GasLimit,
		To:       &to,
		Value:    tx.Amount,
		Data:     tx.Payload,
	})
}

// FromSignedEthereumTransaction copies tx and fills in the signature values of signed.
func FromSignedEthereumTransaction(tx *types.Transaction, signed *ethTypes.Transaction) *types.Transaction {
	out := tx.Copy()
	out.V, out.R, out.S = signed.RawSignatureValues()
	return out
}
