package rpcSigner

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/walletlink-go/pkg/address"
	"github.com/Layr-Labs/walletlink-go/pkg/signer"
	"github.com/Layr-Labs/walletlink-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// RPCSigner delegates signing to a remote JSON-RPC signer exposing the eth
// namespace (geth, clef, web3signer).
type RPCSigner struct {
	client  *rpc.Client
	from    *address.Address
	chainID *big.Int
	logger  *zap.Logger
}

var _ signer.ISigner = (*RPCSigner)(nil)

type Options struct {
	// From is the account used when a request names none. When unset the
	// first account reported by eth_accounts is used.
	From *address.Address
	// ChainID is forwarded to eth_signTransaction when set.
	ChainID *big.Int
}

func NewRPCSigner(ctx context.Context, endpoint string, opts *Options, logger *zap.Logger) (*RPCSigner, error) {
	client, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial signer at %s", endpoint)
	}
	return NewRPCSignerFromClient(client, opts, logger), nil
}

func NewRPCSignerFromClient(client *rpc.Client, opts *Options, logger *zap.Logger) *RPCSigner {
	if opts == nil {
		opts = &Options{}
	}
	return &RPCSigner{
		client:  client,
		from:    opts.From,
		chainID: opts.ChainID,
		logger:  logger,
	}
}

func (r *RPCSigner) Close() {
	r.client.Close()
}

// SignMessage is not available over eth_sign, which always applies the
// personal message prefix.
func (r *RPCSigner) SignMessage(_ context.Context, _ []byte, _ *address.Address) ([]byte, error) {
	return nil, fmt.Errorf("raw message signing: %w", signer.ErrUnsupported)
}

func (r *RPCSigner) SignPersonalMessage(ctx context.Context, message []byte, addr *address.Address) ([]byte, error) {
	account, err := r.resolveAccount(ctx, addr)
	if err != nil {
		return nil, err
	}

	var sig hexutil.Bytes
	if err := r.client.CallContext(ctx, &sig, "eth_sign", account.Common(), hexutil.Bytes(message)); err != nil {
		return nil, errors.Wrap(err, "eth_sign failed")
	}
	if len(sig) != signer.SignatureLength {
		return nil, fmt.Errorf("remote signer returned %d byte signature", len(sig))
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

type transactionArgs struct {
	From     common.Address  `json:"from"`
	To       *common.Address `json:"to"`
	Gas      hexutil.Uint64  `json:"gas"`
	GasPrice *hexutil.Big    `json:"gasPrice"`
	Value    *hexutil.Big    `json:"value"`
	Nonce    hexutil.Uint64  `json:"nonce"`
	Data     hexutil.Bytes   `json:"data"`
	ChainID  *hexutil.Big    `json:"chainId,omitempty"`
}

func (r *RPCSigner) SignTransaction(ctx context.Context, tx *types.Transaction) (*types.Transaction, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction cannot be nil")
	}
	account, err := r.resolveAccount(ctx, nil)
	if err != nil {
		return nil, err
	}

	to := tx.To.Common()
	args := transactionArgs{
		From:     account.Common(),
		To:       &to,
		Gas:      hexutil.Uint64(tx.GasLimit),
		GasPrice: (*hexutil.Big)(bigOrZero(tx.GasPrice)),
		Value:    (*hexutil.Big)(bigOrZero(tx.Amount)),
		Nonce:    hexutil.Uint64(tx.Nonce),
		Data:     tx.Payload,
	}
	if r.chainID != nil {
		args.ChainID = (*hexutil.Big)(r.chainID)
	}

	var raw json.RawMessage
	if err := r.client.CallContext(ctx, &raw, "eth_signTransaction", args); err != nil {
		return nil, errors.Wrap(err, "eth_signTransaction failed")
	}

	encoded, err := decodeSignedTransaction(raw)
	if err != nil {
		return nil, err
	}

	var signedTx ethTypes.Transaction
	if err := signedTx.UnmarshalBinary(encoded); err != nil {
		return nil, errors.Wrap(err, "failed to decode signed transaction")
	}
	if err := r.verifySignedTransaction(tx, &signedTx, account); err != nil {
		return nil, err
	}

	r.logger.Sugar().Debugw("Remote signer signed transaction",
		zap.String("account", account.String()),
		zap.String("hash", signedTx.Hash().Hex()),
	)
	return signer.FromSignedEthereumTransaction(tx, &signedTx), nil
}

// verifySignedTransaction checks that signed carries exactly the fields of tx
// and was signed by account.
func (r *RPCSigner) verifySignedTransaction(tx *types.Transaction, signed *ethTypes.Transaction, account address.Address) error {
	if signed.Type() != ethTypes.LegacyTxType {
		return fmt.Errorf("remote signer returned a type %d transaction", signed.Type())
	}

	var txSigner ethTypes.Signer = ethTypes.HomesteadSigner{}
	if signed.Protected() {
		if r.chainID != nil && signed.ChainId().Cmp(r.chainID) != 0 {
			return fmt.Errorf("remote signer used chain id %s, expected %s", signed.ChainId(), r.chainID)
		}
		txSigner = ethTypes.LatestSignerForChainID(signed.ChainId())
	} else if r.chainID != nil {
		return fmt.Errorf("remote signer returned a transaction without replay protection")
	}

	if txSigner.Hash(signer.ToEthereumTransaction(tx)) != txSigner.Hash(signed) {
		return fmt.Errorf("remote signer altered the transaction")
	}

	sender, err := ethTypes.Sender(txSigner, signed)
	if err != nil {
		return errors.Wrap(err, "failed to recover transaction sender")
	}
	if sender != account.Common() {
		return fmt.Errorf("transaction signed by %s, expected %s", sender.Hex(), account.String())
	}
	return nil
}

// decodeSignedTransaction accepts either a bare hex string (web3signer) or the
// {"raw": ..., "tx": ...} object returned by geth and clef.
func decodeSignedTransaction(raw json.RawMessage) ([]byte, error) {
	var encoded hexutil.Bytes
	if err := json.Unmarshal(raw, &encoded); err == nil {
		return encoded, nil
	}

	var result struct {
		Raw hexutil.Bytes `json:"raw"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.Wrap(err, "unexpected eth_signTransaction result")
	}
	if len(result.Raw) == 0 {
		return nil, fmt.Errorf("eth_signTransaction returned no raw transaction")
	}
	return result.Raw, nil
}

func (r *RPCSigner) resolveAccount(ctx context.Context, addr *address.Address) (address.Address, error) {
	if addr != nil {
		return *addr, nil
	}
	if r.from != nil {
		return *r.from, nil
	}

	var accounts []common.Address
	if err := r.client.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return address.Address{}, errors.Wrap(err, "eth_accounts failed")
	}
	if len(accounts) == 0 {
		return address.Address{}, fmt.Errorf("remote signer has no accounts")
	}
	return address.FromCommon(accounts[0]), nil
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
