package localSigner

import (
	"context"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/walletlink-go/pkg/address"
	"github.com/Layr-Labs/walletlink-go/pkg/keystore"
	"github.com/Layr-Labs/walletlink-go/pkg/signer"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// LocalSigner signs digests with keys held in memory
type LocalSigner struct {
	keyStore *keystore.KeyStore
	logger   *zap.Logger
}

var _ signer.IDigestSigner = (*LocalSigner)(nil)

func NewLocalSigner(ks *keystore.KeyStore, logger *zap.Logger) *LocalSigner {
	return &LocalSigner{
		keyStore: ks,
		logger:   logger,
	}
}

// NewEthereumSigner is a convenience for wrapping a key store in a full signer.
func NewEthereumSigner(ks *keystore.KeyStore, chainID *big.Int, logger *zap.Logger) *signer.EthereumSigner {
	return signer.NewEthereumSigner(NewLocalSigner(ks, logger), chainID, logger)
}

func (l *LocalSigner) ResolveAccount(_ context.Context, addr *address.Address) (address.Address, error) {
	if addr == nil {
		return l.keyStore.Default()
	}
	if !l.keyStore.Has(*addr) {
		return address.Address{}, fmt.Errorf("no key for account %s", addr)
	}
	return *addr, nil
}

func (l *LocalSigner) SignDigest(_ context.Context, account address.Address, digest []byte) ([]byte, error) {
	key, err := l.keyStore.Get(account)
	if err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(digest, key)
	if err != nil {
		l.logger.Sugar().Errorw("Failed to sign digest",
			zap.String("account", account.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to sign digest: %w", err)
	}
	return sig, nil
}
