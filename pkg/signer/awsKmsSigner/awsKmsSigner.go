package awsKmsSigner

import (
	"context"
	"crypto/ecdsa"
	"encoding/asn1"
	"fmt"
	"math/big"
	"sync"

	"github.com/Layr-Labs/walletlink-go/pkg/address"
	"github.com/Layr-Labs/walletlink-go/pkg/signer"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmsTypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// kmsAPI is the subset of the KMS client used for signing
type kmsAPI interface {
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
}

var (
	secp256k1N     = crypto.S256().Params().N
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)
)

// AWSKMSSigner signs digests with a single ECC_SECG_P256K1 key held in AWS KMS
type AWSKMSSigner struct {
	logger    *zap.Logger
	kmsClient kmsAPI
	keyId     string

	mu        sync.Mutex
	publicKey *ecdsa.PublicKey
	account   address.Address
}

var _ signer.IDigestSigner = (*AWSKMSSigner)(nil)

func NewAWSKMSSigner(awsCfg aws.Config, keyId string, logger *zap.Logger) *AWSKMSSigner {
	return newAWSKMSSigner(kms.NewFromConfig(awsCfg), keyId, logger)
}

func newAWSKMSSigner(client kmsAPI, keyId string, logger *zap.Logger) *AWSKMSSigner {
	return &AWSKMSSigner{
		logger:    logger,
		kmsClient: client,
		keyId:     keyId,
	}
}

// NewEthereumSigner wraps a KMS key in a full signer for chainID
func NewEthereumSigner(awsCfg aws.Config, keyId string, chainID *big.Int, logger *zap.Logger) *signer.EthereumSigner {
	return signer.NewEthereumSigner(NewAWSKMSSigner(awsCfg, keyId, logger), chainID, logger)
}

// PublicKey fetches and caches the public key of the KMS key
func (a *AWSKMSSigner) PublicKey(ctx context.Context) (*ecdsa.PublicKey, address.Address, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.publicKey != nil {
		return a.publicKey, a.account, nil
	}

	res, err := a.kmsClient.GetPublicKey(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(a.keyId),
	})
	if err != nil {
		return nil, address.Address{}, errors.Wrapf(err, "failed to get public key for key %s", a.keyId)
	}

	pub, err := parseECDSAPublicKey(res.PublicKey)
	if err != nil {
		return nil, address.Address{}, errors.Wrapf(err, "failed to parse public key for key %s", a.keyId)
	}

	a.publicKey = pub
	a.account = address.FromCommon(crypto.PubkeyToAddress(*pub))
	a.logger.Sugar().Infow("Loaded KMS signing key",
		zap.String("keyId", a.keyId),
		zap.String("address", a.account.String()),
	)
	return a.publicKey, a.account, nil
}

func (a *AWSKMSSigner) ResolveAccount(ctx context.Context, addr *address.Address) (address.Address, error) {
	_, account, err := a.PublicKey(ctx)
	if err != nil {
		return address.Address{}, err
	}
	if addr != nil && *addr != account {
		return address.Address{}, fmt.Errorf("KMS key %s does not control account %s", a.keyId, addr)
	}
	return account, nil
}

func (a *AWSKMSSigner) SignDigest(ctx context.Context, account address.Address, digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("hash must be exactly 32 bytes, got %d", len(digest))
	}

	expectedPubKey, expectedAccount, err := a.PublicKey(ctx)
	if err != nil {
		return nil, err
	}
	if account != expectedAccount {
		return nil, fmt.Errorf("KMS key %s does not control account %s", a.keyId, account)
	}

	signOutput, err := a.kmsClient.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(a.keyId),
		Message:          digest,
		SigningAlgorithm: kmsTypes.SigningAlgorithmSpecEcdsaSha256,
		MessageType:      kmsTypes.MessageTypeDigest,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to sign with key %s", a.keyId)
	}

	r, s, err := parseDERSignature(signOutput.Signature)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse KMS signature")
	}

	rBytes := r.FillBytes(make([]byte, 32))
	sBytes := s.FillBytes(make([]byte, 32))

	for recoveryId := 0; recoveryId < 2; recoveryId++ {
		signature := make([]byte, crypto.SignatureLength)
		copy(signature[0:32], rBytes)
		copy(signature[32:64], sBytes)
		signature[64] = byte(recoveryId)

		recovered, err := crypto.SigToPub(digest, signature)
		if err != nil {
			a.logger.Debug("Ecrecover failed",
				zap.Int("recoveryId", recoveryId),
				zap.Error(err))
			continue
		}
		if recovered.X.Cmp(expectedPubKey.X) == 0 && recovered.Y.Cmp(expectedPubKey.Y) == 0 {
			return signature, nil
		}
	}

	return nil, fmt.Errorf("could not determine valid recovery ID - signature recovery failed")
}

type asn1EcSig struct {
	R asn1.RawValue
	S asn1.RawValue
}

type asn1EcPublicKey struct {
	EcPublicKeyInfo asn1EcPublicKeyInfo
	PublicKey       asn1.BitString
}

type asn1EcPublicKeyInfo struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.ObjectIdentifier
}

// parseECDSAPublicKey parses the DER-encoded SubjectPublicKeyInfo returned by KMS
func parseECDSAPublicKey(derBytes []byte) (*ecdsa.PublicKey, error) {
	var asn1pubk asn1EcPublicKey
	if _, err := asn1.Unmarshal(derBytes, &asn1pubk); err != nil {
		return nil, fmt.Errorf("failed to parse ASN.1 public key: %w", err)
	}
	return crypto.UnmarshalPubkey(asn1pubk.PublicKey.Bytes)
}

// parseDERSignature returns r and s with s normalised to the lower half of the curve order
func parseDERSignature(der []byte) (*big.Int, *big.Int, error) {
	var sig asn1EcSig
	if _, err := asn1.Unmarshal(der, &sig); err != nil {
		return nil, nil, err
	}

	r := new(big.Int).SetBytes(sig.R.Bytes)
	s := new(big.Int).SetBytes(sig.S.Bytes)
	if r.Sign() == 0 || s.Sign() == 0 {
		return nil, nil, fmt.Errorf("signature values cannot be zero")
	}

	if s.Cmp(secp256k1HalfN) > 0 {
		s = new(big.Int).Sub(secp256k1N, s)
	}
	return r, s, nil
}
