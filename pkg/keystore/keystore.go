package keystore

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Layr-Labs/walletlink-go/pkg/address"
	ethKeystore "github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeyStore manages secp256k1 signing keys and provides thread-safe access
type KeyStore struct {
	mu sync.RWMutex

	keys           map[address.Address]*ecdsa.PrivateKey
	order          []address.Address
	defaultAccount *address.Address
}

// NewKeyStore creates a new key store
func NewKeyStore() *KeyStore {
	return &KeyStore{
		keys: make(map[address.Address]*ecdsa.PrivateKey),
	}
}

// AddKey adds a private key and returns its address. Adding a key twice is a no-op.
func (ks *KeyStore) AddKey(key *ecdsa.PrivateKey) (address.Address, error) {
	if key == nil {
		return address.Address{}, fmt.Errorf("private key cannot be nil")
	}
	addr := address.FromCommon(crypto.PubkeyToAddress(key.PublicKey))

	ks.mu.Lock()
	defer ks.mu.Unlock()

	if _, exists := ks.keys[addr]; !exists {
		ks.order = append(ks.order, addr)
	}
	ks.keys[addr] = key
	return addr, nil
}

// AddHexKey adds a hex encoded private key, with or without the 0x prefix.
func (ks *KeyStore) AddHexKey(privateKeyHex string) (address.Address, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return address.Address{}, fmt.Errorf("failed to parse private key: %w", err)
	}
	return ks.AddKey(key)
}

// ImportKeyFile decrypts a go-ethereum (web3 secret storage) key file.
func (ks *KeyStore) ImportKeyFile(path string, password string) (address.Address, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return address.Address{}, fmt.Errorf("failed to read key file %s: %w", path, err)
	}

	key, err := ethKeystore.DecryptKey(data, password)
	if err != nil {
		return address.Address{}, fmt.Errorf("failed to decrypt key file %s: %w", path, err)
	}
	return ks.AddKey(key.PrivateKey)
}

// ImportKeyDir imports every regular, non-hidden file in dir as a key file.
func (ks *KeyStore) ImportKeyDir(dir string, password string) ([]address.Address, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	imported := make([]address.Address, 0, len(names))
	for _, name := range names {
		addr, err := ks.ImportKeyFile(filepath.Join(dir, name), password)
		if err != nil {
			return nil, err
		}
		imported = append(imported, addr)
	}
	return imported, nil
}

// Get returns the key for addr
func (ks *KeyStore) Get(addr address.Address) (*ecdsa.PrivateKey, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	key, ok := ks.keys[addr]
	if !ok {
		return nil, fmt.Errorf("no key for account %s", addr)
	}
	return key, nil
}

// Has reports whether the store holds a key for addr
func (ks *KeyStore) Has(addr address.Address) bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	_, ok := ks.keys[addr]
	return ok
}

// Remove deletes the key for addr, clearing the default if it pointed there
func (ks *KeyStore) Remove(addr address.Address) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if _, ok := ks.keys[addr]; !ok {
		return
	}
	delete(ks.keys, addr)
	for i, a := range ks.order {
		if a == addr {
			ks.order = append(ks.order[:i], ks.order[i+1:]...)
			break
		}
	}
	if ks.defaultAccount != nil && *ks.defaultAccount == addr {
		ks.defaultAccount = nil
	}
}

// SetDefault selects the account used when a request names none
func (ks *KeyStore) SetDefault(addr address.Address) error {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if _, ok := ks.keys[addr]; !ok {
		return fmt.Errorf("no key for account %s", addr)
	}
	ks.defaultAccount = &addr
	return nil
}

// Default returns the default account, falling back to the first key added
func (ks *KeyStore) Default() (address.Address, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	if ks.defaultAccount != nil {
		return *ks.defaultAccount, nil
	}
	if len(ks.order) == 0 {
		return address.Address{}, fmt.Errorf("keystore is empty")
	}
	return ks.order[0], nil
}

// Accounts returns all accounts in insertion order
func (ks *KeyStore) Accounts() []address.Address {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	out := make([]address.Address, len(ks.order))
	copy(out, ks.order)
	return out
}
