// Package crypto builds transaction signers for the deployer account from a
// private key, a mnemonic or an encrypted keystore file.
package crypto

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	hdwallet "github.com/ethereum-optimism/go-ethereum-hdwallet"
)

const (
	// DefaultHDPath is the base derivation path, account i is DefaultHDPath with the
	// last component replaced by i.
	DefaultHDPath = "m/44'/60'/0'/0/0"

	// DevMnemonic funds the default accounts of local development nodes.
	DevMnemonic = "test test test test test test test test test test test junk"
)

var ErrNoCredentials = errors.New("no deployer credentials configured")

// SignerFn signs a transaction on behalf of address.
type SignerFn func(ctx context.Context, address common.Address, tx *types.Transaction) (*types.Transaction, error)

// SignerFactory binds a signer to a chain id.
type SignerFactory func(chainID *big.Int) SignerFn

// PrivateKeySignerFn returns a SignerFn that only signs for the address of key.
func PrivateKeySignerFn(key *ecdsa.PrivateKey, chainID *big.Int) SignerFn {
	from := crypto.PubkeyToAddress(key.PublicKey)
	signer := types.LatestSignerForChainID(chainID)
	return func(_ context.Context, address common.Address, tx *types.Transaction) (*types.Transaction, error) {
		if address != from {
			return nil, fmt.Errorf("not authorized to sign for %s", address)
		}
		return types.SignTx(tx, signer, key)
	}
}

// Credentials selects where the deployer key comes from. Exactly one source
// may be set.
type Credentials struct {
	PrivateKey   string
	Mnemonic     string
	HDPath       string
	KeystorePath string
	Password     string
}

func (c Credentials) Empty() bool {
	return c.PrivateKey == "" && c.Mnemonic == "" && c.KeystorePath == ""
}

func (c Credentials) Check() error {
	set := 0
	for _, v := range []string{c.PrivateKey, c.Mnemonic, c.KeystorePath} {
		if v != "" {
			set++
		}
	}
	if set > 1 {
		return errors.New("only one of private key, mnemonic or keystore may be set")
	}
	if c.HDPath != "" && c.Mnemonic == "" {
		return errors.New("hd path requires a mnemonic")
	}
	return nil
}

// LoadKey resolves the key of account index from the configured source.
// Only mnemonics can produce more than one account.
func (c Credentials) LoadKey(index uint32) (*ecdsa.PrivateKey, error) {
	if err := c.Check(); err != nil {
		return nil, err
	}
	switch {
	case c.PrivateKey != "":
		if index != 0 {
			return nil, fmt.Errorf("private key provides only account 0, requested %d", index)
		}
		return ParsePrivateKey(c.PrivateKey)
	case c.Mnemonic != "":
		path := c.HDPath
		if path == "" {
			path = DefaultHDPath
		}
		return DeriveKey(c.Mnemonic, path, index)
	case c.KeystorePath != "":
		if index != 0 {
			return nil, fmt.Errorf("keystore provides only account 0, requested %d", index)
		}
		return DecryptKeystore(c.KeystorePath, c.Password)
	default:
		return nil, ErrNoCredentials
	}
}

func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return key, nil
}

// DeriveKey derives account index below the parent of hdPath.
func DeriveKey(mnemonic, hdPath string, index uint32) (*ecdsa.PrivateKey, error) {
	wallet, err := hdwallet.NewFromMnemonic(strings.TrimSpace(mnemonic))
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	path, err := hdwallet.ParseDerivationPath(hdPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse hd path: %w", err)
	}
	if index != 0 {
		path = append(accounts.DerivationPath{}, path...)
		path[len(path)-1] += index
	}
	account, err := wallet.Derive(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to derive account: %w", err)
	}
	return wallet.PrivateKey(account)
}

func DecryptKeystore(path, password string) (*ecdsa.PrivateKey, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}
	key, err := keystore.DecryptKey(blob, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt keystore: %w", err)
	}
	return key.PrivateKey, nil
}
