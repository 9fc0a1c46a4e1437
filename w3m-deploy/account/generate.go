package account

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/w3m-protocol/w3m-staking/w3m-service/txmgr"
)

var ErrKeyExists = errors.New("deployer key already exists")

// Generate creates a new deployer key and stores it as DEPLOYER_PRIVATE_KEY
// in the dotenv file at path. Other variables of the file are kept. An
// existing key is only replaced when force is set.
func Generate(path string, force bool) (common.Address, error) {
	env, err := readDotEnv(path)
	if err != nil {
		return common.Address{}, err
	}
	if _, ok := env[txmgr.DeployerPrivateKeyEnv]; ok && !force {
		return common.Address{}, fmt.Errorf("%w in %s, use --force to replace it", ErrKeyExists, path)
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to generate key: %w", err)
	}
	env[txmgr.DeployerPrivateKeyEnv] = hexutil.Encode(crypto.FromECDSA(key))
	if err := writeDotEnv(path, env); err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

// GenerateKeystore creates a new deployer key encrypted with password in
// the keystore directory dir and returns the address and file of the key.
func GenerateKeystore(dir, password string, scryptN, scryptP int) (common.Address, string, error) {
	acc, err := keystore.StoreKey(dir, password, scryptN, scryptP)
	if err != nil {
		return common.Address{}, "", fmt.Errorf("failed to store key: %w", err)
	}
	return acc.Address, acc.URL.Path, nil
}
