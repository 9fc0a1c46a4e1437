package crypto

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	devKey0     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress0 = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	devAddress1 = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

func TestParsePrivateKey(t *testing.T) {
	for _, in := range []string{devKey0, "0x" + devKey0, " 0x" + devKey0 + "\n"} {
		key, err := ParsePrivateKey(in)
		require.NoError(t, err)
		require.Equal(t, common.HexToAddress(devAddress0), crypto.PubkeyToAddress(key.PublicKey))
	}
	_, err := ParsePrivateKey("0x1234")
	require.Error(t, err)
}

func TestDeriveDevMnemonic(t *testing.T) {
	key, err := Credentials{Mnemonic: DevMnemonic}.LoadKey(0)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress(devAddress0), crypto.PubkeyToAddress(key.PublicKey))

	key, err = Credentials{Mnemonic: DevMnemonic, HDPath: DefaultHDPath}.LoadKey(1)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress(devAddress1), crypto.PubkeyToAddress(key.PublicKey))
}

func TestCredentialsCheck(t *testing.T) {
	require.NoError(t, Credentials{}.Check())
	require.True(t, Credentials{}.Empty())
	require.Error(t, Credentials{PrivateKey: devKey0, Mnemonic: DevMnemonic}.Check())
	require.Error(t, Credentials{HDPath: DefaultHDPath}.Check())

	_, err := Credentials{}.LoadKey(0)
	require.ErrorIs(t, err, ErrNoCredentials)

	_, err = Credentials{PrivateKey: devKey0}.LoadKey(1)
	require.Error(t, err)
}

func TestDecryptKeystore(t *testing.T) {
	key, err := ParsePrivateKey(devKey0)
	require.NoError(t, err)
	blob, err := keystore.EncryptKey(&keystore.Key{
		Id:         uuid.New(),
		Address:    crypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key,
	}, "hunter2", keystore.LightScryptN, keystore.LightScryptP)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "deployer.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err := Credentials{KeystorePath: path, Password: "hunter2"}.LoadKey(0)
	require.NoError(t, err)
	require.Equal(t, key.D, got.D)

	_, err = Credentials{KeystorePath: path, Password: "wrong"}.LoadKey(0)
	require.Error(t, err)
}

func TestPrivateKeySignerFn(t *testing.T) {
	key, err := ParsePrivateKey(devKey0)
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey)
	chainID := big.NewInt(31337)
	sign := PrivateKeySignerFn(key, chainID)

	tx := types.NewTx(&types.DynamicFeeTx{ChainID: chainID, Nonce: 3, Gas: 21000, GasFeeCap: big.NewInt(2), GasTipCap: big.NewInt(1)})
	signed, err := sign(context.Background(), from, tx)
	require.NoError(t, err)

	sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	require.NoError(t, err)
	require.Equal(t, from, sender)

	_, err = sign(context.Background(), common.HexToAddress(devAddress1), tx)
	require.Error(t, err)
}
