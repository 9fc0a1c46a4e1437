package deployer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"

	"github.com/w3m-protocol/w3m-staking/w3m-deploy/deploy"
	"github.com/w3m-protocol/w3m-staking/w3m-deploy/scripts"
	opcrypto "github.com/w3m-protocol/w3m-staking/w3m-service/crypto"
	oplog "github.com/w3m-protocol/w3m-staking/w3m-service/log"
	"github.com/w3m-protocol/w3m-staking/w3m-service/testlog"
	"github.com/w3m-protocol/w3m-staking/w3m-service/txmgr"
)

var devAccount0 = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

func testConfig(network string) CLIConfig {
	return CLIConfig{
		Network:          network,
		Artifacts:        "artifacts",
		Group:            deploy.DefaultGroup,
		AutoMineInterval: deploy.DefaultAutoMineInterval,
		AccountTimeout:   time.Second,
		TxMgrConfig: txmgr.CLIConfig{
			NumConfirmations:          1,
			SafeAbortNonceTooLowCount: 3,
			ResubmissionTimeout:       48 * time.Second,
			ReceiptQueryInterval:      time.Second,
			NetworkTimeout:            10 * time.Second,
			TxNotInMempoolTimeout:     2 * time.Minute,
		},
		LogConfig: oplog.DefaultCLIConfig(),
	}
}

func newTestDeployer(t *testing.T, cfg CLIConfig, prompt PasswordPrompt) (*Deployer, *bytes.Buffer) {
	var out bytes.Buffer
	d, err := New(cfg, testlog.Logger(t, log.LvlCrit), prompt, &out)
	require.NoError(t, err)
	return d, &out
}

func TestConfigCheck(t *testing.T) {
	require.NoError(t, testConfig("localhost").Check())

	cfg := testConfig("ropsten")
	cfg.Group = ""
	cfg.TxMgrConfig.PrivateKey = "0x01"
	cfg.TxMgrConfig.Mnemonic = opcrypto.DevMnemonic
	err := cfg.Check()
	require.ErrorIs(t, err, deploy.ErrUnknownNetwork)
	require.ErrorContains(t, err, "must select a group")
	require.ErrorContains(t, err, "only one of private key, mnemonic or keystore")
}

func TestKeyFallsBackToDevMnemonicOnLocalNetworks(t *testing.T) {
	d, _ := newTestDeployer(t, testConfig("localhost"), nil)

	key, err := d.key()
	require.NoError(t, err)
	require.Equal(t, devAccount0, crypto.PubkeyToAddress(key.PublicKey))
}

func TestKeyRequiredOnLiveNetworks(t *testing.T) {
	d, _ := newTestDeployer(t, testConfig("sepolia"), nil)

	_, err := d.key()
	require.ErrorIs(t, err, opcrypto.ErrNoCredentials)
}

func TestKeyFromPrivateKey(t *testing.T) {
	cfg := testConfig("sepolia")
	cfg.TxMgrConfig.PrivateKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	d, _ := newTestDeployer(t, cfg, nil)

	key, err := d.key()
	require.NoError(t, err)
	require.Equal(t, devAccount0, crypto.PubkeyToAddress(key.PublicKey))
}

func TestKeyPromptsForKeystorePassword(t *testing.T) {
	dir := t.TempDir()
	acc, err := keystore.StoreKey(dir, "hunter2", keystore.LightScryptN, keystore.LightScryptP)
	require.NoError(t, err)

	cfg := testConfig("sepolia")
	cfg.TxMgrConfig.KeystorePath = acc.URL.Path
	var prompted []string
	d, _ := newTestDeployer(t, cfg, func(prompt string) (string, error) {
		prompted = append(prompted, prompt)
		return "hunter2", nil
	})

	key, err := d.key()
	require.NoError(t, err)
	require.Equal(t, acc.Address, crypto.PubkeyToAddress(key.PublicKey))
	require.Len(t, prompted, 1)

	// a password file is used without prompting
	passwordFile := filepath.Join(dir, "password")
	require.NoError(t, os.WriteFile(passwordFile, []byte("hunter2\n"), 0o600))
	cfg.TxMgrConfig.PasswordFile = passwordFile
	d, _ = newTestDeployer(t, cfg, nil)
	key, err = d.key()
	require.NoError(t, err)
	require.Equal(t, acc.Address, crypto.PubkeyToAddress(key.PublicKey))
}

func TestDeployWithoutMatchingScripts(t *testing.T) {
	cfg := testConfig("localhost")
	cfg.Tags = []string{"Unknown"}
	d, _ := newTestDeployer(t, cfg, nil)

	err := d.Deploy(context.Background(), scripts.All())
	require.ErrorContains(t, err, "no deploy scripts")
}

func TestDeployRejectsWrongChain(t *testing.T) {
	url := newChainIDNode(t, "0x1")
	cfg := testConfig("localhost")
	cfg.RPCURL = url
	d, _ := newTestDeployer(t, cfg, nil)

	err := d.Deploy(context.Background(), scripts.All())
	require.ErrorIs(t, err, deploy.ErrChainIDMismatch)
}

func TestGenerate(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	d, out := newTestDeployer(t, testConfig("localhost"), nil)

	require.NoError(t, d.Generate(envFile))
	env, err := godotenv.Read(envFile)
	require.NoError(t, err)
	key, err := opcrypto.ParsePrivateKey(env[txmgr.DeployerPrivateKeyEnv])
	require.NoError(t, err)
	require.True(t, strings.Contains(out.String(), crypto.PubkeyToAddress(key.PublicKey).Hex()))
}
