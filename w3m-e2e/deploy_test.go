package w3m_e2e

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/w3m-protocol/w3m-staking/w3m-deploy/deploy"
	"github.com/w3m-protocol/w3m-staking/w3m-deploy/deploy/deploytest"
	"github.com/w3m-protocol/w3m-staking/w3m-deploy/scripts"
	opcrypto "github.com/w3m-protocol/w3m-staking/w3m-service/crypto"
	"github.com/w3m-protocol/w3m-staking/w3m-service/testlog"
	"github.com/w3m-protocol/w3m-staking/w3m-service/txmgr"
	txmetrics "github.com/w3m-protocol/w3m-staking/w3m-service/txmgr/metrics"
)

type testHarness struct {
	env      *deploy.Environment
	sleeper  *deploytest.Sleeper
	deployer common.Address
}

func newTestHarness(t *testing.T) *testHarness {
	cfg := readTestConfig()
	if cfg.artifacts == "" {
		t.Skipf("%s is not set", ArtifactsEnv)
	}
	l := testlog.Logger(t, log.LvlInfo)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	url := cfg.rpcURL
	if url == "" {
		devnet, err := StartDevnet(ctx, l, cfg.image)
		if err != nil {
			t.Skipf("no devnet: %v", err)
		}
		t.Cleanup(devnet.Close)
		url = devnet.URL
	}

	network, err := deploy.LookupNetwork("localhost")
	require.NoError(t, err)
	client, rc, err := deploy.Dial(ctx, network, url)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	key, err := opcrypto.DeriveKey(opcrypto.DevMnemonic, opcrypto.DefaultHDPath, 0)
	require.NoError(t, err)
	txCfg, err := txmgr.NewConfig(txMgrConfig(), client, new(big.Int).SetUint64(network.ChainID), key)
	require.NoError(t, err)
	mgr, err := txmgr.NewSimpleTxManager("e2e", l, &txmetrics.NoopTxMetrics{}, txCfg)
	require.NoError(t, err)

	sleeper := &deploytest.Sleeper{}
	env, err := deploy.NewEnvironment(l, deploy.Config{
		Network:   network,
		Artifacts: deploy.NewArtifacts(cfg.artifacts),
		Accounts:  []deploy.TxSender{mgr},
		Caller:    client,
		Miner:     &deploy.RPCMiner{Client: rc},
		Sleeper:   sleeper,
	})
	require.NoError(t, err)
	return &testHarness{env: env, sleeper: sleeper, deployer: mgr.From()}
}

func (h *testHarness) run(t *testing.T, ctx context.Context, group string) {
	selected := deploy.Select(scripts.All(), group, nil)
	require.NotEmpty(t, selected)
	_, err := deploy.NewRunner(h.env.Log(), nil).Run(ctx, h.env, selected)
	require.NoError(t, err)
}

func (h *testHarness) token(t *testing.T) *scripts.W3MToken {
	c, err := h.env.GetContract(scripts.W3MTokenName, h.deployer)
	require.NoError(t, err)
	return &scripts.W3MToken{Contract: c}
}

func (h *testHarness) balance(t *testing.T, ctx context.Context, account common.Address) *big.Int {
	b, err := h.token(t).BalanceOf(ctx, account)
	require.NoError(t, err)
	return b
}

func requireAmount(t *testing.T, expected, actual *big.Int) {
	t.Helper()
	require.Equal(t, expected.String(), actual.String())
}

func TestDeployStakingContract(t *testing.T) {
	h := newTestHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	h.run(t, ctx, deploy.DefaultGroup)

	staking, err := h.env.GetContract(scripts.StakingContractName, h.deployer)
	require.NoError(t, err)

	requireAmount(t, scripts.InvestorAllocation, h.balance(t, ctx, scripts.InvestorAddress))
	requireAmount(t, scripts.RewardPool, h.balance(t, ctx, staking.Address()))
	requireAmount(t, scripts.OwnerAllocation, h.balance(t, ctx, scripts.OwnerAddress))

	out, err := h.token(t).Call(ctx, "totalSupply")
	require.NoError(t, err)
	supply := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	spent := new(big.Int).Add(scripts.InvestorAllocation, scripts.RewardPool)
	spent.Add(spent, scripts.OwnerAllocation)
	requireAmount(t, new(big.Int).Sub(supply, spent), h.balance(t, ctx, h.deployer))

	out, err = staking.Call(ctx, "owner")
	require.NoError(t, err)
	require.Equal(t, scripts.OwnerAddress, *abi.ConvertType(out[0], new(common.Address)).(*common.Address))

	require.Equal(t, []time.Duration{time.Second}, h.sleeper.Slept())
}

func TestDeployW3MTokenReusesToken(t *testing.T) {
	h := newTestHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	h.run(t, ctx, deploy.DefaultGroup)
	before := h.token(t).Address()
	h.run(t, ctx, scripts.PausedGroup)

	require.Equal(t, before, h.token(t).Address())
	requireAmount(t, scripts.FrontendAllocation, h.balance(t, ctx, scripts.FrontendAddress))
	require.True(t, h.env.Deployments()[1].Reused)
	require.Equal(t, []time.Duration{time.Second, 10 * time.Second, 5 * time.Second}, h.sleeper.Slept())
}
