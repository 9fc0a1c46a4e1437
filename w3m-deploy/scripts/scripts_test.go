package scripts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/go-cmp/cmp"
	"github.com/lmittmann/w3"
	"github.com/stretchr/testify/require"

	"github.com/w3m-protocol/w3m-staking/w3m-deploy/deploy"
	"github.com/w3m-protocol/w3m-staking/w3m-deploy/deploy/deploytest"
	"github.com/w3m-protocol/w3m-staking/w3m-service/eth"
	"github.com/w3m-protocol/w3m-staking/w3m-service/testlog"
)

var (
	funcUpdateW3MTokenAddress = w3.MustNewFunc("updateW3MTokenAddress(address)", "")
	funcAddToWhiteList        = w3.MustNewFunc("addToWhiteList(address)", "")
	funcTransferOwnership     = w3.MustNewFunc("transferOwnership(address)", "")
	funcTransfer              = w3.MustNewFunc("transfer(address,uint256)", "bool")
	funcBalanceOf             = w3.MustNewFunc("balanceOf(address)", "uint256")
)

var deployer = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

// step is a decoded transaction or call made against the chain.
type step struct {
	To     common.Address
	Method string
	Args   []string
}

type harness struct {
	env     *deploy.Environment
	chain   *deploytest.Chain
	sleeper *deploytest.Sleeper
	arts    *deploy.Artifacts
}

func newHarness(t *testing.T) *harness {
	arts := deploy.NewArtifacts("../deploy/testdata/artifacts")
	token, err := arts.Artifact(W3MTokenName)
	require.NoError(t, err)
	chain := deploytest.NewChain(deployer)
	chain.Responder = func(msg ethereum.CallMsg) ([]byte, error) {
		if !bytes.HasPrefix(msg.Data, funcBalanceOf.Selector[:]) {
			return nil, errors.New("unexpected call")
		}
		return token.ABI.Methods["balanceOf"].Outputs.Pack(eth.MustParseUnits("10000000", 18))
	}
	sleeper := &deploytest.Sleeper{}
	network, err := deploy.LookupNetwork("localhost")
	require.NoError(t, err)
	env, err := deploy.NewEnvironment(testlog.Logger(t, log.LvlCrit), deploy.Config{
		Network:   network,
		Artifacts: arts,
		Accounts:  []deploy.TxSender{chain},
		Caller:    chain,
		Sleeper:   sleeper,
	})
	require.NoError(t, err)
	return &harness{env: env, chain: chain, sleeper: sleeper, arts: arts}
}

func (h *harness) decode(t *testing.T, to *common.Address, data []byte) step {
	if to == nil {
		for _, name := range []string{StakingContractName, W3MTokenName} {
			art, err := h.arts.Artifact(name)
			require.NoError(t, err)
			if bytes.Equal(art.Bytecode, data) {
				return step{Method: "create " + name}
			}
		}
		t.Fatalf("unknown creation code %x", data)
	}
	var (
		addr   common.Address
		amount big.Int
	)
	switch {
	case bytes.HasPrefix(data, funcUpdateW3MTokenAddress.Selector[:]):
		require.NoError(t, funcUpdateW3MTokenAddress.DecodeArgs(data, &addr))
		return step{To: *to, Method: "updateW3MTokenAddress", Args: []string{addr.Hex()}}
	case bytes.HasPrefix(data, funcAddToWhiteList.Selector[:]):
		require.NoError(t, funcAddToWhiteList.DecodeArgs(data, &addr))
		return step{To: *to, Method: "addToWhiteList", Args: []string{addr.Hex()}}
	case bytes.HasPrefix(data, funcTransferOwnership.Selector[:]):
		require.NoError(t, funcTransferOwnership.DecodeArgs(data, &addr))
		return step{To: *to, Method: "transferOwnership", Args: []string{addr.Hex()}}
	case bytes.HasPrefix(data, funcTransfer.Selector[:]):
		require.NoError(t, funcTransfer.DecodeArgs(data, &addr, &amount))
		return step{To: *to, Method: "transfer", Args: []string{addr.Hex(), amount.String()}}
	case bytes.HasPrefix(data, funcBalanceOf.Selector[:]):
		require.NoError(t, funcBalanceOf.DecodeArgs(data, &addr))
		return step{To: *to, Method: "balanceOf", Args: []string{addr.Hex()}}
	}
	t.Fatalf("unknown calldata %x", data)
	return step{}
}

func (h *harness) txSteps(t *testing.T) []step {
	var steps []step
	for _, tx := range h.chain.Txs() {
		steps = append(steps, h.decode(t, tx.To, tx.Data))
	}
	return steps
}

func (h *harness) callSteps(t *testing.T) []step {
	var steps []step
	for _, msg := range h.chain.Calls() {
		steps = append(steps, h.decode(t, msg.To, msg.Data))
	}
	return steps
}

func tokens(n int64) string {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)).String()
}

func TestAllocations(t *testing.T) {
	require.Equal(t, tokens(10_000_000), InvestorAllocation.String())
	require.Equal(t, tokens(100_000_000), RewardPool.String())
	require.Equal(t, tokens(100_000_000), OwnerAllocation.String())
	require.Equal(t, tokens(10_000_000), FrontendAllocation.String())
}

func TestDeployStakingContractSequence(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, DeployStakingContract(context.Background(), h.env))

	staking := crypto.CreateAddress(deployer, 0)
	token := crypto.CreateAddress(deployer, 1)
	investor := "0x350441F8a82680a785FFA9d3EfEa60BB4cA417f8"
	owner := "0x498C47066AdeB22Ba23953d890eD6b540411e350"
	expected := []step{
		{Method: "create StakingContract"},
		{Method: "create W3MToken"},
		{To: staking, Method: "updateW3MTokenAddress", Args: []string{token.Hex()}},
		{To: token, Method: "transfer", Args: []string{investor, tokens(10_000_000)}},
		{To: staking, Method: "addToWhiteList", Args: []string{investor}},
		{To: staking, Method: "addToWhiteList", Args: []string{owner}},
		{To: token, Method: "transfer", Args: []string{staking.Hex(), tokens(100_000_000)}},
		{To: token, Method: "transfer", Args: []string{owner, tokens(100_000_000)}},
		{To: staking, Method: "transferOwnership", Args: []string{owner}},
	}
	if diff := cmp.Diff(expected, h.txSteps(t)); diff != "" {
		t.Fatalf("unexpected transactions (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]step{{To: token, Method: "balanceOf", Args: []string{investor}}}, h.callSteps(t)); diff != "" {
		t.Fatalf("unexpected calls (-want +got):\n%s", diff)
	}
	require.Equal(t, []time.Duration{time.Second}, h.sleeper.Slept())
}

func TestDeployW3MTokenSequence(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, DeployW3MToken(context.Background(), h.env))

	token := crypto.CreateAddress(deployer, 0)
	frontend := "0xAeBA2186EAC2f19a884BfD57B871632FE81cFE97"
	expected := []step{
		{Method: "create W3MToken"},
		{To: token, Method: "transfer", Args: []string{frontend, tokens(10_000_000)}},
	}
	if diff := cmp.Diff(expected, h.txSteps(t)); diff != "" {
		t.Fatalf("unexpected transactions (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]step{{To: token, Method: "balanceOf", Args: []string{frontend}}}, h.callSteps(t)); diff != "" {
		t.Fatalf("unexpected calls (-want +got):\n%s", diff)
	}
	require.Equal(t, []time.Duration{10 * time.Second, 5 * time.Second}, h.sleeper.Slept())
}

// TestDeployStakingContractStopsAtFirstFailure fails every transaction in
// turn and checks that nothing is sent after the failing one.
func TestDeployStakingContractStopsAtFirstFailure(t *testing.T) {
	for n := 0; n < 9; n++ {
		n := n
		t.Run(fmt.Sprintf("tx%d", n), func(t *testing.T) {
			h := newHarness(t)
			h.chain.FailAt(n, errors.New("connection refused"))

			err := DeployStakingContract(context.Background(), h.env)
			require.ErrorContains(t, err, "connection refused")
			require.Len(t, h.chain.Txs(), n)
		})
	}
}

func TestDeployStakingContractStopsAtRevert(t *testing.T) {
	h := newHarness(t)
	// investor transfer
	h.chain.RevertAt(3)

	err := DeployStakingContract(context.Background(), h.env)
	require.ErrorIs(t, err, deploy.ErrReverted)
	require.ErrorContains(t, err, "failed to fund investor")
	require.Len(t, h.chain.Txs(), 4)
	require.Empty(t, h.chain.Calls())
}

func TestDeployStakingContractBalanceReadFailure(t *testing.T) {
	h := newHarness(t)
	h.chain.Responder = func(ethereum.CallMsg) ([]byte, error) {
		return nil, errors.New("header not found")
	}

	err := DeployStakingContract(context.Background(), h.env)
	require.ErrorContains(t, err, "failed to read investor balance")
	// creations, token address and investor transfer
	require.Len(t, h.chain.Txs(), 4)
}

func TestScriptsHonourCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, s := range All() {
		h := newHarness(t)
		require.ErrorIs(t, s.Run(ctx, h.env), context.Canceled)
		require.Empty(t, h.chain.Txs())
	}
}

func TestPausedScriptReusesToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, DeployStakingContract(ctx, h.env))
	require.NoError(t, DeployW3MToken(ctx, h.env))

	txs := h.chain.Txs()
	require.Len(t, txs, 10)
	last := h.decode(t, txs[9].To, txs[9].Data)
	require.Equal(t, step{
		To:     crypto.CreateAddress(deployer, 1),
		Method: "transfer",
		Args:   []string{"0xAeBA2186EAC2f19a884BfD57B871632FE81cFE97", tokens(10_000_000)},
	}, last)
}

func TestAllSelection(t *testing.T) {
	scripts := All()

	selected := deploy.Select(scripts, deploy.DefaultGroup, nil)
	require.Len(t, selected, 1)
	require.Equal(t, "00_deploy_staking_contract", selected[0].Name)

	selected = deploy.Select(scripts, PausedGroup, []string{W3MTokenName})
	require.Len(t, selected, 1)
	require.Equal(t, "05_deploy_w3m_token", selected[0].Name)

	require.Len(t, deploy.Select(scripts, deploy.DefaultGroup, []string{StakingContractName}), 1)
	require.Empty(t, deploy.Select(scripts, PausedGroup, []string{StakingContractName}))
	require.Equal(t, []string{deploy.DefaultGroup, PausedGroup}, deploy.Groups(scripts))
}
