/*
Package w3m_e2e runs the deploy scripts against a real development node.

The tests need the compiled hardhat artifacts of the staking contracts, they
are skipped unless W3M_E2E_ARTIFACTS points at the artifacts directory
(usually the artifacts/ folder of the contracts repository after
`npx hardhat compile`).

By default an anvil node is started in a docker container for the duration
of a test. Set W3M_E2E_RPC_URL to run against a node that is already up,
for example `npx hardhat node` or `anvil`. The node must run chain id 31337
and fund the accounts of the development mnemonic.
*/
package w3m_e2e

import (
	"os"
	"time"

	"github.com/w3m-protocol/w3m-staking/w3m-service/txmgr"
)

const (
	ArtifactsEnv = "W3M_E2E_ARTIFACTS"
	RPCURLEnv    = "W3M_E2E_RPC_URL"
	ImageEnv     = "W3M_E2E_IMAGE"
)

type TestConfig struct {
	artifacts string
	rpcURL    string
	image     string
}

func readTestConfig() TestConfig {
	cfg := TestConfig{
		artifacts: os.Getenv(ArtifactsEnv),
		rpcURL:    os.Getenv(RPCURLEnv),
		image:     os.Getenv(ImageEnv),
	}
	if cfg.image == "" {
		cfg.image = DefaultAnvilImage
	}
	return cfg
}

func txMgrConfig() txmgr.CLIConfig {
	return txmgr.CLIConfig{
		NumConfirmations:          1,
		SafeAbortNonceTooLowCount: 3,
		ResubmissionTimeout:       10 * time.Second,
		ReceiptQueryInterval:      100 * time.Millisecond,
		NetworkTimeout:            5 * time.Second,
		TxNotInMempoolTimeout:     time.Minute,
	}
}
