// Package scripts holds the deploy scripts of the W3M staking contracts.
package scripts

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/w3m-protocol/w3m-staking/w3m-deploy/deploy"
	"github.com/w3m-protocol/w3m-staking/w3m-service/eth"
)

const (
	StakingContractName = "StakingContract"
	W3MTokenName        = "W3MToken"

	// PausedGroup holds scripts that are only run on request.
	PausedGroup = "deploy_paused"

	tokenDecimals = 18
)

var (
	InvestorAddress = common.HexToAddress("0x350441F8a82680a785FFA9d3EfEa60BB4cA417f8")
	OwnerAddress    = common.HexToAddress("0x498C47066AdeB22Ba23953d890eD6b540411e350")
	FrontendAddress = common.HexToAddress("0xAeBA2186EAC2f19a884BfD57B871632FE81cFE97")

	InvestorAllocation = eth.MustParseUnits("10000000", tokenDecimals)
	RewardPool         = eth.MustParseUnits("100000000", tokenDecimals)
	OwnerAllocation    = eth.MustParseUnits("100000000", tokenDecimals)
	FrontendAllocation = eth.MustParseUnits("10000000", tokenDecimals)
)

// All returns every deploy script.
func All() []deploy.Script {
	return []deploy.Script{
		{
			Name:  "00_deploy_staking_contract",
			Group: deploy.DefaultGroup,
			Tags:  []string{StakingContractName, W3MTokenName},
			Run:   DeployStakingContract,
		},
		{
			Name:  "05_deploy_w3m_token",
			Group: PausedGroup,
			Tags:  []string{W3MTokenName},
			Run:   DeployW3MToken,
		},
	}
}
