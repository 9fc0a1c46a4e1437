package scripts

import (
	"context"
	"fmt"
	"time"

	"github.com/w3m-protocol/w3m-staking/w3m-deploy/deploy"
	"github.com/w3m-protocol/w3m-staking/w3m-service/eth"
)

// DeployStakingContract deploys the staking contract and the token, points
// the staking contract at the token, funds the investor, the reward pool and
// the owner, whitelists investor and owner, and hands the staking contract
// over to the owner.
//
// On local networks the deployer is the first funded dev account. Live
// networks need a funded DEPLOYER_PRIVATE_KEY, see the generate and account
// commands.
func DeployStakingContract(ctx context.Context, env deploy.Env) error {
	log := env.Log()
	deployer, err := env.NamedAccount("deployer")
	if err != nil {
		return err
	}

	if err := env.Sleep(ctx, time.Second); err != nil {
		return err
	}

	opts := deploy.DeployOptions{
		From:     deployer,
		Log:      true,
		AutoMine: true,
	}
	if _, err := env.Deploy(ctx, StakingContractName, opts); err != nil {
		return err
	}
	c, err := env.GetContract(StakingContractName, deployer)
	if err != nil {
		return err
	}
	staking := &StakingContract{Contract: c}
	log.Info("Deployer address", "address", deployer)
	log.Info("Smart contract address", "address", staking.Address())

	if _, err := env.Deploy(ctx, W3MTokenName, opts); err != nil {
		return err
	}
	c, err = env.GetContract(W3MTokenName, deployer)
	if err != nil {
		return err
	}
	token := &W3MToken{Contract: c}

	if _, err := staking.UpdateW3MTokenAddress(ctx, token.Address()); err != nil {
		return fmt.Errorf("failed to set token address: %w", err)
	}

	if _, err := token.Transfer(ctx, InvestorAddress, InvestorAllocation); err != nil {
		return fmt.Errorf("failed to fund investor: %w", err)
	}
	balance, err := token.BalanceOf(ctx, InvestorAddress)
	if err != nil {
		return fmt.Errorf("failed to read investor balance: %w", err)
	}
	log.Info("Balance of investor address", "balance", balance, "tokens", eth.FormatUnits(balance, tokenDecimals))

	if _, err := staking.AddToWhiteList(ctx, InvestorAddress); err != nil {
		return fmt.Errorf("failed to whitelist investor: %w", err)
	}
	if _, err := staking.AddToWhiteList(ctx, OwnerAddress); err != nil {
		return fmt.Errorf("failed to whitelist owner: %w", err)
	}

	if _, err := token.Transfer(ctx, staking.Address(), RewardPool); err != nil {
		return fmt.Errorf("failed to fund reward pool: %w", err)
	}
	// lets the owner top up rewards later
	if _, err := token.Transfer(ctx, OwnerAddress, OwnerAllocation); err != nil {
		return fmt.Errorf("failed to fund owner: %w", err)
	}

	if _, err := staking.TransferOwnership(ctx, OwnerAddress); err != nil {
		return fmt.Errorf("failed to transfer ownership: %w", err)
	}
	return nil
}
