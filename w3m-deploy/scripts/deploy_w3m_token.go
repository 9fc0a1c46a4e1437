package scripts

import (
	"context"
	"fmt"
	"time"

	"github.com/w3m-protocol/w3m-staking/w3m-deploy/deploy"
	"github.com/w3m-protocol/w3m-staking/w3m-service/eth"
)

// DeployW3MToken deploys the token on its own and funds the front-end
// address.
func DeployW3MToken(ctx context.Context, env deploy.Env) error {
	log := env.Log()
	deployer, err := env.NamedAccount("deployer")
	if err != nil {
		return err
	}

	if err := env.Sleep(ctx, 10*time.Second); err != nil {
		return err
	}

	if _, err := env.Deploy(ctx, W3MTokenName, deploy.DeployOptions{
		From:     deployer,
		Log:      true,
		AutoMine: true,
	}); err != nil {
		return err
	}
	c, err := env.GetContract(W3MTokenName, deployer)
	if err != nil {
		return err
	}
	token := &W3MToken{Contract: c}

	if err := env.Sleep(ctx, 5*time.Second); err != nil {
		return err
	}
	if _, err := token.Transfer(ctx, FrontendAddress, FrontendAllocation); err != nil {
		return fmt.Errorf("failed to fund front-end address: %w", err)
	}
	balance, err := token.BalanceOf(ctx, FrontendAddress)
	if err != nil {
		return fmt.Errorf("failed to read front-end balance: %w", err)
	}
	log.Info("Balance of address", "address", FrontendAddress, "balance", balance, "tokens", eth.FormatUnits(balance, tokenDecimals))
	return nil
}
