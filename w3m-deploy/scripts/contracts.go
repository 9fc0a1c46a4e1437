package scripts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/w3m-protocol/w3m-staking/w3m-deploy/deploy"
)

// StakingContract binds the staking contract methods used by the scripts.
type StakingContract struct {
	*deploy.Contract
}

func (s *StakingContract) UpdateW3MTokenAddress(ctx context.Context, token common.Address) (*types.Receipt, error) {
	return s.Transact(ctx, "updateW3MTokenAddress", token)
}

func (s *StakingContract) AddToWhiteList(ctx context.Context, account common.Address) (*types.Receipt, error) {
	return s.Transact(ctx, "addToWhiteList", account)
}

func (s *StakingContract) TransferOwnership(ctx context.Context, owner common.Address) (*types.Receipt, error) {
	return s.Transact(ctx, "transferOwnership", owner)
}

// W3MToken binds the ERC20 methods of the token used by the scripts.
type W3MToken struct {
	*deploy.Contract
}

func (t *W3MToken) Transfer(ctx context.Context, to common.Address, amount *big.Int) (*types.Receipt, error) {
	return t.Transact(ctx, "transfer", to, amount)
}

func (t *W3MToken) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	out, err := t.Call(ctx, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("balanceOf returned %d values", len(out))
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}
