package deploy

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/w3m-protocol/w3m-staking/w3m-service/txmgr"
)

// Contract is a handle to a deployed contract bound to a sending account.
type Contract struct {
	name    string
	address common.Address
	abi     *abi.ABI
	sender  TxSender
	caller  Caller
	log     log.Logger
	metr    Metricer
}

func (c *Contract) Name() string {
	return c.name
}

func (c *Contract) Address() common.Address {
	return c.address
}

func (c *Contract) ABI() *abi.ABI {
	return c.abi
}

// Transact calls a state changing method and waits for the transaction to
// be mined. A mined but failed transaction is reported as ErrReverted.
func (c *Contract) Transact(ctx context.Context, method string, args ...any) (*types.Receipt, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s.%s: %w", c.name, method, err)
	}
	to := c.address
	receipt, err := c.sender.Send(ctx, txmgr.TxCandidate{TxData: data, To: &to})
	if err != nil {
		return nil, fmt.Errorf("failed to send %s.%s: %w", c.name, method, err)
	}
	c.metr.RecordCall(c.name, method)
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s.%s in tx %s", ErrReverted, c.name, method, receipt.TxHash)
	}
	c.log.Info("Called contract", "method", method, "tx", receipt.TxHash, "gas", receipt.GasUsed)
	return receipt, nil
}

// Call executes a read-only method against the latest block and returns its
// unpacked outputs.
func (c *Contract) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s.%s: %w", c.name, method, err)
	}
	to := c.address
	out, err := c.caller.CallContract(ctx, ethereum.CallMsg{
		From: c.sender.From(),
		To:   &to,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s.%s: %w", c.name, method, err)
	}
	values, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s.%s: %w", c.name, method, err)
	}
	return values, nil
}
