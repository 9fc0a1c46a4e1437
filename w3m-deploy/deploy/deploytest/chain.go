// Package deploytest provides an in-memory chain for testing deploy scripts.
package deploytest

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/w3m-protocol/w3m-staking/w3m-service/txmgr"
)

// Tx is a transaction mined by the Chain.
type Tx struct {
	Nonce uint64
	To    *common.Address
	Data  []byte
	Value *big.Int
	// Created is the address of the contract created by the tx, if any.
	Created common.Address
	Receipt *types.Receipt
}

// Chain stands in for the node and the transaction manager of a single
// account. Every transaction is mined into its own block.
type Chain struct {
	mu sync.Mutex

	from  common.Address
	nonce uint64
	block uint64
	txs   []Tx
	calls []ethereum.CallMsg

	fail   map[int]error
	revert map[int]bool

	// Responder answers CallContract. It defaults to an error.
	Responder func(msg ethereum.CallMsg) ([]byte, error)
}

func NewChain(from common.Address) *Chain {
	return &Chain{
		from:   from,
		fail:   make(map[int]error),
		revert: make(map[int]bool),
	}
}

// FailAt makes the n-th (zero based) transaction fail to send with err.
func (c *Chain) FailAt(n int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail[n] = err
}

// RevertAt makes the n-th (zero based) transaction get mined with a failed status.
func (c *Chain) RevertAt(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revert[n] = true
}

func (c *Chain) From() common.Address {
	return c.from
}

func (c *Chain) Send(ctx context.Context, candidate txmgr.TxCandidate) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.txs)
	if err, ok := c.fail[n]; ok {
		delete(c.fail, n)
		return nil, err
	}

	c.block++
	tx := Tx{
		Nonce: c.nonce,
		To:    candidate.To,
		Data:  append([]byte(nil), candidate.TxData...),
		Value: candidate.Value,
	}
	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      crypto.Keccak256Hash(c.from.Bytes(), new(big.Int).SetUint64(c.nonce).Bytes()),
		BlockNumber: new(big.Int).SetUint64(c.block),
		GasUsed:     21_000 + uint64(len(candidate.TxData))*16,
	}
	if candidate.To == nil {
		tx.Created = crypto.CreateAddress(c.from, c.nonce)
		receipt.ContractAddress = tx.Created
	}
	if c.revert[n] {
		receipt.Status = types.ReceiptStatusFailed
	}
	tx.Receipt = receipt
	c.txs = append(c.txs, tx)
	c.nonce++
	return receipt, nil
}

func (c *Chain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	c.mu.Lock()
	c.calls = append(c.calls, msg)
	responder := c.Responder
	c.mu.Unlock()
	if responder == nil {
		return nil, errors.New("no responder configured")
	}
	return responder(msg)
}

// Txs returns the mined transactions in order.
func (c *Chain) Txs() []Tx {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Tx(nil), c.txs...)
}

// Calls returns the read-only calls made so far.
func (c *Chain) Calls() []ethereum.CallMsg {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ethereum.CallMsg(nil), c.calls...)
}
