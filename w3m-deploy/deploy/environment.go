package deploy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/w3m-protocol/w3m-staking/w3m-service/txmgr"
)

// TxSender publishes transactions for a single account and waits for their
// receipts. *txmgr.SimpleTxManager implements it.
type TxSender interface {
	Send(ctx context.Context, candidate txmgr.TxCandidate) (*types.Receipt, error)
	From() common.Address
}

// Caller executes read-only calls. *ethclient.Client implements it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Env is what a deploy script can do against the target chain.
type Env interface {
	Network() Network
	Log() log.Logger
	NamedAccount(name string) (common.Address, error)
	Deploy(ctx context.Context, name string, opts DeployOptions) (*Deployment, error)
	GetContract(name string, from common.Address) (*Contract, error)
	Sleep(ctx context.Context, d time.Duration) error
}

// DefaultNamedAccounts maps account names to account indices.
var DefaultNamedAccounts = map[string]int{
	"deployer": 0,
}

const DefaultAutoMineInterval = 500 * time.Millisecond

type DeployOptions struct {
	From common.Address
	// Args are the constructor arguments.
	Args []any
	// Log emits the deployment result at info level.
	Log bool
	// AutoMine mines blocks on local networks until the creation tx is
	// included. It has no effect on live networks.
	AutoMine bool
}

// Deployment is a contract created, or reused, during this run.
type Deployment struct {
	Name     string
	Address  common.Address
	TxHash   common.Hash
	Block    uint64
	GasUsed  uint64
	Deployer common.Address
	Reused   bool

	artifact *Artifact
	code     []byte
	args     []byte
}

// Artifact returns the compiled contract the deployment was made from.
func (d *Deployment) Artifact() *Artifact {
	return d.artifact
}

type Config struct {
	Network   Network
	Artifacts ArtifactSource
	// Accounts holds one sender per account index.
	Accounts []TxSender
	// NamedAccounts defaults to DefaultNamedAccounts.
	NamedAccounts map[string]int
	Caller        Caller
	// Miner is only used on local networks. Nil disables auto mining.
	Miner            Miner
	AutoMineInterval time.Duration
	// Sleeper defaults to a LogSleeper.
	Sleeper Sleeper
	Metrics Metricer
}

func (c Config) Check() error {
	if c.Artifacts == nil {
		return errors.New("must provide an artifact source")
	}
	if len(c.Accounts) == 0 {
		return errors.New("must provide at least one account")
	}
	if c.Caller == nil {
		return errors.New("must provide a caller")
	}
	return nil
}

// Environment is the execution environment of deploy scripts. Deployments
// are kept in memory for the lifetime of the environment only.
type Environment struct {
	log     log.Logger
	network Network

	artifacts ArtifactSource
	accounts  []TxSender
	named     map[string]int
	caller    Caller
	miner     Miner
	interval  time.Duration
	sleeper   Sleeper
	metr      Metricer

	mu          sync.Mutex
	deployments map[string]*Deployment
	order       []string
}

func NewEnvironment(l log.Logger, cfg Config) (*Environment, error) {
	if err := cfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid environment config: %w", err)
	}
	e := &Environment{
		log:         l.New("network", cfg.Network.Name),
		network:     cfg.Network,
		artifacts:   cfg.Artifacts,
		accounts:    cfg.Accounts,
		named:       cfg.NamedAccounts,
		caller:      cfg.Caller,
		interval:    cfg.AutoMineInterval,
		sleeper:     cfg.Sleeper,
		metr:        cfg.Metrics,
		deployments: make(map[string]*Deployment),
	}
	if e.named == nil {
		e.named = DefaultNamedAccounts
	}
	if cfg.Network.Local {
		e.miner = cfg.Miner
	}
	if e.interval == 0 {
		e.interval = DefaultAutoMineInterval
	}
	if e.sleeper == nil {
		e.sleeper = &LogSleeper{Log: e.log}
	}
	if e.metr == nil {
		e.metr = &NoopMetrics{}
	}
	return e, nil
}

func (e *Environment) Network() Network {
	return e.network
}

func (e *Environment) Log() log.Logger {
	return e.log
}

// NamedAccount resolves a named account to its address.
func (e *Environment) NamedAccount(name string) (common.Address, error) {
	index, ok := e.named[name]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: named account %q", ErrUnknownAccount, name)
	}
	if index < 0 || index >= len(e.accounts) {
		return common.Address{}, fmt.Errorf("%w: named account %q uses index %d, %d accounts configured", ErrUnknownAccount, name, index, len(e.accounts))
	}
	return e.accounts[index].From(), nil
}

func (e *Environment) sender(from common.Address) (TxSender, error) {
	for _, s := range e.accounts {
		if s.From() == from {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: no key for %s", ErrUnknownAccount, from)
}

// Deploy creates contract name from opts.From. A deployment of the same
// name with identical code and constructor arguments made earlier in this
// run is returned instead of deploying again.
func (e *Environment) Deploy(ctx context.Context, name string, opts DeployOptions) (*Deployment, error) {
	art, err := e.artifacts.Artifact(name)
	if err != nil {
		return nil, err
	}
	args, err := art.ABI.Pack("", opts.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack constructor arguments of %s: %w", name, err)
	}
	sender, err := e.sender(opts.From)
	if err != nil {
		return nil, err
	}
	log := e.log.New("contract", name)

	e.mu.Lock()
	prev, ok := e.deployments[name]
	reuse := ok && bytes.Equal(prev.code, art.Bytecode) && bytes.Equal(prev.args, args)
	if reuse {
		prev.Reused = true
	}
	e.mu.Unlock()
	if reuse {
		if opts.Log {
			log.Info("Reusing deployment", "address", prev.Address, "tx", prev.TxHash)
		}
		e.metr.RecordReuse(name)
		return prev, nil
	}

	data := make([]byte, 0, len(art.Bytecode)+len(args))
	data = append(data, art.Bytecode...)
	data = append(data, args...)

	if opts.Log {
		log.Info("Deploying contract", "from", opts.From)
	}
	var stop func()
	if opts.AutoMine {
		stop = e.autoMine(ctx)
	}
	receipt, err := sender.Send(ctx, txmgr.TxCandidate{TxData: data})
	if stop != nil {
		stop()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to deploy %s: %w", name, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: deployment of %s in tx %s", ErrReverted, name, receipt.TxHash)
	}

	d := &Deployment{
		Name:     name,
		Address:  receipt.ContractAddress,
		TxHash:   receipt.TxHash,
		GasUsed:  receipt.GasUsed,
		Deployer: opts.From,
		artifact: art,
		code:     art.Bytecode,
		args:     args,
	}
	if receipt.BlockNumber != nil {
		d.Block = receipt.BlockNumber.Uint64()
	}
	if opts.Log {
		log.Info("Deployed contract", "address", d.Address, "tx", d.TxHash, "gas", d.GasUsed)
	}
	e.metr.RecordDeployment(name, d.GasUsed)

	e.mu.Lock()
	if _, ok := e.deployments[name]; !ok {
		e.order = append(e.order, name)
	}
	e.deployments[name] = d
	e.mu.Unlock()
	return d, nil
}

// autoMine mines blocks on a local node until the returned function is called.
func (e *Environment) autoMine(ctx context.Context) func() {
	if e.miner == nil {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := e.miner.Mine(ctx); err != nil && ctx.Err() == nil {
					e.log.Debug("Failed to mine block", "err", err)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// GetContract returns a handle to a contract deployed in this run that
// sends transactions from the given account.
func (e *Environment) GetContract(name string, from common.Address) (*Contract, error) {
	e.mu.Lock()
	d, ok := e.deployments[name]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotDeployed, name)
	}
	sender, err := e.sender(from)
	if err != nil {
		return nil, err
	}
	return &Contract{
		name:    name,
		address: d.Address,
		abi:     &d.artifact.ABI,
		sender:  sender,
		caller:  e.caller,
		log:     e.log.New("contract", name),
		metr:    e.metr,
	}, nil
}

// Deployments returns the deployments of this run in the order they were
// first made.
func (e *Environment) Deployments() []*Deployment {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Deployment, 0, len(e.order))
	for _, name := range e.order {
		out = append(out, e.deployments[name])
	}
	return out
}

func (e *Environment) Sleep(ctx context.Context, d time.Duration) error {
	return e.sleeper.Sleep(ctx, d)
}
