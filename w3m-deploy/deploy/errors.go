package deploy

import "errors"

var (
	// ErrUnknownAccount is returned for named accounts and senders the
	// environment has no key for.
	ErrUnknownAccount = errors.New("unknown account")
	// ErrNotDeployed is returned when a contract handle is requested before
	// the contract was deployed in this run.
	ErrNotDeployed = errors.New("contract not deployed")
	// ErrArtifactNotFound is returned when no compiled artifact carries the
	// requested contract name.
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrReverted is returned when a transaction was mined with a failed status.
	ErrReverted = errors.New("transaction reverted")

	ErrNoBytecode      = errors.New("artifact has no bytecode")
	ErrChainIDMismatch = errors.New("chain id mismatch")
	ErrUnknownNetwork  = errors.New("unknown network")
	ErrMissingRPCURL   = errors.New("no rpc url for network")
)
