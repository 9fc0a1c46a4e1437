// Package account reports on and creates the deployer account.
package account

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/lmittmann/w3"
	"github.com/lmittmann/w3/module/eth"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/sync/errgroup"

	"github.com/w3m-protocol/w3m-staking/w3m-deploy/deploy"
	opeth "github.com/w3m-protocol/w3m-staking/w3m-service/eth"
)

// maxConcurrentQueries bounds the number of networks queried at once.
const maxConcurrentQueries = 4

// NetworkStatus is the deployer state on one network.
type NetworkStatus struct {
	Network deploy.Network
	Balance *big.Int
	Nonce   uint64
	ChainID uint64
	Err     error
}

// URLFunc resolves the RPC endpoint of a network. An error skips the network.
type URLFunc func(n deploy.Network) (string, error)

// Overview queries balance, nonce and chain id of address on every network.
// Each network is queried with a single batch request. Failures are
// reported per network.
func Overview(ctx context.Context, l log.Logger, address common.Address, networks []deploy.Network, urlFor URLFunc, timeout time.Duration) []NetworkStatus {
	statuses := make([]NetworkStatus, len(networks))
	var g errgroup.Group
	g.SetLimit(maxConcurrentQueries)
	for i, n := range networks {
		i, n := i, n
		statuses[i].Network = n
		g.Go(func() error {
			url, err := urlFor(n)
			if err != nil {
				statuses[i].Err = err
				return nil
			}
			cCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			statuses[i] = query(cCtx, n, url, address)
			if statuses[i].Err != nil {
				l.Debug("Network query failed", "network", n.Name, "err", statuses[i].Err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return statuses
}

func query(ctx context.Context, n deploy.Network, url string, address common.Address) NetworkStatus {
	status := NetworkStatus{Network: n}
	client, err := w3.Dial(url)
	if err != nil {
		status.Err = fmt.Errorf("failed to dial: %w", err)
		return status
	}
	defer client.Close()

	var balance big.Int
	if err := client.CallCtx(ctx,
		eth.Balance(address, nil).Returns(&balance),
		eth.Nonce(address, nil).Returns(&status.Nonce),
		eth.ChainID().Returns(&status.ChainID),
	); err != nil {
		status.Err = err
		return status
	}
	status.Balance = &balance
	if status.ChainID != n.ChainID {
		status.Err = fmt.Errorf("%w: expected %d, node reports %d", deploy.ErrChainIDMismatch, n.ChainID, status.ChainID)
	}
	return status
}

// WriteOverview renders statuses as a table.
func WriteOverview(w io.Writer, address common.Address, statuses []NetworkStatus) {
	fmt.Fprintf(w, "Deployer address: %s\n", address.Hex())
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Network", "Chain ID", "Balance (ETH)", "Nonce", "Error"})
	for _, s := range statuses {
		if s.Err != nil {
			table.Append([]string{s.Network.Name, strconv.FormatUint(s.Network.ChainID, 10), "", "", s.Err.Error()})
			continue
		}
		table.Append([]string{s.Network.Name, strconv.FormatUint(s.ChainID, 10), opeth.FormatUnits(s.Balance, 18), strconv.FormatUint(s.Nonce, 10), ""})
	}
	table.Render()
}
