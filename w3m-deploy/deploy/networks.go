package deploy

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/exp/slices"
)

// apiKeyPlaceholder is replaced by the provider API key in RPC templates.
const apiKeyPlaceholder = "{apiKey}"

// Network is a chain the deploy scripts can target.
type Network struct {
	Name    string
	ChainID uint64
	// RPC is the default endpoint, possibly templated with the provider
	// API key.
	RPC string
	// Local networks are development nodes: they fund the default dev
	// accounts and accept evm_mine.
	Local bool
}

var Networks = []Network{
	{Name: "hardhat", ChainID: 31337, RPC: "http://127.0.0.1:8545", Local: true},
	{Name: "localhost", ChainID: 31337, RPC: "http://127.0.0.1:8545", Local: true},
	{Name: "mainnet", ChainID: 1, RPC: "https://eth-mainnet.g.alchemy.com/v2/" + apiKeyPlaceholder},
	{Name: "sepolia", ChainID: 11155111, RPC: "https://eth-sepolia.g.alchemy.com/v2/" + apiKeyPlaceholder},
	{Name: "goerli", ChainID: 5, RPC: "https://eth-goerli.g.alchemy.com/v2/" + apiKeyPlaceholder},
	{Name: "polygon", ChainID: 137, RPC: "https://polygon-mainnet.g.alchemy.com/v2/" + apiKeyPlaceholder},
	{Name: "polygonMumbai", ChainID: 80001, RPC: "https://polygon-mumbai.g.alchemy.com/v2/" + apiKeyPlaceholder},
	{Name: "arbitrum", ChainID: 42161, RPC: "https://arb-mainnet.g.alchemy.com/v2/" + apiKeyPlaceholder},
	{Name: "optimism", ChainID: 10, RPC: "https://opt-mainnet.g.alchemy.com/v2/" + apiKeyPlaceholder},
}

const DefaultNetwork = "localhost"

func LookupNetwork(name string) (Network, error) {
	i := slices.IndexFunc(Networks, func(n Network) bool { return n.Name == name })
	if i < 0 {
		return Network{}, fmt.Errorf("%w: %q, known networks: %s", ErrUnknownNetwork, name, strings.Join(NetworkNames(), ", "))
	}
	return Networks[i], nil
}

func NetworkNames() []string {
	names := make([]string, 0, len(Networks))
	for _, n := range Networks {
		names = append(names, n.Name)
	}
	return names
}

// RPCURL returns the endpoint for the network. A non empty override wins
// over the built-in template.
func (n Network) RPCURL(override, apiKey string) (string, error) {
	if override != "" {
		return override, nil
	}
	if !strings.Contains(n.RPC, apiKeyPlaceholder) {
		return n.RPC, nil
	}
	if apiKey == "" {
		return "", fmt.Errorf("%w %s: set a provider api key or an rpc url", ErrMissingRPCURL, n.Name)
	}
	return strings.ReplaceAll(n.RPC, apiKeyPlaceholder, apiKey), nil
}

// Dial connects to url and verifies the node serves the network's chain.
// The raw rpc client is returned alongside for node specific methods.
func Dial(ctx context.Context, n Network, url string) (*ethclient.Client, *rpc.Client, error) {
	rc, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial %s: %w", n.Name, err)
	}
	client := ethclient.NewClient(rc)
	chainID, err := client.ChainID(ctx)
	if err != nil {
		rc.Close()
		return nil, nil, fmt.Errorf("failed to fetch chain id of %s: %w", n.Name, err)
	}
	if !chainID.IsUint64() || chainID.Uint64() != n.ChainID {
		rc.Close()
		return nil, nil, fmt.Errorf("%w: network %s expects %d, node reports %s", ErrChainIDMismatch, n.Name, n.ChainID, chainID)
	}
	return client, rc, nil
}

// Miner mines blocks on demand on a development node.
type Miner interface {
	Mine(ctx context.Context) error
}

// RPCMiner mines through the evm_mine method supported by hardhat and anvil.
type RPCMiner struct {
	Client *rpc.Client
}

func (m *RPCMiner) Mine(ctx context.Context) error {
	return m.Client.CallContext(ctx, nil, "evm_mine")
}
