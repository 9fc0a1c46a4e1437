// Package deployer wires the deploy environment, the transaction manager and
// the deploy scripts into the commands of w3m-deploy.
package deployer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/w3m-protocol/w3m-staking/w3m-deploy/account"
	"github.com/w3m-protocol/w3m-staking/w3m-deploy/deploy"
	opcrypto "github.com/w3m-protocol/w3m-staking/w3m-service/crypto"
	opmetrics "github.com/w3m-protocol/w3m-staking/w3m-service/metrics"
	"github.com/w3m-protocol/w3m-staking/w3m-service/txmgr"
	txmetrics "github.com/w3m-protocol/w3m-staking/w3m-service/txmgr/metrics"
)

const metricsNamespace = "w3m_deploy"

// PasswordPrompt asks the operator for a secret.
type PasswordPrompt func(prompt string) (string, error)

// Deployer runs the commands of w3m-deploy for one network.
type Deployer struct {
	cfg     CLIConfig
	log     log.Logger
	network deploy.Network
	prompt  PasswordPrompt
	out     io.Writer
}

func New(cfg CLIConfig, l log.Logger, prompt PasswordPrompt, out io.Writer) (*Deployer, error) {
	network, err := deploy.LookupNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}
	return &Deployer{
		cfg:     cfg,
		log:     l,
		network: network,
		prompt:  prompt,
		out:     out,
	}, nil
}

// key loads the deployer key. Local networks fall back to the development
// mnemonic when no credentials are configured.
func (d *Deployer) key() (*ecdsa.PrivateKey, error) {
	creds, err := d.cfg.TxMgrConfig.Credentials()
	if err != nil {
		return nil, err
	}
	if creds.Empty() {
		if !d.network.Local {
			return nil, fmt.Errorf("%w for network %s: set --private-key, DEPLOYER_PRIVATE_KEY, --mnemonic or --keystore", opcrypto.ErrNoCredentials, d.network.Name)
		}
		d.log.Info("Using the development mnemonic", "network", d.network.Name)
		creds.Mnemonic = opcrypto.DevMnemonic
	}
	if creds.KeystorePath != "" && d.cfg.TxMgrConfig.PasswordFile == "" {
		if d.prompt == nil {
			return nil, errors.New("keystore password required")
		}
		creds.Password, err = d.prompt("Keystore password: ")
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
	}
	return creds.LoadKey(0)
}

// Deploy runs the selected deploy scripts against the network and writes a
// summary of the run to the output.
func (d *Deployer) Deploy(ctx context.Context, scripts []deploy.Script) error {
	selected := deploy.Select(scripts, d.cfg.Group, d.cfg.Tags)
	if len(selected) == 0 {
		return fmt.Errorf("no deploy scripts in group %q match tags %v", d.cfg.Group, d.cfg.Tags)
	}

	key, err := d.key()
	if err != nil {
		return err
	}

	url, err := d.network.RPCURL(d.cfg.RPCURL, d.cfg.ProviderAPIKey)
	if err != nil {
		return err
	}
	client, rc, err := deploy.Dial(ctx, d.network, url)
	if err != nil {
		return err
	}
	defer client.Close()

	var (
		txMetr     txmetrics.TxMetricer = &txmetrics.NoopTxMetrics{}
		deployMetr deploy.Metricer      = &deploy.NoopMetrics{}
	)
	if mc := d.cfg.MetricsConfig; mc.Enabled {
		registry := opmetrics.NewRegistry()
		factory := opmetrics.With(registry)
		m := txmetrics.MakeTxMetrics(metricsNamespace, factory)
		txMetr = &m
		deployMetr = deploy.MakeMetrics(metricsNamespace, factory)

		mCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		d.log.Info("Starting metrics server", "addr", mc.ListenAddr, "port", mc.ListenPort)
		go func() {
			if err := opmetrics.ListenAndServe(mCtx, registry, mc.ListenAddr, mc.ListenPort); err != nil {
				d.log.Error("Error starting metrics server", "err", err)
			}
		}()
	}

	chainID := new(big.Int).SetUint64(d.network.ChainID)
	txCfg, err := txmgr.NewConfig(d.cfg.TxMgrConfig, client, chainID, key)
	if err != nil {
		return err
	}
	mgr, err := txmgr.NewSimpleTxManager("deployer", d.log, txMetr, txCfg)
	if err != nil {
		return err
	}

	env, err := deploy.NewEnvironment(d.log, deploy.Config{
		Network:          d.network,
		Artifacts:        deploy.NewArtifacts(d.cfg.Artifacts),
		Accounts:         []deploy.TxSender{mgr},
		Caller:           client,
		Miner:            &deploy.RPCMiner{Client: rc},
		AutoMineInterval: d.cfg.AutoMineInterval,
		Sleeper:          deploy.NewSleeper(d.log, os.Stderr),
		Metrics:          deployMetr,
	})
	if err != nil {
		return err
	}

	d.log.Info("Deploying", "network", d.network.Name, "deployer", mgr.From(), "scripts", len(selected))
	results, runErr := deploy.NewRunner(d.log, deployMetr).Run(ctx, env, selected)
	deploy.WriteSummary(d.out, d.network, env.Deployments(), results)
	return runErr
}

// Account prints the deployer balance on every network with a usable RPC
// endpoint.
func (d *Deployer) Account(ctx context.Context) error {
	key, err := d.key()
	if err != nil {
		return err
	}
	address := crypto.PubkeyToAddress(key.PublicKey)
	urlFor := func(n deploy.Network) (string, error) {
		override := ""
		if n.Name == d.network.Name {
			override = d.cfg.RPCURL
		}
		return n.RPCURL(override, d.cfg.ProviderAPIKey)
	}
	statuses := account.Overview(ctx, d.log, address, deploy.Networks, urlFor, d.cfg.AccountTimeout)
	account.WriteOverview(d.out, address, statuses)
	return nil
}

// Generate creates a new deployer key in the env file, or in a keystore
// directory when one is configured.
func (d *Deployer) Generate(envFile string) error {
	if d.cfg.KeystoreDir != "" {
		if d.prompt == nil {
			return errors.New("keystore password required")
		}
		password, err := d.prompt("Password for the new key: ")
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		addr, path, err := account.GenerateKeystore(d.cfg.KeystoreDir, password, keystore.StandardScryptN, keystore.StandardScryptP)
		if err != nil {
			return err
		}
		fmt.Fprintf(d.out, "Generated deployer %s in %s\n", addr.Hex(), path)
		return nil
	}
	addr, err := account.Generate(envFile, d.cfg.Force)
	if err != nil {
		return err
	}
	fmt.Fprintf(d.out, "Generated deployer %s, private key stored in %s\n", addr.Hex(), envFile)
	return nil
}
