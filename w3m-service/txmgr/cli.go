package txmgr

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"

	opservice "github.com/w3m-protocol/w3m-staking/w3m-service"
	opcrypto "github.com/w3m-protocol/w3m-staking/w3m-service/crypto"
)

const (
	// Key Management Flags
	MnemonicFlagName     = "mnemonic"
	HDPathFlagName       = "hd-path"
	PrivateKeyFlagName   = "private-key"
	KeystoreFlagName     = "keystore"
	PasswordFileFlagName = "password-file"
	// TxMgr Flags
	NumConfirmationsFlagName          = "num-confirmations"
	SafeAbortNonceTooLowCountFlagName = "safe-abort-nonce-too-low-count"
	ResubmissionTimeoutFlagName       = "resubmission-timeout"
	NetworkTimeoutFlagName            = "network-timeout"
	TxSendTimeoutFlagName             = "txmgr.send-timeout"
	TxNotInMempoolTimeoutFlagName     = "txmgr.not-in-mempool-timeout"
	ReceiptQueryIntervalFlagName      = "txmgr.receipt-query-interval"
)

// DeployerPrivateKeyEnv is the unprefixed variable written by `generate`.
const DeployerPrivateKeyEnv = "DEPLOYER_PRIVATE_KEY"

func CLIFlags(envPrefix string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    MnemonicFlagName,
			Usage:   "The mnemonic used to derive the deployer wallet",
			EnvVars: opservice.PrefixEnvVar(envPrefix, "MNEMONIC"),
		},
		&cli.StringFlag{
			Name:    HDPathFlagName,
			Usage:   "The HD path used to derive the deployer wallet from the mnemonic. The mnemonic flag must also be set.",
			EnvVars: opservice.PrefixEnvVar(envPrefix, "HD_PATH"),
		},
		&cli.StringFlag{
			Name:    PrivateKeyFlagName,
			Usage:   "The private key of the deployer. Must not be used with mnemonic or keystore.",
			EnvVars: opservice.PrefixEnvVar(envPrefix, "PRIVATE_KEY", DeployerPrivateKeyEnv),
		},
		&cli.StringFlag{
			Name:    KeystoreFlagName,
			Usage:   "Path to an encrypted keystore file holding the deployer key",
			EnvVars: opservice.PrefixEnvVar(envPrefix, "KEYSTORE"),
		},
		&cli.StringFlag{
			Name:    PasswordFileFlagName,
			Usage:   "File containing the keystore password. Prompted for when unset.",
			EnvVars: opservice.PrefixEnvVar(envPrefix, "PASSWORD_FILE"),
		},
		&cli.Uint64Flag{
			Name:    NumConfirmationsFlagName,
			Usage:   "Number of confirmations which we will wait after sending a transaction",
			Value:   1,
			EnvVars: opservice.PrefixEnvVar(envPrefix, "NUM_CONFIRMATIONS"),
		},
		&cli.Uint64Flag{
			Name:    SafeAbortNonceTooLowCountFlagName,
			Usage:   "Number of ErrNonceTooLow observations required to give up on a tx at a particular nonce without receiving confirmation",
			Value:   3,
			EnvVars: opservice.PrefixEnvVar(envPrefix, "SAFE_ABORT_NONCE_TOO_LOW_COUNT"),
		},
		&cli.DurationFlag{
			Name:    ResubmissionTimeoutFlagName,
			Usage:   "Duration we will wait before publishing a transaction again",
			Value:   48 * time.Second,
			EnvVars: opservice.PrefixEnvVar(envPrefix, "RESUBMISSION_TIMEOUT"),
		},
		&cli.DurationFlag{
			Name:    NetworkTimeoutFlagName,
			Usage:   "Timeout for all network operations",
			Value:   10 * time.Second,
			EnvVars: opservice.PrefixEnvVar(envPrefix, "NETWORK_TIMEOUT"),
		},
		&cli.DurationFlag{
			Name:    TxSendTimeoutFlagName,
			Usage:   "Timeout for sending transactions. If 0 it is disabled.",
			Value:   0,
			EnvVars: opservice.PrefixEnvVar(envPrefix, "TXMGR_TX_SEND_TIMEOUT"),
		},
		&cli.DurationFlag{
			Name:    TxNotInMempoolTimeoutFlagName,
			Usage:   "Timeout for aborting a tx send if the tx does not make it to the mempool.",
			Value:   2 * time.Minute,
			EnvVars: opservice.PrefixEnvVar(envPrefix, "TXMGR_TX_NOT_IN_MEMPOOL_TIMEOUT"),
		},
		&cli.DurationFlag{
			Name:    ReceiptQueryIntervalFlagName,
			Usage:   "Frequency to poll for receipts",
			Value:   time.Second,
			EnvVars: opservice.PrefixEnvVar(envPrefix, "TXMGR_RECEIPT_QUERY_INTERVAL"),
		},
	}
}

type CLIConfig struct {
	Mnemonic                  string
	HDPath                    string
	PrivateKey                string
	KeystorePath              string
	PasswordFile              string
	NumConfirmations          uint64
	SafeAbortNonceTooLowCount uint64
	ResubmissionTimeout       time.Duration
	ReceiptQueryInterval      time.Duration
	NetworkTimeout            time.Duration
	TxSendTimeout             time.Duration
	TxNotInMempoolTimeout     time.Duration
}

func (m CLIConfig) Check() error {
	var result *multierror.Error
	if m.NumConfirmations == 0 {
		result = multierror.Append(result, errors.New("NumConfirmations must not be 0"))
	}
	if m.NetworkTimeout == 0 {
		result = multierror.Append(result, errors.New("must provide NetworkTimeout"))
	}
	if m.ResubmissionTimeout == 0 {
		result = multierror.Append(result, errors.New("must provide ResubmissionTimeout"))
	}
	if m.ReceiptQueryInterval == 0 {
		result = multierror.Append(result, errors.New("must provide ReceiptQueryInterval"))
	}
	if m.TxNotInMempoolTimeout == 0 {
		result = multierror.Append(result, errors.New("must provide TxNotInMempoolTimeout"))
	}
	if m.SafeAbortNonceTooLowCount == 0 {
		result = multierror.Append(result, errors.New("SafeAbortNonceTooLowCount must not be 0"))
	}
	if m.PasswordFile != "" && m.KeystorePath == "" {
		result = multierror.Append(result, errors.New("password file requires a keystore"))
	}
	if err := m.credentials().Check(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func (m CLIConfig) credentials() opcrypto.Credentials {
	return opcrypto.Credentials{
		PrivateKey:   m.PrivateKey,
		Mnemonic:     m.Mnemonic,
		HDPath:       m.HDPath,
		KeystorePath: m.KeystorePath,
	}
}

// Credentials returns the configured key source, reading the keystore
// password file if one is set.
func (m CLIConfig) Credentials() (opcrypto.Credentials, error) {
	creds := m.credentials()
	if m.PasswordFile != "" {
		blob, err := os.ReadFile(m.PasswordFile)
		if err != nil {
			return opcrypto.Credentials{}, fmt.Errorf("failed to read password file: %w", err)
		}
		creds.Password = strings.TrimRight(string(blob), "\r\n")
	}
	return creds, nil
}

func ReadCLIConfig(ctx *cli.Context) CLIConfig {
	return CLIConfig{
		Mnemonic:                  ctx.String(MnemonicFlagName),
		HDPath:                    ctx.String(HDPathFlagName),
		PrivateKey:                ctx.String(PrivateKeyFlagName),
		KeystorePath:              ctx.String(KeystoreFlagName),
		PasswordFile:              ctx.String(PasswordFileFlagName),
		NumConfirmations:          ctx.Uint64(NumConfirmationsFlagName),
		SafeAbortNonceTooLowCount: ctx.Uint64(SafeAbortNonceTooLowCountFlagName),
		ResubmissionTimeout:       ctx.Duration(ResubmissionTimeoutFlagName),
		ReceiptQueryInterval:      ctx.Duration(ReceiptQueryIntervalFlagName),
		NetworkTimeout:            ctx.Duration(NetworkTimeoutFlagName),
		TxSendTimeout:             ctx.Duration(TxSendTimeoutFlagName),
		TxNotInMempoolTimeout:     ctx.Duration(TxNotInMempoolTimeoutFlagName),
	}
}

// NewConfig builds the manager config for the account of key on the chain
// served by backend.
func NewConfig(cfg CLIConfig, backend ETHBackend, chainID *big.Int, key *ecdsa.PrivateKey) (Config, error) {
	if err := cfg.Check(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return Config{
		Backend:                   backend,
		ChainID:                   chainID,
		NumConfirmations:          cfg.NumConfirmations,
		SafeAbortNonceTooLowCount: cfg.SafeAbortNonceTooLowCount,
		ResubmissionTimeout:       cfg.ResubmissionTimeout,
		TxSendTimeout:             cfg.TxSendTimeout,
		TxNotInMempoolTimeout:     cfg.TxNotInMempoolTimeout,
		NetworkTimeout:            cfg.NetworkTimeout,
		ReceiptQueryInterval:      cfg.ReceiptQueryInterval,
		Signer:                    opcrypto.PrivateKeySignerFn(key, chainID),
		From:                      crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Config houses parameters for altering the behavior of a SimpleTxManager.
type Config struct {
	Backend ETHBackend
	// ChainID is the chain ID of the target chain.
	ChainID *big.Int

	// NumConfirmations specifies how many blocks are need to consider a
	// transaction confirmed.
	NumConfirmations uint64

	// SafeAbortNonceTooLowCount specifies how many ErrNonceTooLow observations
	// are required to give up on a tx at a particular nonce without receiving
	// confirmation.
	SafeAbortNonceTooLowCount uint64

	// ResubmissionTimeout is the interval at which, if no previously
	// published transaction has been mined, the same signed tx is published
	// again.
	ResubmissionTimeout time.Duration

	// TxSendTimeout is how long to wait for sending a transaction.
	// By default it is unbounded.
	TxSendTimeout time.Duration

	// TxNotInMempoolTimeout is how long to wait before aborting a transaction send if the transaction does not
	// make it to the mempool. If the tx is in the mempool, TxSendTimeout is used instead.
	TxNotInMempoolTimeout time.Duration

	// NetworkTimeout is the allowed duration for a single network request.
	// This is intended to be used for network requests that can be replayed.
	NetworkTimeout time.Duration

	// ReceiptQueryInterval is the interval at which the tx manager will
	// query the backend to check for confirmations after a tx has been
	// published.
	ReceiptQueryInterval time.Duration

	// Signer is used to sign transactions.
	Signer opcrypto.SignerFn
	From   common.Address
}

func (m Config) Check() error {
	var result *multierror.Error
	if m.Backend == nil {
		result = multierror.Append(result, errors.New("must provide the Backend"))
	}
	if m.ChainID == nil {
		result = multierror.Append(result, errors.New("must provide the ChainID"))
	}
	if m.Signer == nil {
		result = multierror.Append(result, errors.New("must provide the Signer"))
	}
	if m.NumConfirmations == 0 {
		result = multierror.Append(result, errors.New("NumConfirmations must not be 0"))
	}
	if m.SafeAbortNonceTooLowCount == 0 {
		result = multierror.Append(result, errors.New("SafeAbortNonceTooLowCount must not be 0"))
	}
	if m.NetworkTimeout == 0 || m.ResubmissionTimeout == 0 || m.ReceiptQueryInterval == 0 {
		result = multierror.Append(result, errors.New("network, resubmission and receipt query timeouts must be set"))
	}
	return result.ErrorOrNil()
}
