package deployer

import (
	"errors"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"

	"github.com/w3m-protocol/w3m-staking/w3m-deploy/deploy"
	"github.com/w3m-protocol/w3m-staking/w3m-deploy/flags"
	oplog "github.com/w3m-protocol/w3m-staking/w3m-service/log"
	opmetrics "github.com/w3m-protocol/w3m-staking/w3m-service/metrics"
	"github.com/w3m-protocol/w3m-staking/w3m-service/txmgr"
)

type CLIConfig struct {
	Network        string
	RPCURL         string
	ProviderAPIKey string

	Artifacts        string
	Group            string
	Tags             []string
	AutoMineInterval time.Duration

	AccountTimeout time.Duration
	Force          bool
	KeystoreDir    string

	TxMgrConfig   txmgr.CLIConfig
	LogConfig     oplog.CLIConfig
	MetricsConfig opmetrics.CLIConfig
}

func (c CLIConfig) Check() error {
	var result *multierror.Error
	if _, err := deploy.LookupNetwork(c.Network); err != nil {
		result = multierror.Append(result, err)
	}
	if c.Group == "" {
		result = multierror.Append(result, errors.New("must select a group of deploy scripts"))
	}
	if err := c.TxMgrConfig.Check(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.LogConfig.Check(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.MetricsConfig.Check(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// NewConfig parses the Config from the provided flags or environment variables.
// Commands without the deploy flags get the default script group.
func NewConfig(ctx *cli.Context) CLIConfig {
	cfg := CLIConfig{
		Network:          ctx.String(flags.NetworkFlag.Name),
		RPCURL:           ctx.String(flags.RPCURLFlag.Name),
		ProviderAPIKey:   ctx.String(flags.ProviderAPIKeyFlag.Name),
		Artifacts:        ctx.String(flags.ArtifactsFlag.Name),
		Group:            ctx.String(flags.DeployScriptsFlag.Name),
		Tags:             ctx.StringSlice(flags.TagsFlag.Name),
		AutoMineInterval: ctx.Duration(flags.AutoMineIntervalFlag.Name),
		AccountTimeout:   ctx.Duration(flags.AccountTimeoutFlag.Name),
		Force:            ctx.Bool(flags.ForceFlag.Name),
		KeystoreDir:      ctx.String(flags.KeystoreDirFlag.Name),
		TxMgrConfig:      txmgr.ReadCLIConfig(ctx),
		LogConfig:        oplog.ReadCLIConfig(ctx),
		MetricsConfig:    opmetrics.ReadCLIConfig(ctx),
	}
	if !ctx.IsSet(flags.DeployScriptsFlag.Name) && cfg.Group == "" {
		cfg.Group = deploy.DefaultGroup
	}
	return cfg
}
