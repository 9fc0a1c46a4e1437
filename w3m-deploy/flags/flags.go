package flags

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/w3m-protocol/w3m-staking/w3m-deploy/deploy"
	opservice "github.com/w3m-protocol/w3m-staking/w3m-service"
	oplog "github.com/w3m-protocol/w3m-staking/w3m-service/log"
	opmetrics "github.com/w3m-protocol/w3m-staking/w3m-service/metrics"
	"github.com/w3m-protocol/w3m-staking/w3m-service/txmgr"
)

const EnvVarPrefix = "W3M_DEPLOY"

func prefixEnvVars(name string, aliases ...string) []string {
	return opservice.PrefixEnvVar(EnvVarPrefix, name, aliases...)
}

var (
	NetworkFlag = &cli.StringFlag{
		Name:    "network",
		Usage:   "Network to deploy to: hardhat, localhost, mainnet, sepolia, goerli, polygon, polygonMumbai, arbitrum or optimism",
		Value:   deploy.DefaultNetwork,
		EnvVars: prefixEnvVars("NETWORK"),
	}
	RPCURLFlag = &cli.StringFlag{
		Name:    "rpc-url",
		Usage:   "RPC endpoint of the selected network, overrides the built-in one",
		EnvVars: prefixEnvVars("RPC_URL"),
	}
	ProviderAPIKeyFlag = &cli.StringFlag{
		Name:    "provider-api-key",
		Usage:   "API key of the RPC provider used by the built-in live network endpoints",
		EnvVars: prefixEnvVars("PROVIDER_API_KEY", "ALCHEMY_API_KEY"),
	}
	EnvFileFlag = &cli.StringFlag{
		Name:    "env-file",
		Usage:   "Dotenv file with variables that are not already set in the environment",
		Value:   ".env",
		EnvVars: prefixEnvVars("ENV_FILE"),
	}
)

var (
	ArtifactsFlag = &cli.StringFlag{
		Name:    "artifacts",
		Usage:   "Directory holding the hardhat compiler artifacts",
		Value:   "artifacts",
		EnvVars: prefixEnvVars("ARTIFACTS"),
	}
	DeployScriptsFlag = &cli.StringFlag{
		Name:    "deploy-scripts",
		Usage:   "Group of deploy scripts to run: deploy or deploy_paused",
		Value:   deploy.DefaultGroup,
		EnvVars: prefixEnvVars("DEPLOY_SCRIPTS"),
	}
	TagsFlag = &cli.StringSliceFlag{
		Name:    "tags",
		Usage:   "Only run scripts carrying one of these tags",
		EnvVars: prefixEnvVars("TAGS"),
	}
	AutoMineIntervalFlag = &cli.DurationFlag{
		Name:    "auto-mine-interval",
		Usage:   "Interval at which blocks are mined on local networks while waiting for a deployment",
		Value:   deploy.DefaultAutoMineInterval,
		EnvVars: prefixEnvVars("AUTO_MINE_INTERVAL"),
	}
)

var (
	ForceFlag = &cli.BoolFlag{
		Name:  "force",
		Usage: "Replace an existing deployer key",
	}
	KeystoreDirFlag = &cli.StringFlag{
		Name:    "keystore-dir",
		Usage:   "Write the new key encrypted to this keystore directory instead of the env file",
		EnvVars: prefixEnvVars("KEYSTORE_DIR"),
	}
	AccountTimeoutFlag = &cli.DurationFlag{
		Name:    "account.timeout",
		Usage:   "Timeout of the balance query of a single network",
		Value:   10 * time.Second,
		EnvVars: prefixEnvVars("ACCOUNT_TIMEOUT"),
	}
)

// GlobalFlags apply to every command.
var GlobalFlags []cli.Flag

// DeployFlags are the flags of the deploy command.
var DeployFlags = []cli.Flag{
	ArtifactsFlag,
	DeployScriptsFlag,
	TagsFlag,
	AutoMineIntervalFlag,
}

var GenerateFlags = []cli.Flag{
	ForceFlag,
	KeystoreDirFlag,
}

var AccountFlags = []cli.Flag{
	AccountTimeoutFlag,
}

func init() {
	GlobalFlags = append(GlobalFlags, NetworkFlag, RPCURLFlag, ProviderAPIKeyFlag, EnvFileFlag)
	GlobalFlags = append(GlobalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	GlobalFlags = append(GlobalFlags, txmgr.CLIFlags(EnvVarPrefix)...)
	DeployFlags = append(DeployFlags, opmetrics.CLIFlags(EnvVarPrefix)...)
}

type envFlag interface {
	cli.Flag
	GetEnvVars() []string
}

// ApplyEnv sets the flags of fs that were not given on the command line from
// environment variables that appeared after parsing, such as those loaded
// from the env file.
func ApplyEnv(ctx *cli.Context, fs []cli.Flag) error {
	for _, f := range fs {
		ef, ok := f.(envFlag)
		if !ok {
			continue
		}
		name := ef.Names()[0]
		if ctx.IsSet(name) {
			continue
		}
		for _, env := range ef.GetEnvVars() {
			if v, ok := os.LookupEnv(env); ok {
				if err := ctx.Set(name, v); err != nil {
					return fmt.Errorf("invalid value of %s for flag %s: %w", env, name, err)
				}
				break
			}
		}
	}
	return nil
}
