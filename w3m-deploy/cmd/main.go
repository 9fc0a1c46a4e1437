package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/w3m-protocol/w3m-staking/w3m-deploy/account"
	"github.com/w3m-protocol/w3m-staking/w3m-deploy/deploy"
	"github.com/w3m-protocol/w3m-staking/w3m-deploy/deployer"
	"github.com/w3m-protocol/w3m-staking/w3m-deploy/flags"
	"github.com/w3m-protocol/w3m-staking/w3m-deploy/scripts"
	oplog "github.com/w3m-protocol/w3m-staking/w3m-service/log"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	oplog.SetupDefaults()

	app := cli.NewApp()
	app.Name = "w3m-deploy"
	app.Usage = "Deploy and configure the W3M staking contracts"
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Flags = flags.GlobalFlags
	app.Before = func(ctx *cli.Context) error {
		if err := account.LoadDotEnv(ctx.String(flags.EnvFileFlag.Name)); err != nil {
			return err
		}
		return flags.ApplyEnv(ctx, flags.GlobalFlags)
	}
	app.Commands = []*cli.Command{
		{
			Name:   "deploy",
			Usage:  "Run the deploy scripts against a network",
			Flags:  flags.DeployFlags,
			Action: withDeployer(func(ctx context.Context, d *deployer.Deployer, _ *cli.Context) error {
				return d.Deploy(ctx, scripts.All())
			}),
		},
		{
			Name:   "account",
			Usage:  "Show the deployer balance on every network",
			Flags:  flags.AccountFlags,
			Action: withDeployer(func(ctx context.Context, d *deployer.Deployer, _ *cli.Context) error {
				return d.Account(ctx)
			}),
		},
		{
			Name:   "generate",
			Usage:  "Generate a new deployer key",
			Flags:  flags.GenerateFlags,
			Action: withDeployer(func(_ context.Context, d *deployer.Deployer, cliCtx *cli.Context) error {
				return d.Generate(cliCtx.String(flags.EnvFileFlag.Name))
			}),
		},
		{
			Name:   "scripts",
			Usage:  "List the deploy scripts",
			Action: func(cliCtx *cli.Context) error {
				for _, group := range deploy.Groups(scripts.All()) {
					fmt.Fprintf(cliCtx.App.Writer, "%s:\n", group)
					for _, s := range deploy.Select(scripts.All(), group, nil) {
						fmt.Fprintf(cliCtx.App.Writer, "  %s %v\n", s.Name, s.Tags)
					}
				}
				return nil
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

type action func(ctx context.Context, d *deployer.Deployer, cliCtx *cli.Context) error

// withDeployer builds the logger and the deployer from the flags and runs fn
// until it returns or the process is interrupted.
func withDeployer(fn action) cli.ActionFunc {
	return func(cliCtx *cli.Context) error {
		cfg := deployer.NewConfig(cliCtx)
		if err := cfg.Check(); err != nil {
			return fmt.Errorf("invalid CLI flags: %w", err)
		}
		l := oplog.NewLogger(cfg.LogConfig)
		d, err := deployer.New(cfg, l, deployer.TerminalPrompt, cliCtx.App.Writer)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cliCtx.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()
		return fn(ctx, d, cliCtx)
	}
}
