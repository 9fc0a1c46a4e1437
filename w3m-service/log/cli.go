package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	opservice "github.com/w3m-protocol/w3m-staking/w3m-service"
)

const (
	LevelFlagName  = "log.level"
	FormatFlagName = "log.format"
	ColorFlagName  = "log.color"
)

func CLIFlags(envPrefix string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    LevelFlagName,
			Usage:   "The lowest log level that will be output",
			Value:   "info",
			EnvVars: opservice.PrefixEnvVar(envPrefix, "LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    FormatFlagName,
			Usage:   "Format the log output. Supported formats: 'terminal', 'logfmt', 'json'",
			Value:   "terminal",
			EnvVars: opservice.PrefixEnvVar(envPrefix, "LOG_FORMAT"),
		},
		&cli.BoolFlag{
			Name:    ColorFlagName,
			Usage:   "Color the log output if in terminal mode",
			EnvVars: opservice.PrefixEnvVar(envPrefix, "LOG_COLOR"),
		},
	}
}

type CLIConfig struct {
	Level  string
	Color  bool
	Format string
}

func (cfg CLIConfig) Check() error {
	switch cfg.Format {
	case "json", "json-pretty", "terminal", "text", "logfmt":
	default:
		return fmt.Errorf("unrecognized log format: %s", cfg.Format)
	}

	level := strings.TrimSpace(strings.ToLower(cfg.Level))
	if _, err := log.LvlFromString(level); err != nil {
		return fmt.Errorf("unrecognized log level: %w", err)
	}
	return nil
}

// NewLogger creates a root logger writing to stdout. It panics on an invalid
// config, Check is expected to have been called first.
func NewLogger(cfg CLIConfig) log.Logger {
	return NewLoggerWithWriter(os.Stdout, cfg)
}

func NewLoggerWithWriter(w io.Writer, cfg CLIConfig) log.Logger {
	handler := log.StreamHandler(w, format(cfg))
	handler = log.SyncHandler(handler)
	handler = log.LvlFilterHandler(level(cfg.Level), handler)
	logger := log.New()
	logger.SetHandler(handler)
	return logger
}

func DefaultCLIConfig() CLIConfig {
	return CLIConfig{
		Level:  "info",
		Format: "terminal",
		Color:  isatty.IsTerminal(os.Stdout.Fd()),
	}
}

func ReadCLIConfig(ctx *cli.Context) CLIConfig {
	cfg := DefaultCLIConfig()
	cfg.Level = ctx.String(LevelFlagName)
	cfg.Format = ctx.String(FormatFlagName)
	if ctx.IsSet(ColorFlagName) {
		cfg.Color = ctx.Bool(ColorFlagName)
	}
	return cfg
}

func format(cfg CLIConfig) log.Format {
	switch cfg.Format {
	case "json":
		return log.JSONFormat()
	case "json-pretty":
		return log.JSONFormatEx(true, true)
	case "text", "terminal":
		return log.TerminalFormat(cfg.Color)
	case "logfmt":
		return log.LogfmtFormat()
	default:
		panic(fmt.Errorf("failed to create log format: %s", cfg.Format))
	}
}

func level(s string) log.Lvl {
	s = strings.TrimSpace(strings.ToLower(s))
	l, err := log.LvlFromString(s)
	if err != nil {
		panic(fmt.Errorf("could not parse log level: %w", err))
	}
	return l
}

// SetupDefaults routes the root logger to stdout until the configured
// logger is built.
func SetupDefaults() {
	log.Root().SetHandler(
		log.LvlFilterHandler(
			log.LvlInfo,
			log.StreamHandler(os.Stdout, log.TerminalFormat(isatty.IsTerminal(os.Stdout.Fd()))),
		),
	)
}
