package command

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/gatemesh-go/internal/cli/output"
	clientconfig "github.com/yndnr/gatemesh-go/internal/client/config"
	"github.com/yndnr/gatemesh-go/internal/core/domain"
	"github.com/yndnr/gatemesh-go/internal/infra/buildinfo"
	"github.com/yndnr/gatemesh-go/internal/infra/confloader"
	"github.com/yndnr/gatemesh-go/internal/telemetry/logger"
	"github.com/yndnr/gatemesh-go/internal/telemetry/metric"
)

const (
	metaConfig   = "config"
	metaLogger   = "logger"
	metaSources  = "sources"
	metaMetrics  = "metrics"
	metaSessions = "session-metrics"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "gatemesh-cli",
		Usage:   "Talk to a gatemesh cluster from outside",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			SendCommand(),
			SendAllCommand(),
			ContactsCommand(),
			ResolveCommand(),
			ClientsCommand(),
			ShellCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
		Before:   before,
		Metadata: map[string]any{},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Client configuration file (yaml)",
			EnvVars: []string{"GATEMESH_CONFIG"},
		},
		&cli.StringSliceFlag{
			Name:    "contact",
			Aliases: []string{"s"},
			Usage:   "Initial receptionist contact, repeatable (e.g. http://localhost:7400)",
		},
		&cli.StringFlag{
			Name:  "client-id",
			Usage: "Client identity (generated when empty)",
		},
		&cli.StringFlag{
			Name:  "tls-ca-file",
			Usage: "Extra CA bundle for https receptionists",
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Aliases: []string{"t"},
			Usage:   "Overall time limit of the command",
			Value:   15 * time.Second,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "Serve session metrics on this address while the command runs (e.g. 127.0.0.1:9400)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Log session activity to stderr",
		},
	}
}

// before loads the client configuration and the logger into the app
// metadata.
func before(c *cli.Context) error {
	if _, err := output.ParseFormat(c.String("output")); err != nil {
		return err
	}
	cfg, sources, err := loadConfig(c)
	if err != nil {
		return err
	}

	logCfg := cfg.LoggerConfig()
	logCfg.Output = c.App.ErrWriter
	if logCfg.Output == nil {
		logCfg.Output = os.Stderr
	}
	if c.Bool("verbose") {
		logCfg.Level = "debug"
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return err
	}

	c.App.Metadata[metaConfig] = cfg
	c.App.Metadata[metaLogger] = log
	c.App.Metadata[metaSources] = sources
	reg := metric.NewRegistry()
	reg.SetBuildInfo(buildinfo.Version, buildinfo.Commit)
	c.App.Metadata[metaMetrics] = reg
	c.App.Metadata[metaSessions] = metric.NewSessionMetrics(reg)
	log.Debug("configuration loaded", "sources", sources)
	return nil
}

// loadConfig merges the config file, the environment and the global flags
// over the client defaults. It also returns the layers that were applied.
func loadConfig(c *cli.Context) (*clientconfig.ClientConfig, []string, error) {
	flags := map[string]any{}
	if contacts := c.StringSlice("contact"); len(contacts) > 0 {
		flags["client.initial-contacts"] = contacts
	}
	if id := c.String("client-id"); id != "" {
		flags["client.client-id"] = id
	}
	if ca := c.String("tls-ca-file"); ca != "" {
		flags["client.tls-ca-file"] = ca
	}

	cfg := clientconfig.Default()
	loader := confloader.NewLoader(
		confloader.WithConfigFile(c.String("config")),
		confloader.WithFlags(flags),
	)
	if err := loader.Load(cfg); err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, loader.Sources(), nil
}

func configFrom(c *cli.Context) *clientconfig.ClientConfig {
	if cfg, ok := c.App.Metadata[metaConfig].(*clientconfig.ClientConfig); ok {
		return cfg
	}
	return clientconfig.Default()
}

// sessionMetrics returns the registry and the session metrics recorded in
// it, or nils before the app has run.
func sessionMetrics(c *cli.Context) (*metric.Registry, *metric.SessionMetrics) {
	reg, _ := c.App.Metadata[metaMetrics].(*metric.Registry)
	m, _ := c.App.Metadata[metaSessions].(*metric.SessionMetrics)
	return reg, m
}

func loggerFrom(c *cli.Context) *slog.Logger {
	if log, ok := c.App.Metadata[metaLogger].(*slog.Logger); ok {
		return log
	}
	return logger.Discard()
}

// render writes data in the --output format.
func render(c *cli.Context, data any) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	return output.NewFormatter(format, c.Bool("wide")).Format(c.App.Writer, data)
}

func stderr(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

// Exit codes returned by ExitCode.
const (
	ExitFailure   = 1
	ExitUsage     = 2
	ExitTemporary = 75
)

// ExitCode maps a command error to a process exit code. Configuration and
// argument errors exit with ExitUsage; conditions worth retrying, such as
// an unavailable cluster, with ExitTemporary.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case domain.IsDomainError(err, domain.ErrInvalidConfiguration.Code),
		domain.IsDomainError(err, domain.ErrInvalidArgument.Code):
		return ExitUsage
	case domain.Temporary(err):
		return ExitTemporary
	}
	return ExitFailure
}
