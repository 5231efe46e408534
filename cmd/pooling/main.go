package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/pooling/pkg/config"
	"github.com/ajitpratap0/pooling/pkg/logger"
	"github.com/ajitpratap0/pooling/pkg/observability"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries state shared by the subcommands. Every flag is bound to viper,
// so POOLING_<FLAG> environment variables override flag defaults.
type app struct {
	v       *viper.Viper
	log     *zap.Logger
	tracing bool
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), log: zap.NewNop()}
	a.v.SetEnvPrefix("POOLING")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "pooling",
		Short: "Reusable object pools with benchmarks and a stats server",
		Long: `pooling drives the object pooling engine from the command line.
It runs concurrent request/release benchmarks against a configured pool and
serves configured pools with Prometheus metrics and JSON stats.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.v.BindPFlags(cmd.Flags())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.shutdown(cmd.Context())
		},
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to a YAML pool configuration file")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error), overrides logging.level")

	root.AddCommand(a.versionCmd(), a.benchCmd(), a.serveCmd(), a.validateCmd())
	return root
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pooling v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// loadConfig reads the --config file, or returns the defaults when none is
// given.
func (a *app) loadConfig() (*config.Config, error) {
	path := a.v.GetString("config")
	if path == "" {
		return config.New(), nil
	}
	return config.Load(path)
}

// setup loads the configuration and installs the logger and tracer it
// describes. Logs go to stderr unless the file names other outputs.
func (a *app) setup() (*config.Config, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	if level := a.v.GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if len(cfg.Logging.OutputPaths) == 0 {
		cfg.Logging.OutputPaths = []string{"stderr"}
	}
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	logger.Set(log)
	a.log = log

	if cfg.Tracing.Enabled {
		tc := observability.DefaultTracingConfig()
		tc.ServiceName = cfg.Tracing.ServiceName
		tc.ServiceVersion = version
		tc.SamplingRate = cfg.Tracing.SampleRate
		tc.Writer = os.Stderr
		if err := observability.Initialize(tc, log); err != nil {
			return nil, err
		}
		a.tracing = true
	}
	return cfg, nil
}

func (a *app) shutdown(ctx context.Context) error {
	if a.tracing {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := observability.Shutdown(ctx); err != nil {
			return err
		}
	}
	_ = a.log.Sync()
	return nil
}
