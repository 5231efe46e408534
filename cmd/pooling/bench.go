package main

import (
	"github.com/spf13/cobra"

	"github.com/ajitpratap0/pooling/internal/bench"
	"github.com/ajitpratap0/pooling/pkg/config"
	"github.com/ajitpratap0/pooling/pkg/errors"
	"github.com/ajitpratap0/pooling/pkg/json"
)

func (a *app) benchCmd() *cobra.Command {
	d := bench.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a concurrent request/release benchmark",
		Long: `Run a concurrent request/release benchmark and print the result as JSON.

The pool settings come from --pool (a pool of the --config file) and are
overridden by the capacity and strategy flags.

Example:
  pooling bench --workers 8 --operations 100000 --max-capacity 64 --overflow throw --mode locked`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.setup()
			if err != nil {
				return err
			}
			bc, err := a.benchConfig(cfg)
			if err != nil {
				return err
			}
			res, err := bench.NewRunner(a.log, nil).Run(cmd.Context(), bc)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(out, '\n'))
			return err
		},
	}

	f := cmd.Flags()
	f.String("pool", "", "Name of a pool in the config file to benchmark")
	f.String("name", d.Name, "Pool name used in logs")
	f.String("mode", string(d.Mode), "Access mode: async or locked")
	f.Int("workers", d.Workers, "Number of concurrent workers")
	f.Int("operations", d.Operations, "Request/release cycles per worker")
	f.Int("batch-size", d.BatchSize, "Objects requested per cycle")
	f.Duration("hold", d.Hold, "Time each batch is held before release")
	f.Float64("rate", d.Rate, "Cycles per second across workers, 0 for unlimited")
	f.Int("warm-up", d.WarmUp, "Instances created before the run")
	f.Int("object-size", d.ObjectSize, "Payload bytes per object")
	f.Duration("max-retry", d.MaxRetry, "Retry budget per cycle in locked mode")
	f.Duration("timeout", 0, "Wait budget per request in async mode, overrides async.request_timeout")
	f.Int("init-capacity", d.Pool.InitCapacity(), "Passive buffer preallocation")
	f.Int("max-capacity", d.Pool.MaxCapacity(), "Maximum number of instances")
	f.String("borrow", d.Pool.BorrowStrategy().String(), "Borrow strategy: lifo, fifo or random")
	f.String("overflow", d.Pool.OverflowStrategy().String(), "Overflow strategy: reuse, request or throw")
	return cmd
}

// benchConfig merges the flags over the named pool of cfg.
func (a *app) benchConfig(cfg *config.Config) (bench.Config, error) {
	v := a.v
	bc := bench.DefaultConfig()

	spec := config.PoolSpec{Name: v.GetString("name")}
	if name := v.GetString("pool"); name != "" {
		var ok bool
		if spec, ok = cfg.Pool(name); !ok {
			return bc, errors.New(errors.ErrorTypeNotFound, "pool not found in config").WithDetail("pool", name)
		}
	}
	if v.IsSet("init-capacity") || spec.InitCapacity == nil {
		spec.InitCapacity = config.IntPtr(v.GetInt("init-capacity"))
	}
	if v.IsSet("max-capacity") || spec.MaxCapacity == nil {
		spec.MaxCapacity = config.IntPtr(v.GetInt("max-capacity"))
	}
	if v.IsSet("borrow") || spec.Borrow == "" {
		spec.Borrow = v.GetString("borrow")
	}
	if v.IsSet("overflow") || spec.Overflow == "" {
		spec.Overflow = v.GetString("overflow")
	}
	if v.IsSet("warm-up") || v.GetString("pool") == "" {
		spec.WarmUp = v.GetInt("warm-up")
	}
	poolCfg, err := spec.ToConfig()
	if err != nil {
		return bc, err
	}

	bc.Name = spec.Name
	bc.Mode = bench.Mode(v.GetString("mode"))
	bc.Workers = v.GetInt("workers")
	bc.Operations = v.GetInt("operations")
	bc.BatchSize = v.GetInt("batch-size")
	bc.Hold = v.GetDuration("hold")
	bc.Rate = v.GetFloat64("rate")
	bc.WarmUp = spec.WarmUp
	bc.ObjectSize = v.GetInt("object-size")
	bc.MaxRetry = v.GetDuration("max-retry")
	bc.Timeout = cfg.Async.RequestTimeout
	if t := v.GetDuration("timeout"); t > 0 {
		bc.Timeout = t
	}
	bc.Pool = poolCfg
	return bc, bc.Validate()
}
