package commands

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/HelloBinge/petuum/internal/logger"
	"github.com/HelloBinge/petuum/internal/telemetry"
	"github.com/HelloBinge/petuum/pkg/bgworker"
	"github.com/HelloBinge/petuum/pkg/config"
	"github.com/HelloBinge/petuum/pkg/debugserver"
	"github.com/HelloBinge/petuum/pkg/metrics"
	"github.com/HelloBinge/petuum/pkg/row"
	"github.com/HelloBinge/petuum/pkg/tablegroup"
	"github.com/HelloBinge/petuum/pkg/transport"

	// Blank import triggers pkg/metrics/prometheus's init() functions,
	// registering the concrete Prometheus metrics constructors.
	_ "github.com/HelloBinge/petuum/pkg/metrics/prometheus"
)

var iterations int

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a small in-process demo cluster",
	Long: `run wires one client against a toy in-process server over an
in-memory transport: it creates the tables declared in configuration,
spawns one goroutine per configured app thread doing Get/Inc/Clock in a
loop, and serves /metrics and /debugz/tablegroup until every app thread
has finished its iterations or the process is interrupted.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVar(&iterations, "iterations", 100, "number of Get/Inc/Clock iterations each app thread runs before exiting")
}

const (
	demoClientWorkerID = 0
	demoServerID       = 1
)

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Profiling.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: Version,
		Endpoint:       cfg.Profiling.Endpoint,
		ProfileTypes:   cfg.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("init profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	bus := transport.NewInMemoryBus()
	bus.Register(demoClientWorkerID, 64)
	bus.Register(demoServerID, 64)

	server := newDemoServer(demoServerID, demoClientWorkerID, bus)

	worker := bgworker.New(demoClientWorkerID, demoServerID, bus)
	tg, err := tablegroup.Init(tablegroup.Config{
		ClientID:      cfg.Cluster.ClientID,
		LocalIDMin:    cfg.Cluster.LocalIDMin,
		LocalIDMax:    cfg.Cluster.LocalIDMax,
		NumAppThreads: cfg.Threads.NumLocalAppThreads,
		TickPolicy:    tickPolicyFromConfig(cfg.Consistency.AggressiveClock),
	}, worker)
	if err != nil {
		return fmt.Errorf("init table group: %w", err)
	}

	for name, table := range cfg.Tables {
		sample := row.DenseSample{NumColumns: table.NumColumns}
		if err := tg.CreateTable(table.TableID, table.Staleness, sample, table.Capacity, table.LockStripes); err != nil {
			return fmt.Errorf("create table %q: %w", name, err)
		}
	}
	if err := tg.CreateTableDone(); err != nil {
		return fmt.Errorf("create table done: %w", err)
	}

	dbg := debugserver.NewServer(debugserver.Config{Port: cfg.Metrics.Port}, tg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error { return dbg.Start(gctx) })

	var wg sync.WaitGroup
	for i := int32(0); i < cfg.Threads.NumLocalAppThreads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := runAppThread(gctx, tg, cfg); err != nil && gctx.Err() == nil {
				logger.Error("app thread exited with error", "error", err)
			}
		}()
	}

	logger.Info("petuumclient demo cluster running",
		"num_app_threads", cfg.Threads.NumLocalAppThreads,
		"num_tables", len(cfg.Tables),
		"tick_policy", tickPolicyFromConfig(cfg.Consistency.AggressiveClock).String(),
	)

	wg.Wait()
	cancel()
	return g.Wait()
}

// runAppThread registers itself with tg, then runs a fixed number of
// Get/Inc/Clock iterations against every configured table before
// deregistering.
func runAppThread(ctx context.Context, tg *tablegroup.TableGroup, cfg *config.Config) error {
	threadID, err := tg.RegisterThread()
	if err != nil {
		return fmt.Errorf("register thread: %w", err)
	}
	defer tg.DeregisterThread(threadID)

	rng := rand.New(rand.NewSource(int64(threadID)))

	for i := 0; i < iterations; i++ {
		if ctx.Err() != nil {
			return nil
		}
		for _, table := range cfg.Tables {
			controller, err := tg.Table(table.TableID)
			if err != nil {
				return err
			}
			rowID := rng.Int31n(int32(table.Capacity))
			accessor, err := controller.Get(ctx, threadID, rowID)
			if err != nil {
				return fmt.Errorf("get table %d row %d: %w", table.TableID, rowID, err)
			}
			accessor.Release()

			column := rng.Int31n(int32(table.NumColumns))
			controller.Inc(rowID, column, rng.NormFloat64())
		}
		if err := tg.Clock(ctx, threadID); err != nil {
			return fmt.Errorf("clock: %w", err)
		}
	}
	return nil
}

func tickPolicyFromConfig(aggressive bool) tablegroup.TickPolicy {
	if aggressive {
		return tablegroup.Aggressive
	}
	return tablegroup.Conservative
}
