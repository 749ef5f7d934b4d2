// services/realtime-monitor/cmd/realtime-monitor/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/YaganovValera/crypto-realtime/common/logger"
	"github.com/YaganovValera/crypto-realtime/common/shutdown"
	"github.com/YaganovValera/crypto-realtime/services/realtime-monitor/internal/app"
	"github.com/YaganovValera/crypto-realtime/services/realtime-monitor/internal/config"
	"github.com/YaganovValera/crypto-realtime/services/realtime-monitor/pkg/realtime"
	"github.com/YaganovValera/crypto-realtime/services/realtime-monitor/pkg/wstransport"
)

type options struct {
	configPath  string
	printConfig bool
	waitConnect time.Duration
}

func globalFlags(o *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("realtime-monitor", pflag.ExitOnError)
	fs.StringVar(&o.configPath, "config", "config/config.yaml", "path to config file (empty → ENV + defaults)")
	fs.BoolVar(&o.printConfig, "print-config", false, "print resolved configuration before start")
	return fs
}

func main() {
	var opts options

	root := &cobra.Command{
		Use:           "realtime-monitor",
		Short:         "Realtime channel monitor: subscribes to market/analysis channels and forwards updates",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runService(opts)
		},
	}
	root.PersistentFlags().AddFlagSet(globalFlags(&opts))

	ping := &cobra.Command{
		Use:   "ping",
		Short: "Connect once, run a health check and print the round trip",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPing(opts)
		},
	}
	ping.Flags().DurationVar(&opts.waitConnect, "wait", 10*time.Second, "how long to wait for the connection")
	root.AddCommand(ping)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "realtime-monitor: %v\n", err)
		os.Exit(1)
	}
}

func setup(opts options) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config load error: %w", err)
	}
	if opts.printConfig || cfg.Logging.DevMode {
		cfg.Print()
	}
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("logger init error: %w", err)
	}
	return cfg, log, nil
}

func runService(opts options) error {
	cfg, log, err := setup(opts)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("starting realtime-monitor service",
		zap.String("service.name", cfg.ServiceName),
		zap.String("service.version", cfg.ServiceVersion),
		zap.String("config.path", opts.configPath),
	)

	ctx, cancel := shutdown.SignalContext(context.Background(), log)
	defer cancel()

	if err := app.Run(ctx, cfg, log); err != nil {
		log.Error("application exited with error", zap.Error(err))
		return err
	}
	log.Info("shutdown complete")
	return nil
}

func runPing(opts options) error {
	cfg, log, err := setup(opts)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := shutdown.SignalContext(context.Background(), log)
	defer cancel()

	transport, err := wstransport.New(cfg.WS, log)
	if err != nil {
		return err
	}
	client, err := realtime.New(transport, cfg.Realtime.Config, log)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Start(ctx); err != nil {
		return err
	}

	waitCtx, waitCancel := context.WithTimeout(ctx, opts.waitConnect)
	defer waitCancel()
	for !client.IsConnected() {
		select {
		case <-waitCtx.Done():
			return fmt.Errorf("no connection to %s within %s", cfg.WS.URL, opts.waitConnect)
		case <-time.After(50 * time.Millisecond):
		}
	}

	rtt, err := client.CheckHealth(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s: ok, round trip %s\n", cfg.WS.URL, rtt)
	return nil
}
