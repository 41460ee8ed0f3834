package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BoxResin/HttpRequester/internal/app"
	"github.com/BoxResin/HttpRequester/internal/config"
	"github.com/BoxResin/HttpRequester/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "httprequester: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "httprequester",
		Short: "Send a form-encoded HTTP request and print the response",
		Example: `  httprequester --address http://dic.example/search.nhn --body "query=a"
  httprequester --presets-file ./configs/requests.yaml
  httprequester history --history-limit 5`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, "requester", nil, func(ctx context.Context, r *app.Runner) error {
				err := r.Run(ctx)
				if errors.Is(err, context.Canceled) {
					logger.WarnObj("stopped by signal", "error", err.Error())
				}
				return err
			})
		},
	}

	flags := root.PersistentFlags()
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("storage-type", "bbolt", "history storage backend (bbolt, none)")
	flags.String("bbolt-path", "./data/history.db", "history database path")
	flags.String("sinks-file", "", "YAML/JSON file declaring outcome sinks (default: stdout)")

	runFlags := root.Flags()
	runFlags.String("address", "", "target address")
	runFlags.String("method", "POST", "request method (GET or POST)")
	runFlags.String("body", "", "url-encoded POST parameters, e.g. key=value&key2=value2")
	runFlags.Int64("timeout-ms", 0, "connect/read timeout in milliseconds (0 = none)")
	runFlags.String("line-separator", "", "separator placed between response lines")
	runFlags.String("presets-file", "", "YAML/JSON file of named requests to send in order")

	history := &cobra.Command{
		Use:   "history",
		Short: "Print recently delivered exchanges",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, "history", []app.Option{app.WithoutSinks()}, func(_ context.Context, r *app.Runner) error {
				return r.History()
			})
		},
	}
	history.Flags().Int("history-limit", 20, "number of exchanges to print")
	root.AddCommand(history)

	return root
}

func run(cmd *cobra.Command, name string, opts []app.Option, fn func(context.Context, *app.Runner) error) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj(name+" starting", "run", map[string]any{
		"address":      cfg.Address,
		"method":       cfg.Method,
		"presets_file": cfg.PresetsFile,
		"sinks_file":   cfg.SinksFile,
		"storage_type": cfg.StorageType,
	})
	logger.DebugObj("effective config", "config", cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := app.NewRunner(ctx, cfg, log, opts...)
	if err != nil {
		logger.ErrorObj("failed to initialize runner", "error", err.Error())
		return err
	}
	defer func() {
		if err := runner.Close(); err != nil {
			logger.ErrorObj("runner close failed", "error", err.Error())
		}
	}()

	return fn(ctx, runner)
}
