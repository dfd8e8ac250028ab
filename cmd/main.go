package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"asrgen/config"
	"asrgen/generator"
	"asrgen/logger"
	"asrgen/tracing"
	"asrgen/version"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var loader *config.Loader
	cmd := &cobra.Command{
		Use:   "asrgen",
		Short: "Generate YARA and Sigma rules from the files in a directory",
		Long: `asrgen reads every file in the input directory and writes a YARA-style
pattern rule, a Sigma-style detection rule and a JSON metadata record for
each one into the output directory.`,
		Args:          cobra.NoArgs,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loader.Load()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.SetVersionTemplate("asrgen version {{.Version}}\n")
	loader = config.NewLoader(cmd.Flags())
	return cmd
}

func run(parent context.Context, cfg *config.Config) error {
	logger.Init(cfg.LogLevel)
	if err := logger.SetOutputFile(cfg.LogFile); err != nil {
		logger.Warnf("Logging to console only: %v", err)
	}
	defer logger.Close()

	if tracing.Enabled() {
		if err := tracing.Start(cfg.TraceFile); err != nil {
			logger.Warnf("Failed to start trace: %v", err)
		} else {
			defer tracing.Stop()
		}
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go handleSignalEvent(ctx, cancel, sigChan)

	logger.Infof("Generating rules from %s into %s", cfg.InputDir, cfg.OutputDir)
	g, err := generator.New(cfg)
	if err != nil {
		return err
	}
	res, err := g.Run(ctx)
	if err != nil {
		return err
	}
	if res.Metrics.FilesFailed > 0 {
		logger.Warnf("%d of %d files produced no rules; see log for details", res.Metrics.FilesFailed, res.Metrics.TotalFiles)
	}
	logger.Info("Rule generation completed.")
	return nil
}

// handleSignalEvent cancels the run on the first signal. It returns without
// cancelling when ctx ends first.
func handleSignalEvent(ctx context.Context, cancel context.CancelFunc, sigChan <-chan os.Signal) {
	select {
	case sig := <-sigChan:
		logger.Infof("Received %s. Finishing the current file and stopping...", sig)
		cancel()
	case <-ctx.Done():
	}
}
