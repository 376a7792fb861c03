package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/watchoor/internal/dashboard"
	"github.com/ethpandaops/watchoor/internal/version"
)

var (
	cfgFile      string
	logLevel     string
	headless     bool
	noTxPoolList bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watchoor",
		Short: "Live terminal dashboard for Ethereum JSON-RPC endpoints",
		Long: `watchoor polls one or more execution client JSON-RPC endpoints
and renders connection health, block production, gas prices, fee
estimates and tx-pool contents side by side in the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	cmd.Flags().StringVar(
		&cfgFile, "config", "",
		"path to config file (optional, RPC_URL alone is enough)",
	)
	cmd.Flags().StringVar(
		&logLevel, "log-level", "",
		"override log level (debug, info, warn, error)",
	)
	cmd.Flags().BoolVar(
		&headless, "headless", false,
		"disable the terminal UI and log endpoint summaries instead",
	)
	cmd.Flags().BoolVar(
		&noTxPoolList, "no-txpool-list", false,
		"skip the tx-pool transaction listing, keep only the counts",
	)

	cmd.AddCommand(versionCmd())

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.FullWithPlatform())
		},
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := dashboard.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// CLI flags override config file and environment.
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	if headless {
		cfg.UI.Enabled = false
	}

	if noTxPoolList {
		for i := range cfg.Endpoints {
			cfg.Endpoints[i].TxPool.DisableList = true
		}
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parsing log level %q: %w", cfg.LogLevel, err)
	}

	log.SetLevel(level)

	// While the terminal UI owns the screen, logs go to a file or
	// nowhere at all.
	if cfg.UI.Enabled {
		var out io.Writer = io.Discard

		if cfg.LogFile != "" {
			f, err := os.OpenFile(
				cfg.LogFile,
				os.O_CREATE|os.O_APPEND|os.O_WRONLY,
				0o644,
			)
			if err != nil {
				return fmt.Errorf("opening log file %s: %w", cfg.LogFile, err)
			}

			defer f.Close()

			out = f
		}

		log.SetOutput(out)
	}

	ctx, cancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer cancel()

	d, err := dashboard.New(log, cfg)
	if err != nil {
		return fmt.Errorf("creating dashboard: %w", err)
	}

	log.Info("Starting watchoor dashboard")

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("starting dashboard: %w", err)
	}

	// Either a signal arrives or the user quits the UI.
	select {
	case <-ctx.Done():
	case <-d.Done():
	}

	log.Info("Shutting down watchoor dashboard")

	if err := d.Stop(); err != nil {
		log.WithError(err).Error("Error during shutdown")
		return fmt.Errorf("stopping dashboard: %w", err)
	}

	log.Info("Shutdown complete")

	return nil
}
