// Command netpulse runs the NetPulse monitoring daemon: ICMP/TCP/SNMP
// probing, alerting, scheduled port scans, and the HTTP/JSON API, all in
// one process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rcourtman/netpulse/internal/app"
	"github.com/rcourtman/netpulse/internal/config"
	"github.com/rcourtman/netpulse/internal/logging"
	"github.com/rcourtman/netpulse/internal/privdrop"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var (
	dataDir   string
	runAsUser string
)

var rootCmd = &cobra.Command{
	Use:     "netpulse",
	Short:   "NetPulse network monitoring daemon",
	Long:    "NetPulse pings, port-scans and SNMP-polls a fleet of hosts, raises threshold alerts, and serves the results over a JSON API.",
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", os.Getenv("NETPULSE_DATA_DIR"), "directory for the database, config file, and API key")
	rootCmd.PersistentFlags().StringVar(&runAsUser, "run-as-user", os.Getenv("NETPULSE_RUN_AS_USER"),
		"drop root privileges to this user after startup (requires CAP_NET_RAW to be granted to the binary via setcap for ICMP probing to keep working)")
	rootCmd.AddCommand(versionCmd, configCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("netpulse %s\n", version)
		if buildTime != "unknown" {
			fmt.Printf("Built: %s\n", buildTime)
		}
		if gitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", gitCommit)
		}
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(resolveDataDir())
		if err != nil {
			return err
		}
		fmt.Printf("%+v\n", *cfg)
		return nil
	},
}

func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	return config.Default().DataDir
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer() error {
	// Console output when stderr is a terminal, JSON otherwise.
	pretty := false
	if fi, err := os.Stderr.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		pretty = true
	}
	if _, err := logging.Init(logging.Options{Level: "info", Pretty: pretty}); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	cfg, err := config.Load(resolveDataDir())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	watcher, err := config.NewWatcher(cfg)
	if err != nil {
		return fmt.Errorf("start config watcher: %w", err)
	}
	defer watcher.Stop()

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}

	if spec, err := privdrop.To(runAsUser); err != nil {
		return fmt.Errorf("drop privileges to %q: %w", runAsUser, err)
	} else if spec != nil {
		logging.Component("main").Info().Str("user", spec.Name).Int("uid", spec.UID).Msg("dropped root privileges")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return application.Run(ctx)
}
