// SwitchBot bridge.
//
// Keeps SwitchBot Bots and Contact Sensors in sync with an MQTT host through
// the SwitchBot cloud API and, for configured devices, a BLE gateway.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"
	defaultEnvFile    = ".env"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cliFlags holds the persistent flags shared by every subcommand.
type cliFlags struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:           "switchbot-bridge",
		Short:         "SwitchBot Bot and Contact Sensor bridge",
		Long:          "Mirrors SwitchBot Bots and Contact Sensors onto MQTT using the cloud API and a BLE gateway.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadDotEnv(flags.envFile)
		},
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "configuration file (default $SWITCHBOT_CONFIG or "+defaultConfigPath+")")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", defaultEnvFile, "optional .env file loaded before the configuration")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bridge until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), getConfigPath(flags.configPath))
		},
	}

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "List the devices known to the cloud API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listDevices(cmd.Context(), getConfigPath(flags.configPath), cmd.OutOrStdout())
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "switchbot-bridge %s (commit %s, built %s)\n", version, commit, date)
		},
	}

	root.AddCommand(runCmd, devicesCmd, versionCmd)
	return root
}

// getConfigPath resolves the configuration path: flag, then
// SWITCHBOT_CONFIG, then the default.
func getConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv("SWITCHBOT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
