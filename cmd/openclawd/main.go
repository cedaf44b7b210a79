package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds global/persistent flags for CLI commands
type GlobalFlags struct {
	ConfigPath string // path to TOML config file
	Dev        bool   // in-memory sandbox and store, no platform needed
}

// ServeFlags holds flags for the serve command
type ServeFlags struct {
	Listen       string
	BasePath     string
	Metrics      bool
	SyncInterval time.Duration
}

// APIFlags holds daemon API connection flags
type APIFlags struct {
	APIUrl     string
	APITimeout time.Duration
}

// ApproveFlags holds flags for devices approve
type ApproveFlags struct {
	APIFlags
	IDs []string
}

// ConfigInitFlags holds flags for config init
type ConfigInitFlags struct {
	Type   string
	Output string
}

// buildRoot creates the root command with all subcommands
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	serveFlags := &ServeFlags{}
	syncFlags := &APIFlags{}
	statusFlags := &APIFlags{}
	restartFlags := &APIFlags{}
	devicesFlags := &APIFlags{}
	approveFlags := &ApproveFlags{}
	configInitFlags := &ConfigInitFlags{}

	c := command{flags: globalFlags}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createServeCommand(c, serveFlags),
		createSyncCommand(c, syncFlags),
		createRestoreCommand(c),
		createStatusCommand(c, statusFlags),
		createRestartCommand(c, restartFlags),
		createDevicesCommand(c, devicesFlags, approveFlags),
		createConfigCommand(c, configInitFlags),
	)
	return root
}

// createRootCommand creates the root command with persistent flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "openclawd",
		Short: "OpenClaw gateway supervisor for ephemeral sandboxes",
		Long: `Openclawd keeps the OpenClaw gateway process alive inside an ephemeral
sandbox and mirrors its config and workspace to object storage, so state
survives sandbox recycling.

Examples:
  openclawd serve --config openclawd.toml      # Run the daemon
  openclawd sync                               # Trigger a backup pass
  openclawd devices list                       # Show pairing requests
  openclawd devices approve --id req-123       # Approve a device`,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().BoolVar(&flags.Dev, "dev", false, "run against an in-memory sandbox and store")

	return root
}

func addAPIFlags(cmd *cobra.Command, f *APIFlags) {
	cmd.Flags().StringVar(&f.APIUrl, "api-url", "http://localhost:8080/api", "daemon API base URL")
	cmd.Flags().DurationVar(&f.APITimeout, "api-timeout", 30*time.Second, "daemon API request timeout")
}

// createServeCommand creates the serve subcommand
func createServeCommand(c command, f *ServeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the supervisor daemon",
		Long: `Restore state from object storage when the sandbox is fresh, ensure the
gateway is running, serve the admin API, and sync state periodically.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.Serve(*f)
		},
	}
	cmd.Flags().StringVar(&f.Listen, "listen", "", "listen address (overrides [server] listen)")
	cmd.Flags().StringVar(&f.BasePath, "base-path", "/api", "admin API base path")
	cmd.Flags().BoolVar(&f.Metrics, "metrics", false, "expose /metrics (overrides [server] metrics)")
	cmd.Flags().DurationVar(&f.SyncInterval, "sync-interval", 5*time.Minute, "periodic sync interval")
	return cmd
}

// createSyncCommand creates the sync subcommand
func createSyncCommand(c command, f *APIFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Trigger a backup pass",
		Long: `Ask a running daemon to sync sandbox state into object storage. Falls back
to a direct pass when no daemon is reachable.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.Sync(*f)
		},
	}
	addAPIFlags(cmd, f)
	return cmd
}

// createRestoreCommand creates the restore subcommand
func createRestoreCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Restore sandbox state from object storage",
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.Restore()
		},
	}
}

// createStatusCommand creates the status subcommand
func createStatusCommand(c command, f *APIFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show storage credential and last-sync status",
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.Status(*f)
		},
	}
	addAPIFlags(cmd, f)
	return cmd
}

// createRestartCommand creates the restart subcommand
func createRestartCommand(c command, f *APIFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the gateway process",
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.Restart(*f)
		},
	}
	addAPIFlags(cmd, f)
	return cmd
}

// createDevicesCommand creates the devices subcommand tree
func createDevicesCommand(c command, listFlags *APIFlags, approveFlags *ApproveFlags) *cobra.Command {
	devices := &cobra.Command{
		Use:   "devices",
		Short: "Manage gateway device pairing",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List pending and paired devices",
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.ListDevices(*listFlags)
		},
	}
	addAPIFlags(list, listFlags)

	approve := &cobra.Command{
		Use:   "approve",
		Short: "Approve pairing requests (all pending when no --id given)",
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.ApproveDevices(*approveFlags)
		},
	}
	addAPIFlags(approve, &approveFlags.APIFlags)
	approve.Flags().StringSliceVar(&approveFlags.IDs, "id", nil, "request id to approve (repeatable)")

	devices.AddCommand(list, approve)
	return devices
}

// createConfigCommand creates the config subcommand tree
func createConfigCommand(c command, f *ConfigInitFlags) *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a starter configuration file",
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.ConfigInit(*f)
		},
	}
	initCmd.Flags().StringVar(&f.Type, "type", "sqlite", "deployment flavor (dev, sqlite, postgresql)")
	initCmd.Flags().StringVar(&f.Output, "output", "", "write to file instead of stdout")

	cfg.AddCommand(initCmd)
	return cfg
}
