// Package commands implements the connectsync CLI.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/connectsync/internal/application"
	"github.com/jbctechsolutions/connectsync/internal/infrastructure/config"
	"github.com/jbctechsolutions/connectsync/internal/presentation/cli/output"
)

// Version information - set at build time via ldflags.
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// skipInit marks commands that run without the application container.
const skipInit = "skip_init"

// GlobalFlags holds the global CLI flags.
type GlobalFlags struct {
	ConfigFile string
	Output     string
	Verbose    bool
	Device     string
}

// AppContext holds the application runtime context.
type AppContext struct {
	Config    *config.Config
	Loader    *config.Loader
	Flags     *GlobalFlags
	Container *application.Container
}

var (
	globalFlags GlobalFlags
	appCtx      *AppContext
	appCtxMu    sync.RWMutex // Protects appCtx for thread-safe access
)

// NewRootCmd creates the root command for the connectsync CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "connectsync",
		Short: "Mirror SMS, calls and shared files from KDE Connect devices",
		Long: `connectsync talks to the KDE Connect daemon over the session bus.

It syncs conversation lists and threads from a paired phone, sends
messages, and turns incoming SMS, calls and file shares into
notifications on the terminal or a websocket stream.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || needsNoInit(cmd) {
				return nil
			}
			return initializeApp()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&globalFlags.ConfigFile, "config", "c", "", "config file path (default: ~/.connectsync/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.Output, "output", "o", "text", "output format: text, json, table")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.Device, "device", "d", "", "device id (default: default_device from config)")

	rootCmd.AddCommand(NewVersionCmd())
	rootCmd.AddCommand(NewDevicesCmd())
	rootCmd.AddCommand(NewConversationsCmd())
	rootCmd.AddCommand(NewThreadCmd())
	rootCmd.AddCommand(NewSendCmd())
	rootCmd.AddCommand(NewWatchCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewConfigCmd())
	rootCmd.AddCommand(NewDedupCmd())
	rootCmd.AddCommand(NewHistoryCmd())

	return rootCmd
}

func needsNoInit(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipInit] == "true" {
			return true
		}
	}
	return false
}

// outputFormat maps the global --output flag to a formatter format.
func outputFormat() output.Format {
	format, err := output.ParseFormat(globalFlags.Output)
	if err != nil {
		return output.FormatText
	}
	return format
}

// formatterFor writes to the command's output stream.
func formatterFor(cmd *cobra.Command) *output.Formatter {
	return newFormatter(cmd.OutOrStdout())
}

func newFormatter(w io.Writer) *output.Formatter {
	format := outputFormat()
	return output.NewFormatter(
		output.WithWriter(w),
		output.WithFormat(format),
		output.WithColor(format != output.FormatJSON && output.IsColorSupported()),
	)
}

// initializeApp initializes the application context.
func initializeApp() error {
	loader, cfg, err := loadConfig(globalFlags.ConfigFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	container, err := application.NewContainer(cfg, application.WithVerbose(globalFlags.Verbose))
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	appCtxMu.Lock()
	appCtx = &AppContext{
		Config:    cfg,
		Loader:    loader,
		Flags:     &globalFlags,
		Container: container,
	}
	appCtxMu.Unlock()

	return nil
}

// loadConfig loads configuration from the specified file or default location.
// An explicit path must exist; only the default location falls back to defaults.
func loadConfig(configPath string) (*config.Loader, *config.Config, error) {
	loader, err := config.NewLoader("")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create config loader: %w", err)
	}

	var cfg *config.Config
	if configPath != "" {
		cfg, err = loader.LoadFromFile(configPath)
	} else {
		cfg, err = loader.Load("")
	}
	if err != nil {
		return nil, nil, err
	}
	return loader, cfg, nil
}

// GetAppContext returns the current application context.
// Returns nil if the app hasn't been initialized.
func GetAppContext() *AppContext {
	appCtxMu.RLock()
	defer appCtxMu.RUnlock()
	return appCtx
}

// GetContainer returns the application container.
// Returns nil if the app hasn't been initialized.
func GetContainer() *application.Container {
	if ctx := GetAppContext(); ctx != nil {
		return ctx.Container
	}
	return nil
}

// appLoader returns the loader the app was initialized with.
func appLoader() *config.Loader {
	if ctx := GetAppContext(); ctx != nil {
		return ctx.Loader
	}
	return nil
}

func requireContainer() (*application.Container, error) {
	c := GetContainer()
	if c == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	return c, nil
}

// deviceID resolves the --device flag against the configured default.
func deviceID(c *application.Container) (string, error) {
	return c.ResolveDevice(globalFlags.Device)
}

// Shutdown releases the container.
func Shutdown() {
	appCtxMu.Lock()
	defer appCtxMu.Unlock()

	if appCtx != nil && appCtx.Container != nil {
		_ = appCtx.Container.Close()
	}
	appCtx = nil
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context so long-running commands stop cleanly.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	interrupted := ctx.Err() != nil
	Shutdown()

	if err != nil && !interrupted {
		newFormatter(os.Stderr).Error("%s", err.Error())
		os.Exit(1)
	}
	if interrupted {
		os.Exit(130) // Standard exit code for SIGINT
	}
}
