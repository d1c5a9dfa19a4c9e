package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joyfulhouse/lamotte-spintouch/internal/config"
	"github.com/joyfulhouse/lamotte-spintouch/internal/lifecycle"
	"github.com/joyfulhouse/lamotte-spintouch/internal/protocol"
	"github.com/joyfulhouse/lamotte-spintouch/monitor"
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor [device-address]",
	Short: "Monitor an instrument and print test results as they complete",
	Long: fmt.Sprintf(`Connects to a SpinTouch instrument whenever it advertises and prints
each completed test result. After every result the link is held briefly,
then released so the vendor app can claim the instrument; reconnection
resumes after the yield window.

The address can come from the command line or from the config file.

Examples:
  # Monitor with default timings
  spintouch monitor %s

  # Shorter yield window
  spintouch monitor %s --reconnect-delay 1m

  # Use the config file for address and timings
  spintouch monitor --config ~/.config/spintouch/config.yaml

%s`, exampleDeviceAddress, exampleDeviceAddress, deviceAddressNote),
	Args: cobra.MaximumNArgs(1),
	RunE: runMonitor,
}

var (
	monitorDisconnectDelay time.Duration
	monitorReconnectDelay  time.Duration
	monitorVisibility      time.Duration
	monitorConnectTimeout  time.Duration
	monitorDiskSeries      string
	monitorStates          bool
)

func init() {
	monitorCmd.Flags().DurationVar(&monitorDisconnectDelay, "disconnect-delay", 0, "How long to hold the link after a result (default 10s)")
	monitorCmd.Flags().DurationVar(&monitorReconnectDelay, "reconnect-delay", 0, "Yield window before reconnecting (default 5m)")
	monitorCmd.Flags().DurationVar(&monitorVisibility, "visibility-interval", 0, "Probe interval after a connection failure (default 30s)")
	monitorCmd.Flags().DurationVar(&monitorConnectTimeout, "connect-timeout", 0, "Connect attempt timeout (default 30s)")
	monitorCmd.Flags().StringVar(&monitorDiskSeries, "disk-series", "", "Cartridge series override (auto, 103, 203, 303, 104, 204, 304)")
	monitorCmd.Flags().BoolVar(&monitorStates, "states", false, "Print lifecycle state transitions")
}

// loadConfig reads the --config file when given, or the default path
// when it exists. Flag values override file values.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.DefaultConfigPath()
		if _, err := os.Stat(path); err != nil {
			return config.Default(), nil
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	address := cfg.Instrument.Address
	if len(args) == 1 {
		address = args[0]
	}
	if address == "" {
		return fmt.Errorf("device address required: pass it as an argument or set instrument.address in the config file")
	}

	diskSeries := cfg.Instrument.DiskSeries
	if monitorDiskSeries != "" {
		diskSeries = monitorDiskSeries
		if diskSeries != "auto" {
			if _, err := protocol.DescriptorFor(protocol.CartridgeSeries(diskSeries)); err != nil {
				return fmt.Errorf("unsupported disk series %q", diskSeries)
			}
		}
	}

	opts := &monitor.MonitorOptions{
		Address:            address,
		DisconnectDelay:    cfg.Timings.DisconnectDelay,
		ReconnectDelay:     cfg.Timings.ReconnectDelay,
		VisibilityInterval: cfg.Timings.VisibilityInterval,
		ConnectTimeout:     cfg.Timings.ConnectTimeout,
	}
	if monitorDisconnectDelay > 0 {
		opts.DisconnectDelay = monitorDisconnectDelay
	}
	if monitorReconnectDelay > 0 {
		opts.ReconnectDelay = monitorReconnectDelay
	}
	if monitorVisibility > 0 {
		opts.VisibilityInterval = monitorVisibility
	}
	if monitorConnectTimeout > 0 {
		opts.ConnectTimeout = monitorConnectTimeout
	}

	logger, err := configureLogger(cmd, "verbose", cfg.LogLevel)
	if err != nil {
		return err
	}
	opts.Logger = logger

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	fmt.Printf("Monitoring %s - waiting for the instrument to advertise (Ctrl+C to stop)\n", address)

	_, err = monitor.RunDeviceMonitor(ctx, opts, nil,
		func(s monitor.Session) (struct{}, error) {
			s.Readings().OnChange(func(r *protocol.Reading) {
				fmt.Println()
				printReading(os.Stdout, r, diskSeries)
			})
			if monitorStates {
				s.OnStateChange(func(state lifecycle.State) {
					fmt.Printf("[%s] %s\n", time.Now().Format(time.TimeOnly), state)
				})
			}

			<-sigCh
			fmt.Println("\nStopping monitor...")
			return struct{}{}, nil
		})
	return err
}
