package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joyfulhouse/lamotte-spintouch/internal/protocol"
	"github.com/joyfulhouse/lamotte-spintouch/internal/transport"
	"github.com/joyfulhouse/lamotte-spintouch/monitor"
)

// readCmd represents the read command
var readCmd = &cobra.Command{
	Use:   "read <device-address>",
	Short: "Read the most recent test result from an instrument",
	Long: fmt.Sprintf(`Connects to a SpinTouch instrument once, reads the stored test result,
decodes it and disconnects.

The instrument must currently be advertising; it does so for a while
after a test completes or after power-on.

Examples:
  # Read the latest result
  spintouch read %s

  # Read and acknowledge so the instrument stops resending
  spintouch read %s --ack

%s`, exampleDeviceAddress, exampleDeviceAddress, deviceAddressNote),
	Args: cobra.ExactArgs(1),
	RunE: runRead,
}

var (
	readTimeout    time.Duration
	readAck        bool
	readDiskSeries string
)

func init() {
	readCmd.Flags().DurationVar(&readTimeout, "timeout", 30*time.Second, "Connect timeout")
	readCmd.Flags().BoolVar(&readAck, "ack", false, "Acknowledge the result after reading")
	readCmd.Flags().StringVar(&readDiskSeries, "disk-series", "", "Cartridge series override for display")
}

func runRead(cmd *cobra.Command, args []string) error {
	address := args[0]

	logger, err := configureLogger(cmd, "verbose", "")
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	progress := NewProgressPrinter(fmt.Sprintf("Reading test result from %s", address), "Connecting", "Processing")
	progress.Start()
	defer progress.Stop()
	report := progress.Callback()

	central := monitor.CentralFactory(logger)

	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()

	if err := central.Connect(ctx, address); err != nil {
		report("Failed")
		return err
	}
	defer func() {
		if err := central.Disconnect(address); err != nil {
			logger.WithError(err).Warn("Disconnect failed")
		}
	}()

	report("Reading")

	raw, err := central.Read(ctx, address, transport.ResultCharUUID)
	if err != nil {
		report("Failed")
		return err
	}

	rec, err := protocol.Decode(raw)
	if err != nil {
		report("Failed")
		return err
	}

	if readAck {
		if err := central.Write(ctx, address, transport.AckCharUUID, []byte{0x01}); err != nil {
			logger.WithError(err).Warn("Ack write failed")
		}
	}

	report("Processing")
	printReading(os.Stdout, rec, readDiskSeries)
	return nil
}
