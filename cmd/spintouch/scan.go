package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/joyfulhouse/lamotte-spintouch/scanner"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for SpinTouch instruments",
	Long: `Scan for advertising SpinTouch instruments and display their
addresses, names and signal strength.

An instrument only advertises while it is powered on and not claimed by
another client; run a test or power-cycle the instrument if nothing shows
up.`,
	RunE: runScan,
}

var (
	scanDuration    time.Duration
	scanFormat      string
	scanAll         bool
	scanAllowList   []string
	scanBlockList   []string
	scanNoDuplicate bool
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 10*time.Second, "Scan duration (0 for indefinite)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
	scanCmd.Flags().BoolVarP(&scanAll, "all", "a", false, "Show every BLE device, not only SpinTouch instruments")
	scanCmd.Flags().StringSliceVar(&scanAllowList, "allow", nil, "Only show devices with these addresses")
	scanCmd.Flags().StringSliceVar(&scanBlockList, "block", nil, "Hide devices with these addresses")
	scanCmd.Flags().BoolVar(&scanNoDuplicate, "no-duplicates", true, "Filter duplicate advertisements")
}

func runScan(cmd *cobra.Command, args []string) error {
	switch scanFormat {
	case "table", "json":
	default:
		return fmt.Errorf("invalid format '%s': must be one of [table json]", scanFormat)
	}

	logger, err := configureLogger(cmd, "verbose", "")
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	s, err := scanner.NewScanner(logger)
	if err != nil {
		return fmt.Errorf("failed to create scanner: %w", err)
	}

	opts := &scanner.ScanOptions{
		Duration:        scanDuration,
		DuplicateFilter: scanNoDuplicate,
		AllInstruments:  scanAll,
		AllowList:       scanAllowList,
		BlockList:       scanBlockList,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Listen for Ctrl+C to cancel
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nCtrl+C pressed, cancelling scan...")
		cancel()
	}()

	progress := NewCountdownProgressPrinter("Scanning for SpinTouch instruments", "Scanning", scanDuration, "Processing results")
	progress.Start()
	defer progress.Stop()

	instruments, err := s.Scan(ctx, opts, progress.Callback())
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if scanFormat == "json" {
		return displayInstrumentsJSON(instruments)
	}
	return displayInstrumentsTable(instruments)
}

func displayInstrumentsTable(instruments map[string]scanner.Instrument) error {
	if len(instruments) == 0 {
		fmt.Println("No instruments discovered")
		return nil
	}

	list := make([]scanner.Instrument, 0, len(instruments))
	for _, inst := range instruments {
		list = append(list, inst)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Address < list[j].Address
	})

	var base io.Writer = os.Stdout
	w := tabwriter.NewWriter(base, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI\tCONNECTABLE\tLAST SEEN")
	fmt.Fprintln(w, strings.Repeat("-", 72))

	for _, inst := range list {
		name := inst.Name
		if name == "" {
			name = "(unnamed)"
		}
		lastSeen := time.Since(inst.LastSeen).Truncate(time.Second)
		fmt.Fprintf(w, "%s\t%s\t%d dBm\t%t\t%s ago\n",
			name, inst.Address, inst.RSSI, inst.Connectable, lastSeen)
	}

	return w.Flush()
}

func displayInstrumentsJSON(instruments map[string]scanner.Instrument) error {
	list := make([]scanner.Instrument, 0, len(instruments))
	for _, inst := range instruments {
		list = append(list, inst)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Address < list[j].Address
	})

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(list)
}
