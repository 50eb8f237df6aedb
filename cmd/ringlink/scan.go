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

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/ringlink/internal/link"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for ring devices",
	Long: `Scan for and display Bluetooth Low Energy devices in the vicinity.

This command will scan for BLE devices and display information about
discovered devices, including their names, addresses, RSSI values, and
advertised services. Results are sorted by signal strength so the ring
on your finger shows up first.`,
	RunE: runScan,
}

var (
	scanDuration  time.Duration
	scanFormat    string
	scanAllowList []string
	scanBlockList []string
	scanWatch     bool
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 10*time.Second, "Scan duration (0 for indefinite)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
	scanCmd.Flags().StringSliceVar(&scanAllowList, "allow", nil, "Only show devices with these addresses")
	scanCmd.Flags().StringSliceVar(&scanBlockList, "block", nil, "Hide devices with these addresses")
	scanCmd.Flags().BoolVarP(&scanWatch, "watch", "w", false, "Continuously scan and update results")
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanFormat != "table" && scanFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [table json]", scanFormat)
	}

	logger, err := configureLogger(cmd, "")
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	scanner := link.NewScanner(link.NewBLELink(logger), logger)

	opts := link.DefaultScanOptions()
	opts.Duration = scanDuration
	opts.AllowList = scanAllowList
	opts.BlockList = scanBlockList
	if scanWatch && !cmd.Flags().Changed("duration") {
		opts.Duration = 0 // watch mode scans until interrupted
	}

	if scanWatch {
		return runWatchMode(scanner, opts, logger)
	}
	return runSingleScan(scanner, opts, logger)
}

func runSingleScan(scanner *link.Scanner, opts *link.ScanOptions, logger *logrus.Logger) error {
	baseCtx := context.Background()
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		baseCtx, cancel = context.WithTimeout(baseCtx, opts.Duration)
		defer cancel()
	}

	ctx, cancel := context.WithCancel(baseCtx)
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

	progress := NewCountdownProgressPrinter("Scanning for ring devices", "Scanning", opts.Duration, "Processing results")
	progress.Start()
	defer progress.Stop()

	devices, err := scanner.Scan(ctx, opts, progress.Callback())
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("scan failed")
		return err
	}
	return displayDevices(devices)
}

func runWatchMode(scanner *link.Scanner, opts *link.ScanOptions, logger *logrus.Logger) error {
	// Scan until interrupted by the user.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nCtrl+C pressed, cancelling scan...")
		cancel()
	}()

	// Collect discovery events while the blocking scan runs in the
	// background; the registry map always holds the latest sighting.
	devices := make(map[string]link.Descriptor)

	scanErrCh := make(chan error, 1)
	go func() {
		_, err := scanner.Scan(ctx, opts, nil)
		scanErrCh <- err
	}()

	redraw := time.NewTicker(time.Second)
	defer redraw.Stop()

	for {
		select {
		case <-ctx.Done():
			clearScreen()
			return displayCollected(devices)

		case err := <-scanErrCh:
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				logger.WithError(err).Error("scan failed")
				return err
			}
			clearScreen()
			return displayCollected(devices)

		case ev := <-scanner.Events():
			devices[ev.Descriptor.Address] = ev.Descriptor

		case <-redraw.C:
			clearScreen()
			if err := displayCollected(devices); err != nil {
				return err
			}
		}
	}
}

func displayCollected(devices map[string]link.Descriptor) error {
	list := make([]link.Descriptor, 0, len(devices))
	for _, d := range devices {
		list = append(list, d)
	}
	// Strongest signal first, the ordering the scanner itself uses.
	sort.Slice(list, func(i, j int) bool {
		if list[i].RSSI != list[j].RSSI {
			return list[i].RSSI > list[j].RSSI
		}
		return list[i].Address < list[j].Address
	})
	return displayDevices(list)
}

func displayDevices(devices []link.Descriptor) error {
	if scanFormat == "json" {
		return displayDevicesJSON(devices)
	}
	return displayDevicesTable(devices)
}

func displayDevicesTable(devices []link.Descriptor) error {
	if len(devices) == 0 {
		fmt.Println("No devices discovered")
		return nil
	}

	var base io.Writer = os.Stdout
	w := tabwriter.NewWriter(base, 0, 0, 2, ' ', 0)

	header := color.New(color.Bold)
	fmt.Fprintln(w, header.Sprint("NAME\tADDRESS\tRSSI\tSERVICES"))
	fmt.Fprintln(w, strings.Repeat("-", 70))

	for _, d := range devices {
		name := d.Name
		if name == "" {
			name = "(unknown)"
		}
		if len(name) > 20 {
			name = name[:17] + "..."
		}

		services := strings.Join(d.Services, ",")
		if len(services) > 30 {
			services = services[:27] + "..."
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			name, d.Address, colorRSSI(d.RSSI), services)
	}

	return w.Flush()
}

// colorRSSI renders signal strength green/yellow/red by rough usability.
func colorRSSI(rssi int) string {
	text := fmt.Sprintf("%d dBm", rssi)
	switch {
	case rssi >= -60:
		return color.GreenString(text)
	case rssi >= -80:
		return color.YellowString(text)
	default:
		return color.RedString(text)
	}
}

func displayDevicesJSON(devices []link.Descriptor) error {
	type deviceJSON struct {
		Name        string   `json:"name"`
		Address     string   `json:"address"`
		RSSI        int      `json:"rssi"`
		Connectable bool     `json:"connectable"`
		Services    []string `json:"services,omitempty"`
	}

	out := make([]deviceJSON, len(devices))
	for i, d := range devices {
		out[i] = deviceJSON{
			Name:        d.Name,
			Address:     d.Address,
			RSSI:        d.RSSI,
			Connectable: d.Connectable,
			Services:    d.Services,
		}
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func clearScreen() {
	fmt.Print("\033[2J\033[H")
}
